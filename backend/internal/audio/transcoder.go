// Package audio converts synthesized waveforms into Opus frames for Discord.
package audio

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"texvoice/backend/internal/constants"
	apperrors "texvoice/backend/pkg/errors"

	"go.uber.org/zap"
)

// Transcoder runs ffmpeg to turn a WAV waveform into an Ogg/Opus stream
type Transcoder struct {
	ffmpegPath string
	logger     *zap.Logger
}

// NewTranscoder creates a transcoder using the given ffmpeg executable
func NewTranscoder(ffmpegPath string, logger *zap.Logger) *Transcoder {
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// ToStreamableFrames pipes wav through ffmpeg and returns the resulting Opus
// packets. The process output is read fully before returning.
func (t *Transcoder) ToStreamableFrames(ctx context.Context, wav []byte) (FrameSource, error) {
	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-hide_banner",
		"-loglevel", "warning",
		"-i", "pipe:0",
		"-vn",
		"-c:a", "libopus",
		"-b:a", "96k",
		"-ar", strconv.Itoa(constants.OpusSampleRate),
		"-ac", strconv.Itoa(constants.OpusChannels),
		"-application", "voip",
		"-frame_duration", strconv.Itoa(constants.OpusFrameDuration),
		"-f", "ogg",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(wav)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, t.classify(err, stderr.String())
	}

	if stderr.Len() > 0 {
		t.logger.Debug("ffmpeg warnings", zap.String("stderr", strings.TrimSpace(stderr.String())))
	}

	return NewOggReader(bytes.NewReader(stdout.Bytes())), nil
}

func (t *Transcoder) classify(err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewTranscoderMissing(t.ffmpegPath, err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(stderr); msg != "" {
			t.logger.Warn("ffmpeg exited abnormally",
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", msg),
			)
		}
		return apperrors.NewTranscodeFailed(t.ffmpegPath, exitErr.ExitCode(), err)
	}

	return apperrors.NewTranscodeFailed(t.ffmpegPath, -1, err)
}

// FindExecutable finds an executable in PATH, trying the .exe suffix on
// Windows. It returns "" when nothing is found.
func FindExecutable(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		if path, err := exec.LookPath(name + ".exe"); err == nil {
			return path
		}
	}

	return ""
}
