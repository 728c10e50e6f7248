package tts

import (
	"context"
	"time"

	"texvoice/backend/internal/audio"
	"texvoice/backend/internal/metrics"
	apperrors "texvoice/backend/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Engine is the speech engine: model management plus waveform synthesis
type Engine interface {
	ModelLoader
	Synthesize(ctx context.Context, text string, speakerID int) ([]byte, error)
}

// Transcoder converts a waveform into streamable frames
type Transcoder interface {
	ToStreamableFrames(ctx context.Context, wav []byte) (audio.FrameSource, error)
}

// Synthesizer produces AudioItems from text
type Synthesizer struct {
	engine     Engine
	transcoder Transcoder
	models     *ModelCache
	slots      *semaphore.Weighted
	metrics    *metrics.Recorder
	logger     *zap.Logger
}

// Options configures a Synthesizer
type Options struct {
	// Concurrency bounds simultaneous engine synthesis calls across all guilds
	Concurrency int
	Metrics     *metrics.Recorder
	Logger      *zap.Logger
}

// NewSynthesizer creates a synthesizer. The model cache is shared by every
// caller of this synthesizer.
func NewSynthesizer(engine Engine, transcoder Transcoder, opts Options) *Synthesizer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Synthesizer{
		engine:     engine,
		transcoder: transcoder,
		models:     NewModelCache(engine, opts.Logger),
		slots:      semaphore.NewWeighted(int64(opts.Concurrency)),
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
}

// Models exposes the model cache
func (s *Synthesizer) Models() *ModelCache {
	return s.models
}

// Synthesize loads the speaker's model if needed, synthesizes text and
// transcodes the result into an AudioItem.
func (s *Synthesizer) Synthesize(ctx context.Context, text, messageID string, speakerID int) (item *AudioItem, err error) {
	start := time.Now()
	defer func() {
		s.metrics.SynthesisObserved(ctx, speakerID, time.Since(start), err)
	}()

	if err := s.models.EnsureLoaded(ctx, speakerID); err != nil {
		return nil, apperrors.NewSynthesisError("load", speakerID, err)
	}

	wav, err := s.synthesize(ctx, text, speakerID)
	if err != nil {
		return nil, apperrors.NewSynthesisError("synthesize", speakerID, err)
	}

	source, err := s.transcoder.ToStreamableFrames(ctx, wav)
	if err != nil {
		return nil, err
	}

	item = NewAudioItem(messageID, speakerID, text, source)
	s.logger.Debug("Synthesized utterance",
		zap.String("item_id", item.ID),
		zap.String("message_id", messageID),
		zap.Int("speaker_id", speakerID),
		zap.Int("wav_bytes", len(wav)),
		zap.Duration("took", time.Since(start)))
	return item, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, text string, speakerID int) ([]byte, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)
	return s.engine.Synthesize(ctx, text, speakerID)
}
