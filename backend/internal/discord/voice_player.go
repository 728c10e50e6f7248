package discord

import (
	"errors"
	"io"
	"sync"
	"time"

	"texvoice/backend/internal/tts"
	apperrors "texvoice/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// frameSendTimeout is how long one Opus frame may wait for the voice
// sender before the item is abandoned
const frameSendTimeout = 5 * time.Second

var (
	errPlayerBusy   = errors.New("player is already streaming")
	errPlayerClosed = errors.New("voice connection closed")
)

// voiceLink is the control side of a voice connection
type voiceLink interface {
	Speaking(b bool) error
	Disconnect() error
}

// VoicePlayer streams AudioItems into a Discord voice connection
type VoicePlayer struct {
	link   voiceLink
	send   chan<- []byte
	logger *zap.Logger

	mu       sync.Mutex
	playing  bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewVoicePlayer wraps a connected voice connection
func NewVoicePlayer(vc *discordgo.VoiceConnection, logger *zap.Logger) *VoicePlayer {
	return newVoicePlayer(vc, vc.OpusSend, logger.With(zap.String("guild_id", vc.GuildID)))
}

func newVoicePlayer(link voiceLink, send chan<- []byte, logger *zap.Logger) *VoicePlayer {
	return &VoicePlayer{
		link:   link,
		send:   send,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Play starts streaming item in the background. The item is closed and
// onComplete called once streaming ends.
func (p *VoicePlayer) Play(item *tts.AudioItem, onComplete func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.stop:
		return apperrors.NewDiscordError("play", errPlayerClosed)
	default:
	}
	if p.playing {
		return apperrors.NewDiscordError("play", errPlayerBusy)
	}
	p.playing = true

	go p.stream(item, onComplete)
	return nil
}

func (p *VoicePlayer) stream(item *tts.AudioItem, onComplete func(error)) {
	err := p.pump(item)
	item.Close()

	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()

	onComplete(err)
}

func (p *VoicePlayer) pump(item *tts.AudioItem) error {
	if err := p.link.Speaking(true); err != nil {
		p.logger.Warn("Failed to set speaking state", zap.Error(err))
	}
	defer func() {
		if err := p.link.Speaking(false); err != nil {
			p.logger.Debug("Failed to clear speaking state", zap.Error(err))
		}
	}()

	timer := time.NewTimer(frameSendTimeout)
	defer timer.Stop()

	frames := 0
	for {
		frame, err := item.Source.ReadFrame()
		if err == io.EOF {
			p.logger.Debug("Finished streaming item",
				zap.String("item_id", item.ID),
				zap.Int("frames", frames))
			return nil
		}
		if err != nil {
			return err
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(frameSendTimeout)

		select {
		case p.send <- frame:
			frames++
		case <-p.stop:
			return nil
		case <-timer.C:
			return apperrors.NewDiscordError("send frame", errors.New("voice sender stalled"))
		}
	}
}

// IsPlaying reports whether an item is being streamed
func (p *VoicePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Disconnect stops any stream and leaves the voice channel
func (p *VoicePlayer) Disconnect() error {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	if err := p.link.Disconnect(); err != nil {
		return apperrors.NewDiscordError("voice disconnect", err)
	}
	return nil
}
