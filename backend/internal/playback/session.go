package playback

import (
	"context"
	"sync"
	"time"

	"texvoice/backend/internal/metrics"
	"texvoice/backend/internal/tts"
	apperrors "texvoice/backend/pkg/errors"

	"go.uber.org/zap"
)

// Utterance is one message's speakable text with the voice to read it in
type Utterance struct {
	MessageID string
	SpeakerID int
	Text      string
}

// Speaker accepts utterances for playback
type Speaker interface {
	Speak(u Utterance) error
}

// Synthesizer turns text into a playable item
type Synthesizer interface {
	Synthesize(ctx context.Context, text, messageID string, speakerID int) (*tts.AudioItem, error)
}

// SessionInfo summarises a session for status views
type SessionInfo struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	OpenedAt  time.Time `json:"opened_at"`
	State     string    `json:"state"`
	Pending   int       `json:"pending"`
	Backlog   int       `json:"backlog"`
	Speaking  bool      `json:"speaking"`
	Current   *ItemInfo `json:"current,omitempty"`
}

// Session is a guild's active voice connection. Utterances are synthesized
// one at a time in submission order and then enqueued for playback.
type Session struct {
	GuildID   string
	ChannelID string
	OpenedAt  time.Time

	player  Player
	synth   Synthesizer
	queue   *Queue
	jobs    chan Utterance
	metrics *metrics.Recorder
	logger  *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newSession(guildID, channelID string, player Player, synth Synthesizer, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger.With(zap.String("guild_id", guildID), zap.String("channel_id", channelID))

	s := &Session{
		GuildID:   guildID,
		ChannelID: channelID,
		OpenedAt:  time.Now(),
		player:    player,
		synth:     synth,
		queue:     NewQueue(guildID, player, opts.Metrics, opts.Logger),
		jobs:      make(chan Utterance, opts.MaxPending),
		metrics:   opts.Metrics,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.work()
	return s
}

// Speak submits an utterance. It never blocks: when the backlog is full the
// utterance is dropped and a SessionStateError returned.
func (s *Session) Speak(u Utterance) error {
	if s.ctx.Err() != nil {
		return apperrors.NewSessionStateError(s.GuildID, apperrors.ReasonClosed)
	}

	select {
	case s.jobs <- u:
		return nil
	default:
		s.logger.Warn("Speech backlog full, dropping message",
			zap.String("message_id", u.MessageID),
			zap.Int("backlog", cap(s.jobs)))
		s.metrics.ItemDropped(s.ctx, s.GuildID, metrics.DropBacklog)
		return apperrors.NewSessionStateError(s.GuildID, apperrors.ReasonBacklogFull)
	}
}

func (s *Session) work() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case u := <-s.jobs:
			if s.ctx.Err() != nil {
				s.metrics.ItemDropped(context.Background(), s.GuildID, metrics.DropFlushed)
				s.drain()
				return
			}
			s.process(u)
		}
	}
}

func (s *Session) process(u Utterance) {
	item, err := s.synth.Synthesize(s.ctx, u.Text, u.MessageID, u.SpeakerID)
	if err != nil {
		if s.ctx.Err() != nil {
			s.metrics.ItemDropped(context.Background(), s.GuildID, metrics.DropFlushed)
			return
		}
		reason := metrics.DropSynthesis
		if apperrors.IsErrorType(err, apperrors.ErrorTypeTranscode) {
			reason = metrics.DropTranscode
		}
		s.logger.Error("Failed to synthesize message",
			zap.String("message_id", u.MessageID),
			zap.Int("speaker_id", u.SpeakerID),
			zap.String("error_type", string(apperrors.TypeOf(err))),
			zap.Error(err))
		s.metrics.ItemDropped(s.ctx, s.GuildID, reason)
		return
	}

	// Closed while synthesizing: the result is never played.
	if s.ctx.Err() != nil {
		item.Close()
		s.metrics.ItemDropped(context.Background(), s.GuildID, metrics.DropFlushed)
		return
	}

	if err := s.queue.Enqueue(item); err != nil {
		s.metrics.ItemDropped(context.Background(), s.GuildID, metrics.DropFlushed)
	}
}

func (s *Session) drain() {
	for {
		select {
		case <-s.jobs:
			s.metrics.ItemDropped(context.Background(), s.GuildID, metrics.DropFlushed)
		default:
			return
		}
	}
}

// Close stops the session: queued utterances are discarded without being
// synthesized, pending audio is flushed and the player disconnected.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		dropped := s.queue.Flush()
		s.closeErr = s.player.Disconnect()
		s.logger.Info("Session closed", zap.Int("flushed_items", dropped))
	})
	return s.closeErr
}

// Wait blocks until the synthesis worker has exited
func (s *Session) Wait() {
	s.wg.Wait()
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	return s.ctx.Err() != nil
}

// Info returns a status summary
func (s *Session) Info() SessionInfo {
	snap := s.queue.Snapshot()
	return SessionInfo{
		GuildID:   s.GuildID,
		ChannelID: s.ChannelID,
		OpenedAt:  s.OpenedAt,
		State:     snap.State.String(),
		Pending:   snap.Pending,
		Backlog:   len(s.jobs),
		Speaking:  s.player.IsPlaying(),
		Current:   snap.Current,
	}
}
