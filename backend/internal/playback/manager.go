package playback

import (
	"context"
	"slices"
	"strings"
	"sync"

	"texvoice/backend/internal/constants"
	"texvoice/backend/internal/metrics"
	apperrors "texvoice/backend/pkg/errors"

	"go.uber.org/zap"
)

// Options configures sessions created by a Manager
type Options struct {
	// MaxPending bounds utterances waiting for synthesis per session
	MaxPending int
	Metrics    *metrics.Recorder
	Logger     *zap.Logger
}

// Manager tracks at most one session per guild
type Manager struct {
	synth Synthesizer
	opts  Options

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a manager whose sessions share one synthesizer
func NewManager(synth Synthesizer, opts Options) *Manager {
	if opts.MaxPending < 1 {
		opts.MaxPending = constants.DefaultMaxPendingUtterances
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		synth:    synth,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for a guild on an already connected player
func (m *Manager) Open(guildID, channelID string, player Player) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[guildID]; exists {
		return nil, apperrors.NewSessionStateError(guildID, apperrors.ReasonAlreadyConnected)
	}

	s := newSession(guildID, channelID, player, m.synth, m.opts)
	m.sessions[guildID] = s
	m.opts.Metrics.SessionOpened(context.Background())
	m.opts.Logger.Info("Session opened",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID))
	return s, nil
}

// Get returns the guild's session
func (m *Manager) Get(guildID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[guildID]
	return s, ok
}

// Speaker returns the guild's session as a Speaker
func (m *Manager) Speaker(guildID string) (Speaker, bool) {
	s, ok := m.Get(guildID)
	if !ok {
		return nil, false
	}
	return s, true
}

// Close ends and removes the guild's session
func (m *Manager) Close(guildID string) error {
	m.mu.Lock()
	s, exists := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()

	if !exists {
		return apperrors.NewSessionStateError(guildID, apperrors.ReasonNotConnected)
	}

	m.opts.Metrics.SessionClosed(context.Background())
	return s.Close()
}

// CloseAll ends every session and waits for their workers
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.opts.Metrics.SessionClosed(context.Background())
		if err := s.Close(); err != nil {
			m.opts.Logger.Warn("Failed to disconnect voice",
				zap.String("guild_id", s.GuildID),
				zap.Error(err))
		}
	}
	for _, s := range sessions {
		s.Wait()
	}
}

// List returns a summary of every session ordered by guild id
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	slices.SortFunc(infos, func(a, b SessionInfo) int {
		return strings.Compare(a.GuildID, b.GuildID)
	})
	return infos
}
