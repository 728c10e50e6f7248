// Package router decides which chat messages are read aloud and hands
// their speakable text to the guild's session.
package router

import (
	"context"

	"texvoice/backend/internal/dictionary"
	"texvoice/backend/internal/playback"
	"texvoice/backend/internal/textproc"

	"go.uber.org/zap"
)

// Message is a chat message with mentions already resolved to names
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
}

// Sessions finds the active session for a guild
type Sessions interface {
	Speaker(guildID string) (playback.Speaker, bool)
}

// Assignments maps a guild member to their chosen voice
type Assignments interface {
	SpeakerFor(guildID, userID string) (int, bool)
}

// ChannelPolicy reports whether a text channel is read aloud
type ChannelPolicy interface {
	ChannelAllowed(channelID string) bool
}

// Presence reports whether a member is currently in a voice channel
type Presence interface {
	InVoice(guildID, userID string) bool
}

// Dictionaries returns a guild's pronunciation dictionary, nil if none
type Dictionaries interface {
	Get(guildID string) *dictionary.Dictionary
}

// Replier posts a reply to a message in its channel
type Replier interface {
	Reply(ctx context.Context, msg Message, content string) error
}

// Deps are the collaborators a Router consults
type Deps struct {
	Sessions     Sessions
	Assignments  Assignments
	Channels     ChannelPolicy
	Presence     Presence
	Dictionaries Dictionaries
	Replier      Replier
}

// Router gates messages and forwards eligible ones for speech
type Router struct {
	deps     Deps
	pipeline *textproc.Pipeline
	logger   *zap.Logger
}

// New creates a router
func New(deps Deps, pipeline *textproc.Pipeline, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{deps: deps, pipeline: pipeline, logger: logger}
}

// OnMessage reads an eligible message aloud. Ineligible messages are
// ignored and return nil; the error is from handing the text to the
// session.
func (r *Router) OnMessage(ctx context.Context, msg Message) error {
	speaker, speakerID, reason := r.gate(msg)
	if speaker == nil {
		r.logger.Debug("Message ignored",
			zap.String("message_id", msg.ID),
			zap.String("reason", reason))
		return nil
	}

	var rw textproc.Rewriter
	if d := r.deps.Dictionaries.Get(msg.GuildID); d != nil {
		rw = d
	}
	result := r.pipeline.Transform(msg.Content, rw)

	if result.DiceReport != "" {
		if err := r.deps.Replier.Reply(ctx, msg, result.DiceReport); err != nil {
			r.logger.Warn("Failed to post dice result",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}

	if result.Text == "" {
		return nil
	}

	return speaker.Speak(playback.Utterance{
		MessageID: msg.ID,
		SpeakerID: speakerID,
		Text:      result.Text,
	})
}

// gate applies the eligibility checks in order and returns the session to
// speak on, or the reason the message is skipped
func (r *Router) gate(msg Message) (playback.Speaker, int, string) {
	if msg.AuthorBot {
		return nil, 0, "bot author"
	}
	if msg.GuildID == "" {
		return nil, 0, "not in a guild"
	}
	speaker, ok := r.deps.Sessions.Speaker(msg.GuildID)
	if !ok {
		return nil, 0, "no voice session"
	}
	speakerID, ok := r.deps.Assignments.SpeakerFor(msg.GuildID, msg.AuthorID)
	if !ok {
		return nil, 0, "no speaker assigned"
	}
	if !r.deps.Channels.ChannelAllowed(msg.ChannelID) {
		return nil, 0, "channel not allowed"
	}
	if !r.deps.Presence.InVoice(msg.GuildID, msg.AuthorID) {
		return nil, 0, "author not in voice"
	}
	return speaker, speakerID, ""
}
