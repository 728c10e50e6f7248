package discord

import (
	"context"

	"texvoice/backend/internal/router"
	apperrors "texvoice/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
)

// Presence answers voice membership from the gateway state cache
type Presence struct {
	state *discordgo.State
}

// NewPresence creates a Presence over the session's state
func NewPresence(dg *discordgo.Session) *Presence {
	return &Presence{state: dg.State}
}

// InVoice reports whether a member is in any voice channel of the guild
func (p *Presence) InVoice(guildID, userID string) bool {
	return voiceChannelOf(p.state, guildID, userID) != ""
}

func voiceChannelOf(state *discordgo.State, guildID, userID string) string {
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// Replier posts replies to chat messages
type Replier struct {
	session *discordgo.Session
}

// NewReplier creates a Replier
func NewReplier(dg *discordgo.Session) *Replier {
	return &Replier{session: dg}
}

// Reply answers a message in its channel
func (r *Replier) Reply(ctx context.Context, msg router.Message, content string) error {
	_, err := r.session.ChannelMessageSendReply(msg.ChannelID, content, &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return apperrors.NewDiscordError("reply", err)
	}
	return nil
}
