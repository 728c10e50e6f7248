// Package discord connects the speech pipeline to Discord: slash commands,
// message and voice state events, and Opus playback.
package discord

import (
	"context"
	"time"

	"texvoice/backend/internal/constants"
	"texvoice/backend/internal/dictionary"
	"texvoice/backend/internal/playback"
	"texvoice/backend/internal/router"
	"texvoice/backend/internal/settings"
	"texvoice/backend/internal/voicevox"
	apperrors "texvoice/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Persister saves documents changed by commands
type Persister interface {
	SaveAssignments(a *settings.Assignments) error
	SaveDictionary(src settings.DictionarySource) error
}

// Deps are the bot's collaborators
type Deps struct {
	Sessions       *playback.Manager
	Router         *router.Router
	Assignments    *settings.Assignments
	Dictionaries   *dictionary.Registry
	Allowlist      *settings.Allowlist
	Catalog        *voicevox.Catalog
	Store          Persister
	ConnectTimeout time.Duration
}

// Bot handles Discord events
type Bot struct {
	session        *discordgo.Session
	sessions       *playback.Manager
	router         *router.Router
	assignments    *settings.Assignments
	dicts          *dictionary.Registry
	allow          *settings.Allowlist
	catalog        *voicevox.Catalog
	store          Persister
	connectTimeout time.Duration
	logger         *zap.Logger
}

// NewBot creates a bot over an unopened discordgo session
func NewBot(dg *discordgo.Session, deps Deps, logger *zap.Logger) *Bot {
	if deps.ConnectTimeout <= 0 {
		deps.ConnectTimeout = 10 * time.Second
	}
	return &Bot{
		session:        dg,
		sessions:       deps.Sessions,
		router:         deps.Router,
		assignments:    deps.Assignments,
		dicts:          deps.Dictionaries,
		allow:          deps.Allowlist,
		catalog:        deps.Catalog,
		store:          deps.Store,
		connectTimeout: deps.ConnectTimeout,
		logger:         logger,
	}
}

// Intents are the gateway intents the bot needs
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsMessageContent

// AddHandlers subscribes the bot to gateway events
func (b *Bot) AddHandlers() {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onVoiceStateUpdate)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("Connected to Discord",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	content, err := m.ContentWithMoreMentionsReplaced(s)
	if err != nil {
		content = m.ContentWithMentionsReplaced()
	}

	msg := router.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		AuthorBot: m.Author.Bot,
		Content:   content,
	}
	if err := b.router.OnMessage(context.Background(), msg); err != nil {
		b.logger.Warn("Message not queued for speech",
			zap.String("message_id", m.ID),
			zap.String("guild_id", m.GuildID),
			zap.String("error_type", string(apperrors.TypeOf(err))),
			zap.Error(err))
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	if i.GuildID == "" {
		b.respond(i.Interaction, private(msgGuildOnly))
		return
	}
	user := interactionUser(i.Interaction)
	if user == nil {
		return
	}

	b.logger.Debug("Command received",
		zap.String("command", data.Name),
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", user.ID))

	switch data.Name {
	case constants.CommandVoice:
		b.respond(i.Interaction, b.voiceCommand(i.GuildID, user.ID, displayName(i.Interaction), optionValue(data, "voiceid")))
	case constants.CommandJoin:
		b.join(i.Interaction, user.ID)
	case constants.CommandLeave:
		b.leave(i.Interaction, user.ID)
	case constants.CommandSpeakerList:
		b.respondAll(i.Interaction, b.speakerListCommand())
	case constants.CommandDictionary:
		key := optionValue(data, "key")
		if key == nil {
			return
		}
		b.respond(i.Interaction, b.dictionaryCommand(i.GuildID, i.ChannelID, *key, optionValue(data, "value")))
	case constants.CommandDictList:
		b.respondAll(i.Interaction, b.dictListCommand(i.GuildID))
	}
}

// join connects to the caller's voice channel and opens a session
func (b *Bot) join(i *discordgo.Interaction, userID string) {
	channelID := b.voiceChannelOf(i.GuildID, userID)
	if channelID == "" {
		b.respond(i, private(msgUserNotInVoice))
		return
	}
	if _, ok := b.sessions.Get(i.GuildID); ok {
		b.respond(i, private(msgAlreadyConnected))
		return
	}

	// Joining can outlast the interaction deadline
	if err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		b.logger.Warn("Failed to defer join response", zap.Error(err))
	}

	vc, err := b.session.ChannelVoiceJoin(i.GuildID, channelID, false, true)
	if err != nil {
		b.logger.Error("Failed to join voice channel",
			zap.String("guild_id", i.GuildID),
			zap.String("channel_id", channelID),
			zap.Error(err))
		b.editResponse(i, msgConnectFailed)
		return
	}
	b.waitReady(vc)

	player := NewVoicePlayer(vc, b.logger)
	if _, err := b.sessions.Open(i.GuildID, channelID, player); err != nil {
		player.Disconnect()
		b.editResponse(i, b.sessionFailure(i.GuildID, err, msgConnectFailed))
		return
	}
	b.editResponse(i, msgConnected)
}

func (b *Bot) waitReady(vc *discordgo.VoiceConnection) {
	timeout := time.After(b.connectTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return
		}
		select {
		case <-timeout:
			b.logger.Warn("Voice connection not ready, continuing anyway",
				zap.String("guild_id", vc.GuildID))
			return
		case <-ticker.C:
		}
	}
}

// leave closes the guild's session. Only members in voice may do this.
func (b *Bot) leave(i *discordgo.Interaction, userID string) {
	if _, ok := b.sessions.Get(i.GuildID); !ok {
		b.respond(i, private(msgNotConnected))
		return
	}
	if b.voiceChannelOf(i.GuildID, userID) == "" {
		b.respond(i, private(msgLeaveNeedsVoice))
		return
	}

	if err := b.sessions.Close(i.GuildID); err != nil {
		if apperrors.IsUserFacing(err) {
			b.respond(i, private(b.sessionFailure(i.GuildID, err, msgNotConnected)))
			return
		}
		b.logger.Warn("Error while leaving voice", zap.String("guild_id", i.GuildID), zap.Error(err))
	}
	b.respond(i, private(msgDisconnected))
}

// onVoiceStateUpdate ends the session when the bot is disconnected or is
// left alone in its channel
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	sess, ok := b.sessions.Get(e.GuildID)
	if !ok || s.State.User == nil {
		return
	}
	botID := s.State.User.ID

	var voiceStates []*discordgo.VoiceState
	if guild, err := s.State.Guild(e.GuildID); err == nil {
		s.State.RLock()
		voiceStates = append(voiceStates, guild.VoiceStates...)
		s.State.RUnlock()
	}

	reason := leaveReason(e.VoiceState, e.BeforeUpdate, botID, sess.ChannelID, voiceStates)
	if reason == "" {
		return
	}

	b.logger.Info("Leaving voice channel",
		zap.String("guild_id", e.GuildID),
		zap.String("channel_id", sess.ChannelID),
		zap.String("reason", reason))
	if err := b.sessions.Close(e.GuildID); err != nil && !apperrors.IsErrorType(err, apperrors.ErrorTypeSessionState) {
		b.logger.Warn("Error while leaving voice", zap.String("guild_id", e.GuildID), zap.Error(err))
	}
}

// leaveReason decides whether a voice state change should end the session
func leaveReason(after, before *discordgo.VoiceState, botID, channelID string, voiceStates []*discordgo.VoiceState) string {
	if after == nil {
		return ""
	}
	if after.UserID == botID && after.ChannelID == "" {
		return "bot disconnected"
	}
	if before == nil || before.ChannelID != channelID || after.ChannelID == channelID {
		return ""
	}
	for _, vs := range voiceStates {
		if vs.ChannelID == channelID && vs.UserID != botID && vs.UserID != after.UserID {
			return ""
		}
	}
	return "channel empty"
}

func (b *Bot) voiceChannelOf(guildID, userID string) string {
	return voiceChannelOf(b.session.State, guildID, userID)
}

func (b *Bot) respond(i *discordgo.Interaction, r reply) {
	data := &discordgo.InteractionResponseData{Content: r.content}
	if r.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("Failed to respond to command", zap.Error(err))
	}
}

// respondAll sends the first reply as the response and the rest as
// follow-ups
func (b *Bot) respondAll(i *discordgo.Interaction, replies []reply) {
	if len(replies) == 0 {
		return
	}
	b.respond(i, replies[0])
	for _, r := range replies[1:] {
		params := &discordgo.WebhookParams{Content: r.content}
		if r.ephemeral {
			params.Flags = discordgo.MessageFlagsEphemeral
		}
		if _, err := b.session.FollowupMessageCreate(i, false, params); err != nil {
			b.logger.Error("Failed to send follow-up", zap.Error(err))
			return
		}
	}
}

func (b *Bot) editResponse(i *discordgo.Interaction, content string) {
	if _, err := b.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}); err != nil {
		b.logger.Error("Failed to edit command response", zap.Error(err))
	}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func displayName(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	user := interactionUser(i)
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

func optionValue(data discordgo.ApplicationCommandInteractionData, name string) *string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			v := opt.StringValue()
			return &v
		}
	}
	return nil
}
