package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"texvoice/backend/internal/constants"
	"texvoice/backend/internal/settings"
	apperrors "texvoice/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// reply is a command's response
type reply struct {
	content   string
	ephemeral bool
}

func private(format string, args ...any) reply {
	return reply{content: fmt.Sprintf(format, args...), ephemeral: true}
}

func public(format string, args ...any) reply {
	return reply{content: fmt.Sprintf(format, args...)}
}

// Commands returns the slash command definitions
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        constants.CommandVoice,
			Description: "Voiceの選択",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "voiceid",
					Description: "話者ID",
				},
			},
		},
		{
			Name:        constants.CommandJoin,
			Description: "TextVoiceを通話に参加させます。",
		},
		{
			Name:        constants.CommandLeave,
			Description: "TextVoiceを通話から切断します。",
		},
		{
			Name:        constants.CommandSpeakerList,
			Description: "話者IDの一覧を表示します。",
		},
		{
			Name:        constants.CommandDictionary,
			Description: "辞書に登録、削除ができます。",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "key",
					Description: "置き換える語句(正規表現)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "value",
					Description: "読み方(省略すると削除)",
				},
			},
		},
		{
			Name:        constants.CommandDictList,
			Description: "辞書の一覧を表示します。",
		},
	}
}

// RegisterCommands installs the commands in every allow-listed guild, or
// globally when the allowlist names no guild
func (b *Bot) RegisterCommands() error {
	appID := b.session.State.User.ID
	guilds := b.allow.Guilds()
	if len(guilds) == 0 {
		guilds = []string{""}
	}

	for _, guildID := range guilds {
		created, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
		if err != nil {
			b.logger.Error("Failed to register commands",
				zap.String("guild_id", guildID),
				zap.Error(err))
			if guildID == "" {
				return apperrors.NewDiscordError("register commands", err)
			}
			continue
		}
		names := make([]string, 0, len(created))
		for _, c := range created {
			names = append(names, c.Name)
		}
		b.logger.Info("Commands registered",
			zap.String("guild_id", guildID),
			zap.Strings("commands", names))
	}
	return nil
}

// voiceCommand shows or sets the caller's speaker
func (b *Bot) voiceCommand(guildID, userID, displayName string, voiceID *string) reply {
	if voiceID == nil {
		sa, ok := b.assignments.Get(guildID, userID)
		if !ok {
			return private(msgSpeakerUnset)
		}
		id := int(sa.SpeakerID)
		return private(msgSpeakerCurrent, id, b.catalog.DisplayName(id))
	}

	id, err := strconv.Atoi(strings.TrimSpace(*voiceID))
	if err != nil {
		return private(msgSpeakerUnknown, *voiceID)
	}
	if _, ok := b.catalog.Lookup(id); !ok {
		return private(msgSpeakerUnknown, *voiceID)
	}

	b.assignments.Set(guildID, userID, settings.SpeakerAssignment{
		SpeakerID:   settings.SpeakerID(id),
		DisplayName: displayName,
	})
	if err := b.store.SaveAssignments(b.assignments); err != nil {
		b.logger.Error("Failed to persist speaker assignment",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
	}

	b.logger.Info("Speaker assigned",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Int("speaker_id", id))
	return public(msgSpeakerAssigned, displayName, id, b.catalog.DisplayName(id))
}

// dictionaryCommand registers key with a reading, or removes it when value
// is nil
func (b *Bot) dictionaryCommand(guildID, channelID, key string, value *string) reply {
	if !b.allow.ChannelAllowed(channelID) {
		return private(msgChannelNotAllowed)
	}

	var out reply
	if value == nil {
		d := b.dicts.Get(guildID)
		if d == nil {
			return public(msgDictNotFound, key)
		}
		if err := d.Unregister(key); err != nil {
			return public(msgDictNotFound, key)
		}
		out = public(msgDictRemoved, key)
	} else {
		err := b.dicts.Ensure(guildID).Register(key, *value)
		switch {
		case err == nil:
			out = public(msgDictRegistered, key, *value)
		case apperrors.IsErrorType(err, apperrors.ErrorTypePattern):
			return public(msgDictSyntaxError, key)
		default:
			return public(msgDictBadReading, *value)
		}
	}

	if err := b.store.SaveDictionary(b.dicts); err != nil {
		b.logger.Error("Failed to persist dictionary",
			zap.String("guild_id", guildID),
			zap.Error(err))
	}
	return out
}

// dictListCommand lists the guild's rules in order
func (b *Bot) dictListCommand(guildID string) []reply {
	d := b.dicts.Get(guildID)
	if d == nil || d.Len() == 0 {
		return []reply{public(msgDictEmpty)}
	}

	var body strings.Builder
	for key, value := range d.List() {
		fmt.Fprintf(&body, "%s : %s\n", key, value)
	}
	return codeBlockReplies(body.String())
}

// speakerListCommand lists every selectable voice
func (b *Bot) speakerListCommand() []reply {
	return codeBlockReplies(b.catalog.Render())
}

func codeBlockReplies(body string) []reply {
	chunks := splitCodeBlock(body, constants.DiscordMaxMessageLength)
	out := make([]reply, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, reply{content: c, ephemeral: true})
	}
	return out
}

// sessionFailure picks the reply for a failed session command. Errors the
// invoker cannot act on are logged and answered with fallback.
func (b *Bot) sessionFailure(guildID string, err error, fallback string) string {
	if !apperrors.IsUserFacing(err) {
		b.logger.Error("Session command failed", zap.String("guild_id", guildID), zap.Error(err))
		return fallback
	}

	var state *apperrors.SessionStateError
	if errors.As(err, &state) {
		switch state.Reason {
		case apperrors.ReasonAlreadyConnected:
			return msgAlreadyConnected
		case apperrors.ReasonNotConnected:
			return msgNotConnected
		}
	}
	return fallback
}
