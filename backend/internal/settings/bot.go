// Package settings reads and writes the bot's JSON documents: the bot
// settings (allowlists and token), per-user speaker assignments and the
// per-guild pronunciation dictionaries.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Snowflake is a Discord ID. Documents may store it as a JSON number or
// string; it is always written as a string.
type Snowflake string

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Snowflake(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("snowflake must be a number or string: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("snowflake %s is not an integer", n)
	}
	*s = Snowflake(n.String())
	return nil
}

func (s Snowflake) String() string {
	return string(s)
}

// BotSettings is the bot settings document
type BotSettings struct {
	GuildIDs   []Snowflake `json:"guildIDs"`
	ChannelIDs []Snowflake `json:"channelIDs"`
	JTalkPath  string      `json:"jtalkPath,omitempty"`
	Token      string      `json:"token"`
}

// Allowlist answers which guilds and text channels the bot serves. It is
// read-only once built.
type Allowlist struct {
	guilds   []string
	channels map[string]struct{}
}

// Allowlist builds the allowlist described by the settings
func (b *BotSettings) Allowlist() *Allowlist {
	a := &Allowlist{channels: make(map[string]struct{}, len(b.ChannelIDs))}
	for _, id := range b.GuildIDs {
		if !slices.Contains(a.guilds, string(id)) {
			a.guilds = append(a.guilds, string(id))
		}
	}
	for _, id := range b.ChannelIDs {
		a.channels[string(id)] = struct{}{}
	}
	return a
}

// ChannelAllowed reports whether the text channel may be read aloud and
// may edit the dictionary
func (a *Allowlist) ChannelAllowed(channelID string) bool {
	_, ok := a.channels[channelID]
	return ok
}

// Guilds returns the guilds that slash commands are registered in. Empty
// means commands are registered globally.
func (a *Allowlist) Guilds() []string {
	return slices.Clone(a.guilds)
}
