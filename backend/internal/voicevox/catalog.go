package voicevox

import (
	"context"
	"fmt"
	"strings"
)

// VoiceStyle is a resolved catalog entry
type VoiceStyle struct {
	ID          int
	SpeakerName string
	StyleName   string
}

// Catalog is the static list of speakers, fetched once at startup
type Catalog struct {
	speakers []Speaker
	byID     map[int]VoiceStyle
}

// NewCatalog indexes speakers by style ID
func NewCatalog(speakers []Speaker) *Catalog {
	c := &Catalog{
		speakers: speakers,
		byID:     make(map[int]VoiceStyle),
	}
	for _, sp := range speakers {
		for _, st := range sp.Styles {
			c.byID[st.ID] = VoiceStyle{ID: st.ID, SpeakerName: sp.Name, StyleName: st.Name}
		}
	}
	return c
}

// LoadCatalog fetches the speaker list from the engine
func LoadCatalog(ctx context.Context, client *Client) (*Catalog, error) {
	speakers, err := client.Speakers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load speaker catalog: %w", err)
	}
	return NewCatalog(speakers), nil
}

// Lookup resolves a speaker ID
func (c *Catalog) Lookup(id int) (VoiceStyle, bool) {
	st, ok := c.byID[id]
	return st, ok
}

// DisplayName renders "speaker(style)", or "" when the ID is unknown
func (c *Catalog) DisplayName(id int) string {
	st, ok := c.byID[id]
	if !ok {
		return ""
	}
	return st.SpeakerName + "(" + st.StyleName + ")"
}

// Speakers returns the catalog in engine order
func (c *Catalog) Speakers() []Speaker {
	return c.speakers
}

// Len returns the number of selectable styles
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Render lists every speaker followed by its right-aligned style IDs
func (c *Catalog) Render() string {
	var b strings.Builder
	for _, sp := range c.speakers {
		b.WriteString(sp.Name)
		b.WriteString("\n")
		for _, st := range sp.Styles {
			fmt.Fprintf(&b, "%5d:   %s\n", st.ID, st.Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}
