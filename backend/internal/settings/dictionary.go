package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"texvoice/backend/internal/dictionary"
)

// GuildEntries is one guild's stored dictionary in registration order
type GuildEntries struct {
	GuildID string
	Entries []dictionary.Entry
}

// DecodeDictionary reads {"guild":{"pattern":"reading",...},...} keeping
// the order in which patterns appear, since rules cascade in that order.
func DecodeDictionary(r io.Reader) ([]GuildEntries, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("dictionary document must be an object")
	}

	var out []GuildEntries
	for dec.More() {
		guildID, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		entries, err := decodeEntries(dec)
		if err != nil {
			return nil, fmt.Errorf("guild %s: %w", guildID, err)
		}
		out = append(out, GuildEntries{GuildID: guildID, Entries: entries})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeEntries(dec *json.Decoder) ([]dictionary.Entry, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("entries must be an object")
	}

	var entries []dictionary.Entry
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var replacement string
		if err := dec.Decode(&replacement); err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		entries = append(entries, dictionary.Entry{Key: key, Replacement: replacement})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// EncodeDictionary writes every guild's entries, guilds sorted by id and
// entries in registration order
func EncodeDictionary(w io.Writer, snapshot map[string][]dictionary.Entry) error {
	guilds := make([]string, 0, len(snapshot))
	for id := range snapshot {
		guilds = append(guilds, id)
	}
	sort.Strings(guilds)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, guildID := range guilds {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, guildID); err != nil {
			return err
		}
		buf.WriteString(":{")
		for j, e := range snapshot[guildID] {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(&buf, e.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeString(&buf, e.Replacement); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	_, err := w.Write(buf.Bytes())
	return err
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
