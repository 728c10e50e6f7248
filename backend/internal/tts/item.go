// Package tts turns speakable text into playable audio items using a
// speech engine and a transcoder.
package tts

import (
	"sync"

	"texvoice/backend/internal/audio"

	"github.com/google/uuid"
)

// AudioItem is one synthesized utterance ready for playback. Its frames
// are consumed once.
type AudioItem struct {
	ID        string
	MessageID string
	SpeakerID int
	Text      string
	Source    audio.FrameSource

	closeOnce sync.Once
}

// NewAudioItem wraps a frame source with the message it was made from
func NewAudioItem(messageID string, speakerID int, text string, source audio.FrameSource) *AudioItem {
	return &AudioItem{
		ID:        uuid.New().String(),
		MessageID: messageID,
		SpeakerID: speakerID,
		Text:      text,
		Source:    source,
	}
}

// Close releases the underlying frames. Safe to call more than once.
func (a *AudioItem) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.Source != nil {
			err = a.Source.Close()
		}
	})
	return err
}
