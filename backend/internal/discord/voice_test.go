package discord

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"texvoice/backend/internal/tts"
	apperrors "texvoice/backend/pkg/errors"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLink struct {
	mu          sync.Mutex
	speaking    []bool
	disconnects int
}

func (f *fakeLink) Speaking(b bool) error {
	f.mu.Lock()
	f.speaking = append(f.speaking, b)
	f.mu.Unlock()
	return nil
}

func (f *fakeLink) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return nil
}

type sliceSource struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	closed bool
}

func (s *sliceSource) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *sliceSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("onComplete not called")
		return nil
	}
}

func TestVoicePlayer_StreamsAllFrames(t *testing.T) {
	link := &fakeLink{}
	send := make(chan []byte, 8)
	p := newVoicePlayer(link, send, zap.NewNop())

	src := &sliceSource{frames: [][]byte{{1}, {2}, {3}}}
	done := make(chan error, 1)
	require.NoError(t, p.Play(tts.NewAudioItem("m", 1, "t", src), func(err error) { done <- err }))

	require.NoError(t, waitDone(t, done))
	assert.Equal(t, []byte{1}, <-send)
	assert.Equal(t, []byte{2}, <-send)
	assert.Equal(t, []byte{3}, <-send)
	assert.True(t, src.isClosed())
	assert.False(t, p.IsPlaying())

	link.mu.Lock()
	assert.Equal(t, []bool{true, false}, link.speaking)
	link.mu.Unlock()
}

func TestVoicePlayer_RejectsConcurrentPlay(t *testing.T) {
	send := make(chan []byte)
	p := newVoicePlayer(&fakeLink{}, send, zap.NewNop())

	done := make(chan error, 1)
	require.NoError(t, p.Play(tts.NewAudioItem("m", 1, "a", &sliceSource{frames: [][]byte{{1}}}), func(err error) { done <- err }))
	assert.True(t, p.IsPlaying())

	err := p.Play(tts.NewAudioItem("m", 1, "b", &sliceSource{}), func(error) {})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeDiscord))

	<-send
	require.NoError(t, waitDone(t, done))
}

func TestVoicePlayer_DisconnectStopsStream(t *testing.T) {
	link := &fakeLink{}
	send := make(chan []byte)
	p := newVoicePlayer(link, send, zap.NewNop())

	src := &sliceSource{frames: [][]byte{{1}, {2}}}
	done := make(chan error, 1)
	require.NoError(t, p.Play(tts.NewAudioItem("m", 1, "t", src), func(err error) { done <- err }))

	require.NoError(t, p.Disconnect())
	assert.NoError(t, waitDone(t, done))
	assert.True(t, src.isClosed())
	assert.Equal(t, 1, link.disconnects)

	err := p.Play(tts.NewAudioItem("m", 1, "late", &sliceSource{}), func(error) {})
	assert.Error(t, err)
}

func TestVoicePlayer_ReadErrorReported(t *testing.T) {
	send := make(chan []byte, 4)
	p := newVoicePlayer(&fakeLink{}, send, zap.NewNop())

	readErr := errors.New("corrupt page")
	done := make(chan error, 1)
	require.NoError(t, p.Play(tts.NewAudioItem("m", 1, "t", &sliceSource{frames: [][]byte{{1}}, err: readErr}), func(err error) { done <- err }))

	assert.ErrorIs(t, waitDone(t, done), readErr)
}

func TestLeaveReason(t *testing.T) {
	const bot, channel = "bot", "vc"
	states := func(users ...string) []*discordgo.VoiceState {
		out := []*discordgo.VoiceState{{UserID: bot, ChannelID: channel}}
		for _, u := range users {
			out = append(out, &discordgo.VoiceState{UserID: u, ChannelID: channel})
		}
		return out
	}

	tests := []struct {
		name   string
		after  *discordgo.VoiceState
		before *discordgo.VoiceState
		states []*discordgo.VoiceState
		want   string
	}{
		{
			name:  "bot disconnected",
			after: &discordgo.VoiceState{UserID: bot},
			want:  "bot disconnected",
		},
		{
			name:   "last member left",
			after:  &discordgo.VoiceState{UserID: "u1"},
			before: &discordgo.VoiceState{UserID: "u1", ChannelID: channel},
			states: states(),
			want:   "channel empty",
		},
		{
			name:   "others remain",
			after:  &discordgo.VoiceState{UserID: "u1"},
			before: &discordgo.VoiceState{UserID: "u1", ChannelID: channel},
			states: states("u2"),
		},
		{
			name:   "left another channel",
			after:  &discordgo.VoiceState{UserID: "u1"},
			before: &discordgo.VoiceState{UserID: "u1", ChannelID: "other"},
			states: states(),
		},
		{
			name:   "mute toggle in channel",
			after:  &discordgo.VoiceState{UserID: "u1", ChannelID: channel, SelfMute: true},
			before: &discordgo.VoiceState{UserID: "u1", ChannelID: channel},
			states: states("u1"),
		},
		{
			name:   "moved away and stale cache",
			after:  &discordgo.VoiceState{UserID: "u1", ChannelID: "other"},
			before: &discordgo.VoiceState{UserID: "u1", ChannelID: channel},
			states: states("u1"),
			want:   "channel empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leaveReason(tt.after, tt.before, bot, channel, tt.states))
		})
	}
}
