package playback

import (
	"context"
	"errors"
	"io"
	"sync"

	"texvoice/backend/internal/tts"
)

type fakeSource struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSource) ReadFrame() ([]byte, error) { return nil, io.EOF }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newItem(text string) *tts.AudioItem {
	return tts.NewAudioItem("msg-"+text, 1, text, &fakeSource{})
}

func sourceOf(item *tts.AudioItem) *fakeSource {
	return item.Source.(*fakeSource)
}

var errPlay = errors.New("voice not ready")

// fakePlayer records Play calls. With auto set it completes every item
// right away; otherwise tests complete items with completeNext.
type fakePlayer struct {
	mu             sync.Mutex
	auto           bool
	failTexts      map[string]bool
	started        []string
	callbacks      []func(error)
	items          []*tts.AudioItem
	outstanding    int
	maxOutstanding int
	disconnects    int
}

func (p *fakePlayer) Play(item *tts.AudioItem, onComplete func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failTexts[item.Text] {
		return errPlay
	}

	p.started = append(p.started, item.Text)
	p.outstanding++
	if p.outstanding > p.maxOutstanding {
		p.maxOutstanding = p.outstanding
	}

	done := func(err error) {
		item.Close()
		p.mu.Lock()
		p.outstanding--
		p.mu.Unlock()
		onComplete(err)
	}
	if p.auto {
		go done(nil)
		return nil
	}
	p.callbacks = append(p.callbacks, done)
	p.items = append(p.items, item)
	return nil
}

// completeNext finishes the oldest item still playing
func (p *fakePlayer) completeNext(err error) {
	p.mu.Lock()
	cb := p.callbacks[0]
	p.callbacks = p.callbacks[1:]
	p.mu.Unlock()
	cb(err)
}

func (p *fakePlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding > 0
}

func (p *fakePlayer) Disconnect() error {
	p.mu.Lock()
	p.disconnects++
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) startedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.started...)
}

func (p *fakePlayer) disconnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// fakeSynth reports each call on calls. With gated set every call waits
// for a value on release and ignores cancellation.
type fakeSynth struct {
	gated   bool
	release chan struct{}
	calls   chan string
	err     error

	mu    sync.Mutex
	items []*tts.AudioItem
}

func newFakeSynth(gated bool) *fakeSynth {
	return &fakeSynth{
		gated:   gated,
		release: make(chan struct{}),
		calls:   make(chan string, 16),
	}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, messageID string, speakerID int) (*tts.AudioItem, error) {
	f.calls <- text
	if f.gated {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	item := tts.NewAudioItem(messageID, speakerID, text, &fakeSource{})
	f.mu.Lock()
	f.items = append(f.items, item)
	f.mu.Unlock()
	return item, nil
}

func (f *fakeSynth) produced() []*tts.AudioItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*tts.AudioItem(nil), f.items...)
}
