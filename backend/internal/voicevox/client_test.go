package voicevox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEngine struct {
	mu          sync.Mutex
	initialized map[string]bool
	lastQuery   string
	calls       []string
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	speaker := r.URL.Query().Get("speaker")
	switch r.URL.Path {
	case "/speakers":
		_ = json.NewEncoder(w).Encode([]Speaker{
			{Name: "四国めたん", Styles: []Style{{Name: "ノーマル", ID: 2}, {Name: "あまあま", ID: 0}}},
			{Name: "ずんだもん", Styles: []Style{{Name: "ノーマル", ID: 3}}},
		})
	case "/is_initialized_speaker":
		_ = json.NewEncoder(w).Encode(f.initialized[speaker])
	case "/initialize_speaker":
		if r.URL.Query().Get("skip_reinit") != "true" {
			http.Error(w, "expected skip_reinit", http.StatusBadRequest)
			return
		}
		f.initialized[speaker] = true
		w.WriteHeader(http.StatusNoContent)
	case "/audio_query":
		f.lastQuery = r.URL.Query().Get("text")
		_, _ = w.Write([]byte(`{"accent_phrases":[],"speedScale":1.0}`))
	case "/synthesis":
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") != "application/json" || len(body) == 0 {
			http.Error(w, "missing query", http.StatusUnprocessableEntity)
			return
		}
		_, _ = w.Write([]byte("RIFF....WAVE"))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeEngine) {
	engine := &fakeEngine{initialized: make(map[string]bool)}
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, zap.NewNop()), engine
}

func TestClient_ModelLifecycle(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	loaded, err := client.IsModelLoaded(ctx, 3)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, client.LoadModel(ctx, 3))

	loaded, err = client.IsModelLoaded(ctx, 3)
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestClient_Synthesize(t *testing.T) {
	client, engine := newTestClient(t)

	wav, err := client.Synthesize(context.Background(), "こんにちは", 3)

	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(wav))
	assert.Equal(t, "こんにちは", engine.lastQuery)
	assert.Equal(t, []string{"POST /audio_query", "POST /synthesis"}, engine.calls)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Synthesize(context.Background(), "テスト", 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_ErrorStatusKeepsWholeCharacters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(strings.Repeat("あ", 300)))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Synthesize(context.Background(), "テスト", 1)

	require.Error(t, err)
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.Contains(t, msg, strings.Repeat("あ", maxErrorRunes))
	assert.NotContains(t, msg, strings.Repeat("あ", maxErrorRunes+1))
}

func TestCatalog(t *testing.T) {
	client, _ := newTestClient(t)

	catalog, err := LoadCatalog(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, 3, catalog.Len())
	assert.Equal(t, "四国めたん(あまあま)", catalog.DisplayName(0))
	assert.Equal(t, "ずんだもん(ノーマル)", catalog.DisplayName(3))
	assert.Empty(t, catalog.DisplayName(99))

	st, ok := catalog.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "ノーマル", st.StyleName)

	want := "四国めたん\n    2:   ノーマル\n    0:   あまあま\n\n" +
		"ずんだもん\n    3:   ノーマル\n\n"
	assert.Equal(t, want, catalog.Render())
}
