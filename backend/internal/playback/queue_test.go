package playback

import (
	"errors"
	"testing"
	"time"

	apperrors "texvoice/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settle waits until the loop has handled every event sent so far
func settle(q *Queue) {
	q.Snapshot()
}

func TestQueue_StartsImmediatelyWhenIdle(t *testing.T) {
	player := &fakePlayer{}
	q := NewQueue("g", player, nil, nil)
	defer q.Flush()

	assert.Equal(t, StateIdle, q.Snapshot().State)

	require.NoError(t, q.Enqueue(newItem("a")))
	assert.Equal(t, []string{"a"}, player.startedTexts())

	snap := q.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, 0, snap.Pending)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "a", snap.Current.Text)
}

func TestQueue_PlaysInOrderOneAtATime(t *testing.T) {
	player := &fakePlayer{}
	q := NewQueue("g", player, nil, nil)
	defer q.Flush()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(newItem(text)))
	}
	assert.Equal(t, []string{"a"}, player.startedTexts())
	assert.Equal(t, 2, q.Snapshot().Pending)

	player.completeNext(nil)
	settle(q)
	assert.Equal(t, []string{"a", "b"}, player.startedTexts())

	player.completeNext(errors.New("stream cut"))
	settle(q)
	assert.Equal(t, []string{"a", "b", "c"}, player.startedTexts())

	player.completeNext(nil)
	snap := q.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Current)
	assert.Equal(t, 1, player.maxOutstanding)
}

func TestQueue_PlayErrorAdvances(t *testing.T) {
	player := &fakePlayer{failTexts: map[string]bool{"bad": true}}
	q := NewQueue("g", player, nil, nil)
	defer q.Flush()

	bad := newItem("bad")
	require.NoError(t, q.Enqueue(bad))
	assert.True(t, sourceOf(bad).isClosed())
	assert.Equal(t, StateIdle, q.Snapshot().State)

	require.NoError(t, q.Enqueue(newItem("good")))
	assert.Equal(t, []string{"good"}, player.startedTexts())
}

func TestQueue_IgnoresStaleCompletion(t *testing.T) {
	player := &fakePlayer{}
	q := NewQueue("g", player, nil, nil)
	defer q.Flush()

	require.NoError(t, q.Enqueue(newItem("a")))
	require.NoError(t, q.Enqueue(newItem("b")))

	player.mu.Lock()
	first := player.callbacks[0]
	player.mu.Unlock()

	player.completeNext(nil)
	settle(q)
	require.Equal(t, []string{"a", "b"}, player.startedTexts())

	// a second completion for "a" must not end "b"
	first(nil)
	snap := q.Snapshot()
	assert.Equal(t, StatePlaying, snap.State)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "b", snap.Current.Text)
}

func TestQueue_Flush(t *testing.T) {
	player := &fakePlayer{}
	q := NewQueue("g", player, nil, nil)

	a, b, c := newItem("a"), newItem("b"), newItem("c")
	require.NoError(t, q.Enqueue(a))
	require.NoError(t, q.Enqueue(b))
	require.NoError(t, q.Enqueue(c))

	assert.Equal(t, 2, q.Flush())
	assert.True(t, sourceOf(b).isClosed())
	assert.True(t, sourceOf(c).isClosed())

	select {
	case <-q.Done():
	default:
		t.Fatal("queue not done after flush")
	}

	// completion of the item that was playing must not block
	finished := make(chan struct{})
	go func() {
		player.completeNext(nil)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("completion after flush blocked")
	}

	late := newItem("late")
	err := q.Enqueue(late)
	var stateErr *apperrors.SessionStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, apperrors.ReasonClosed, stateErr.Reason)
	assert.True(t, sourceOf(late).isClosed())

	assert.Equal(t, 0, q.Flush())
	assert.Equal(t, StateIdle, q.Snapshot().State)
	assert.Equal(t, []string{"a"}, player.startedTexts())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "unknown", State(9).String())
}
