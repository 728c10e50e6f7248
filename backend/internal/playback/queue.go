// Package playback owns per-guild speech sessions: a synthesis worker
// feeding a strictly ordered playback queue.
package playback

import (
	"context"

	"texvoice/backend/internal/metrics"
	"texvoice/backend/internal/tts"
	apperrors "texvoice/backend/pkg/errors"

	"go.uber.org/zap"
)

// State is the playback state of a queue
type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Player streams one item at a time into a voice channel.
//
// Play starts streaming and returns without waiting for the item to finish.
// When Play returns nil the player owns the item: it closes it and then
// calls onComplete exactly once, from another goroutine. When Play returns
// an error onComplete is never called.
type Player interface {
	Play(item *tts.AudioItem, onComplete func(error)) error
	IsPlaying() bool
	Disconnect() error
}

// ItemInfo describes a queued or playing item
type ItemInfo struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	SpeakerID int    `json:"speaker_id"`
	Text      string `json:"text"`
}

// Snapshot is a point-in-time view of a queue
type Snapshot struct {
	State   State
	Pending int
	Current *ItemInfo
}

type enqueueEvent struct {
	item  *tts.AudioItem
	reply chan error
}

type completedEvent struct {
	seq uint64
	err error
}

type flushEvent struct {
	reply chan int
}

type snapshotEvent struct {
	reply chan Snapshot
}

// Queue plays items strictly in the order they were enqueued, with at most
// one item handed to the player at any time. All state lives in a single
// goroutine driven by events.
type Queue struct {
	guildID string
	player  Player
	metrics *metrics.Recorder
	logger  *zap.Logger

	events chan any
	done   chan struct{}

	// owned by run
	items   []*tts.AudioItem
	current *tts.AudioItem
	state   State
	seq     uint64
}

// NewQueue creates a queue and starts its event loop
func NewQueue(guildID string, player Player, rec *metrics.Recorder, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		guildID: guildID,
		player:  player,
		metrics: rec,
		logger:  logger.With(zap.String("guild_id", guildID)),
		events:  make(chan any),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends an item. If nothing is playing, playback starts at once.
// After Flush the item is closed and a SessionStateError is returned.
func (q *Queue) Enqueue(item *tts.AudioItem) error {
	reply := make(chan error, 1)
	select {
	case q.events <- enqueueEvent{item: item, reply: reply}:
		return <-reply
	case <-q.done:
		item.Close()
		return apperrors.NewSessionStateError(q.guildID, apperrors.ReasonClosed)
	}
}

// Flush discards every pending item and stops the queue. The item being
// played, if any, stays with the player. It returns the number of items
// discarded.
func (q *Queue) Flush() int {
	reply := make(chan int, 1)
	select {
	case q.events <- flushEvent{reply: reply}:
		return <-reply
	case <-q.done:
		return 0
	}
}

// Snapshot reports the current state. A flushed queue reports idle.
func (q *Queue) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case q.events <- snapshotEvent{reply: reply}:
		return <-reply
	case <-q.done:
		return Snapshot{State: StateIdle}
	}
}

// Done is closed once the queue has been flushed
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

func (q *Queue) run() {
	for ev := range q.events {
		switch ev := ev.(type) {
		case enqueueEvent:
			q.items = append(q.items, ev.item)
			q.metrics.ItemEnqueued(context.Background(), q.guildID)
			if q.state == StateIdle {
				q.playNext()
			}
			ev.reply <- nil

		case completedEvent:
			if q.state != StatePlaying || ev.seq != q.seq {
				q.logger.Debug("Ignoring stale completion", zap.Uint64("seq", ev.seq))
				continue
			}
			q.finish(ev.err)
			q.playNext()

		case snapshotEvent:
			ev.reply <- q.snapshot()

		case flushEvent:
			dropped := q.discardPending()
			q.state = StateIdle
			q.current = nil
			close(q.done)
			ev.reply <- dropped
			return
		}
	}
}

// playNext hands the head of the queue to the player. A Play error is
// treated as an immediate completion of that item.
func (q *Queue) playNext() {
	for len(q.items) > 0 {
		item := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]

		q.seq++
		seq := q.seq
		err := q.player.Play(item, func(err error) {
			select {
			case q.events <- completedEvent{seq: seq, err: err}:
			case <-q.done:
			}
		})
		if err != nil {
			q.logger.Warn("Failed to start playback",
				zap.String("item_id", item.ID),
				zap.Error(err))
			item.Close()
			q.metrics.ItemPlayed(context.Background(), q.guildID, true)
			continue
		}

		q.current = item
		q.state = StatePlaying
		return
	}

	q.current = nil
	q.state = StateIdle
}

func (q *Queue) finish(err error) {
	if err != nil {
		q.logger.Warn("Playback ended with error",
			zap.String("item_id", q.current.ID),
			zap.Error(err))
	}
	q.metrics.ItemPlayed(context.Background(), q.guildID, err != nil)
	q.current = nil
}

func (q *Queue) discardPending() int {
	n := len(q.items)
	for _, item := range q.items {
		item.Close()
		q.metrics.ItemDropped(context.Background(), q.guildID, metrics.DropFlushed)
	}
	q.items = nil
	return n
}

func (q *Queue) snapshot() Snapshot {
	snap := Snapshot{State: q.state, Pending: len(q.items)}
	if q.current != nil {
		snap.Current = infoOf(q.current)
	}
	return snap
}

func infoOf(item *tts.AudioItem) *ItemInfo {
	return &ItemInfo{
		ID:        item.ID,
		MessageID: item.MessageID,
		SpeakerID: item.SpeakerID,
		Text:      item.Text,
	}
}
