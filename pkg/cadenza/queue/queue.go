// Package queue provides the ordered pending/played track lists owned by a
// cadenza Player: a FIFO queue, a most-recent-last history, and mutually
// exclusive loop modes.
//
// All methods are safe for concurrent use.
package queue

import (
	"math/rand/v2"
	"sync"

	"github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"
)

// LoopMode selects what the owning player re-enqueues after a track ends.
type LoopMode int

const (
	// LoopNone plays the queue through once.
	LoopNone LoopMode = iota

	// LoopQueue re-enqueues each finished track at the back of the queue.
	LoopQueue

	// LoopCurrent replays the finished track.
	LoopCurrent
)

// String returns the human-readable name of the mode.
func (m LoopMode) String() string {
	switch m {
	case LoopNone:
		return "none"
	case LoopQueue:
		return "queue"
	case LoopCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// Queue is an ordered mutable sequence of tracks plus a history of
// previously played tracks.
type Queue struct {
	mu      sync.Mutex
	items   []protocol.Track
	history []protocol.Track
	loop    LoopMode

	// notEmpty is closed-and-replaced to wake waiters when an item arrives.
	notEmpty chan struct{}
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{notEmpty: make(chan struct{})}
}

// Len returns the number of pending tracks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue has no pending tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// HistoryLen returns the number of tracks in the history.
func (q *Queue) HistoryLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.history)
}

// Loop returns the active loop mode.
func (q *Queue) Loop() LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

// SetLooping sets or clears a loop mode. The queue-loop and current-loop
// modes are mutually exclusive; enabling one clears the other.
func (q *Queue) SetLooping(looping bool, current bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case !looping:
		q.loop = LoopNone
	case current:
		q.loop = LoopCurrent
	default:
		q.loop = LoopQueue
	}
}

// Get removes and returns the track at position (0 = front). When
// putHistory is set, the removed track is also appended to the history at
// the same relative position. Out-of-range positions return false rather
// than panicking.
func (q *Queue) Get(position int, putHistory bool) (protocol.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if position < 0 || position >= len(q.items) {
		return protocol.Track{}, false
	}

	item := q.items[position]
	q.items = append(q.items[:position], q.items[position+1:]...)

	if putHistory {
		q.insertLocked(&q.history, []protocol.Track{item}, position)
	}
	return item, true
}

// GetHistory returns the track at position counted from the most recent end
// of the history (0 = most recently played). It does not remove the track.
func (q *Queue) GetHistory(position int) (protocol.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if position < 0 || position >= len(q.history) {
		return protocol.Track{}, false
	}
	return q.history[len(q.history)-1-position], true
}

// Put appends tracks to the back of the queue, preserving input order.
func (q *Queue) Put(tracks ...protocol.Track) {
	q.PutAt(-1, tracks...)
}

// PutAt inserts tracks at the given position, preserving input order. A
// negative position appends; positions past the end clamp to an append.
func (q *Queue) PutAt(position int, tracks ...protocol.Track) {
	if len(tracks) == 0 {
		return
	}

	q.mu.Lock()
	q.insertLocked(&q.items, tracks, position)
	wake := q.notEmpty
	q.notEmpty = make(chan struct{})
	q.mu.Unlock()

	close(wake)
}

// PutHistory appends tracks to the history.
func (q *Queue) PutHistory(tracks ...protocol.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertLocked(&q.history, tracks, -1)
}

// insertLocked splices tracks into *dst at position. Must be called with
// q.mu held.
func (q *Queue) insertLocked(dst *[]protocol.Track, tracks []protocol.Track, position int) {
	s := *dst
	if position < 0 || position >= len(s) {
		*dst = append(s, tracks...)
		return
	}
	out := make([]protocol.Track, 0, len(s)+len(tracks))
	out = append(out, s[:position]...)
	out = append(out, tracks...)
	out = append(out, s[position:]...)
	*dst = out
}

// Wait returns a channel that is closed the next time a track is added.
// Callers select on it together with a timeout to implement idle waits.
func (q *Queue) Wait() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return q.notEmpty
}

// Tracks returns a copy of the pending tracks in order.
func (q *Queue) Tracks() []protocol.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]protocol.Track, len(q.items))
	copy(out, q.items)
	return out
}

// History returns a copy of the history, oldest first.
func (q *Queue) History() []protocol.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]protocol.Track, len(q.history))
	copy(out, q.history)
	return out
}

// Shuffle randomises the order of the pending tracks.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// ShuffleHistory randomises the order of the history.
func (q *Queue) ShuffleHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.history), func(i, j int) {
		q.history[i], q.history[j] = q.history[j], q.history[i]
	})
}

// Reverse reverses the order of the pending tracks.
func (q *Queue) Reverse() {
	q.mu.Lock()
	defer q.mu.Unlock()
	reverse(q.items)
}

// ReverseHistory reverses the order of the history.
func (q *Queue) ReverseHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	reverse(q.history)
}

// Clear removes all pending tracks.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// ClearHistory removes all history entries.
func (q *Queue) ClearHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = nil
}

func reverse(s []protocol.Track) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
