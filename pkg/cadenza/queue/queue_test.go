package queue

import (
	"sort"
	"testing"
	"time"

	"github.com/cadenza-audio/cadenza/pkg/cadenza/protocol"
)

func track(id string) protocol.Track {
	return protocol.Track{ID: id}
}

func ids(tracks []protocol.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQueueFIFO(t *testing.T) {
	q := New()
	q.Put(track("a"), track("b"), track("c"))

	if q.Len() != 3 {
		t.Fatalf("expected len 3, got %d", q.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Get(0, false)
		if !ok {
			t.Fatalf("expected track %q, queue empty", want)
		}
		if got.ID != want {
			t.Errorf("expected %q, got %q", want, got.ID)
		}
	}
	if !q.IsEmpty() {
		t.Error("expected empty queue after draining")
	}
}

func TestQueueGetOutOfRange(t *testing.T) {
	q := New()
	if _, ok := q.Get(0, false); ok {
		t.Error("expected Get on empty queue to report false")
	}

	q.Put(track("a"))
	if _, ok := q.Get(5, false); ok {
		t.Error("expected out-of-range Get to report false")
	}
	if _, ok := q.Get(-1, false); ok {
		t.Error("expected negative Get to report false")
	}
	if q.Len() != 1 {
		t.Errorf("expected failed Get to leave the queue intact, len=%d", q.Len())
	}
}

func TestQueueGetMovesToHistory(t *testing.T) {
	q := New()
	q.Put(track("a"), track("b"))

	if _, ok := q.Get(0, true); !ok {
		t.Fatal("expected a track")
	}
	if q.HistoryLen() != 1 {
		t.Fatalf("expected history len 1, got %d", q.HistoryLen())
	}

	got, ok := q.GetHistory(0)
	if !ok || got.ID != "a" {
		t.Errorf("expected most recent history entry a, got %+v ok=%v", got, ok)
	}
}

func TestQueueGetHistoryOrder(t *testing.T) {
	q := New()
	q.PutHistory(track("old"), track("mid"), track("new"))

	// Position 0 is the most recently played.
	got, ok := q.GetHistory(0)
	if !ok || got.ID != "new" {
		t.Errorf("expected new at position 0, got %+v", got)
	}
	got, ok = q.GetHistory(2)
	if !ok || got.ID != "old" {
		t.Errorf("expected old at position 2, got %+v", got)
	}
	if _, ok := q.GetHistory(3); ok {
		t.Error("expected out-of-range history position to report false")
	}
	// GetHistory does not remove.
	if q.HistoryLen() != 3 {
		t.Errorf("expected history to stay intact, len=%d", q.HistoryLen())
	}
}

func TestQueuePutAt(t *testing.T) {
	q := New()
	q.Put(track("a"), track("c"))
	q.PutAt(1, track("b"))

	if got := ids(q.Tracks()); !equal(got, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", got)
	}

	// Negative position appends.
	q.PutAt(-1, track("d"))
	if got := ids(q.Tracks()); !equal(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("expected [a b c d], got %v", got)
	}

	// Past-the-end clamps to append.
	q.PutAt(99, track("e"))
	if got := ids(q.Tracks()); !equal(got, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("expected [a b c d e], got %v", got)
	}
}

func TestQueuePutPreservesInputOrder(t *testing.T) {
	q := New()
	q.Put(track("z"))
	q.PutAt(0, track("a"), track("b"), track("c"))

	if got := ids(q.Tracks()); !equal(got, []string{"a", "b", "c", "z"}) {
		t.Errorf("expected [a b c z], got %v", got)
	}
}

func TestQueueLooping(t *testing.T) {
	q := New()
	if q.Loop() != LoopNone {
		t.Fatalf("expected LoopNone by default, got %v", q.Loop())
	}

	q.SetLooping(true, false)
	if q.Loop() != LoopQueue {
		t.Errorf("expected LoopQueue, got %v", q.Loop())
	}

	// Enabling current-loop clears queue-loop.
	q.SetLooping(true, true)
	if q.Loop() != LoopCurrent {
		t.Errorf("expected LoopCurrent, got %v", q.Loop())
	}

	q.SetLooping(false, false)
	if q.Loop() != LoopNone {
		t.Errorf("expected LoopNone, got %v", q.Loop())
	}
}

func TestQueueWait(t *testing.T) {
	t.Run("returns closed channel when non-empty", func(t *testing.T) {
		q := New()
		q.Put(track("a"))
		select {
		case <-q.Wait():
		case <-time.After(time.Second):
			t.Fatal("expected Wait to be ready immediately")
		}
	})

	t.Run("wakes on put", func(t *testing.T) {
		q := New()
		wait := q.Wait()

		go q.Put(track("a"))

		select {
		case <-wait:
		case <-time.After(time.Second):
			t.Fatal("expected Wait to wake after Put")
		}
	})
}

func TestQueueShufflePreservesTracks(t *testing.T) {
	q := New()
	q.Put(track("a"), track("b"), track("c"), track("d"), track("e"))

	q.Shuffle()

	got := ids(q.Tracks())
	sort.Strings(got)
	if !equal(got, []string{"a", "b", "c", "d", "e"}) {
		t.Errorf("shuffle changed the track set: %v", got)
	}
}

func TestQueueReverse(t *testing.T) {
	q := New()
	q.Put(track("a"), track("b"), track("c"))
	q.Reverse()

	if got := ids(q.Tracks()); !equal(got, []string{"c", "b", "a"}) {
		t.Errorf("expected [c b a], got %v", got)
	}
}

func TestQueueClear(t *testing.T) {
	q := New()
	q.Put(track("a"))
	q.PutHistory(track("b"))

	q.Clear()
	if !q.IsEmpty() {
		t.Error("expected empty queue after Clear")
	}
	if q.HistoryLen() != 1 {
		t.Error("expected Clear to leave history intact")
	}

	q.ClearHistory()
	if q.HistoryLen() != 0 {
		t.Error("expected empty history after ClearHistory")
	}
}

func TestQueueTracksReturnsCopy(t *testing.T) {
	q := New()
	q.Put(track("a"))

	tracks := q.Tracks()
	tracks[0] = track("mutated")

	got, _ := q.Get(0, false)
	if got.ID != "a" {
		t.Error("expected Tracks to return a copy")
	}
}
