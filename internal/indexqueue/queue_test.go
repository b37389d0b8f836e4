package indexqueue

import (
	"testing"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

func item(path string, p types.Priority) types.QueueItem {
	return types.QueueItem{FilePath: path, Priority: p, EstimatedBytes: -1}
}

func TestDequeueDrainsHighBeforeMediumBeforeLow(t *testing.T) {
	q := Unlimited()
	q.Enqueue(item("low.go", types.PriorityLow))
	q.Enqueue(item("med.go", types.PriorityMedium))
	q.Enqueue(item("high.go", types.PriorityHigh))

	first, ok := q.Dequeue()
	if !ok || first.FilePath != "high.go" {
		t.Fatalf("expected high.go first, got %+v ok=%v", first, ok)
	}
	second, ok := q.Dequeue()
	if !ok || second.FilePath != "med.go" {
		t.Fatalf("expected med.go second, got %+v ok=%v", second, ok)
	}
	third, ok := q.Dequeue()
	if !ok || third.FilePath != "low.go" {
		t.Fatalf("expected low.go third, got %+v ok=%v", third, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestFIFOWithinPriorityLevel(t *testing.T) {
	q := Unlimited()
	q.Enqueue(item("a.go", types.PriorityHigh))
	q.Enqueue(item("b.go", types.PriorityHigh))
	q.Enqueue(item("c.go", types.PriorityHigh))

	for _, want := range []string{"a.go", "b.go", "c.go"} {
		got, ok := q.Dequeue()
		if !ok || got.FilePath != want {
			t.Fatalf("expected %s, got %+v ok=%v", want, got, ok)
		}
	}
}

func TestEnqueueRejectsAtCapacity(t *testing.T) {
	q := New(1)
	if !q.Enqueue(item("a.go", types.PriorityLow)) {
		t.Fatalf("expected first enqueue to succeed")
	}
	if q.Enqueue(item("b.go", types.PriorityLow)) {
		t.Fatalf("expected second enqueue to be rejected at capacity")
	}
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
}

func TestPauseRejectsEnqueueAndDequeue(t *testing.T) {
	q := Unlimited()
	q.Enqueue(item("a.go", types.PriorityHigh))
	q.Pause()

	if q.Enqueue(item("b.go", types.PriorityHigh)) {
		t.Fatalf("expected enqueue to be rejected while paused")
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected dequeue to be rejected while paused")
	}

	q.Resume()
	got, ok := q.Dequeue()
	if !ok || got.FilePath != "a.go" {
		t.Fatalf("expected a.go after resume, got %+v ok=%v", got, ok)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := Unlimited()
	q.Enqueue(item("a.go", types.PriorityHigh))

	peeked, ok := q.Peek()
	if !ok || peeked.FilePath != "a.go" {
		t.Fatalf("unexpected peek result: %+v ok=%v", peeked, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("expected peek to leave item queued, len=%d", q.Len())
	}
}

func TestRemoveByFileRemovesAcrossLevels(t *testing.T) {
	q := Unlimited()
	q.Enqueue(item("dup.go", types.PriorityHigh))
	q.Enqueue(item("dup.go", types.PriorityLow))
	q.Enqueue(item("keep.go", types.PriorityLow))

	removed := q.RemoveByFile("dup.go")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 item remaining, got %d", q.Len())
	}
}

func TestClearPriorityOnlyAffectsThatLevel(t *testing.T) {
	q := Unlimited()
	q.Enqueue(item("a.go", types.PriorityHigh))
	q.Enqueue(item("b.go", types.PriorityLow))

	removed := q.ClearPriority(types.PriorityHigh)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if q.Len() != 1 {
		t.Fatalf("expected low-priority item to survive, len=%d", q.Len())
	}
}

func TestEstimatedBytesTracksEnqueueAndDequeue(t *testing.T) {
	q := Unlimited()
	q.Enqueue(types.QueueItem{FilePath: "a.go", Priority: types.PriorityHigh, EstimatedBytes: 100})
	q.Enqueue(types.QueueItem{FilePath: "b.go", Priority: types.PriorityLow, EstimatedBytes: 50})

	if got := q.GetSnapshot().EstimatedTotalBytes; got != 150 {
		t.Fatalf("expected 150 estimated bytes, got %d", got)
	}
	q.Dequeue()
	if got := q.GetSnapshot().EstimatedTotalBytes; got != 50 {
		t.Fatalf("expected 50 estimated bytes after dequeue, got %d", got)
	}
}

func TestGetMetricsReportsUtilizationRatio(t *testing.T) {
	q := New(4)
	q.Enqueue(item("a.go", types.PriorityHigh))
	m := q.GetMetrics()
	if m.UtilizationRatio != 0.25 {
		t.Fatalf("expected utilization 0.25, got %f", m.UtilizationRatio)
	}
	if m.MaxSize != 4 {
		t.Fatalf("expected max size 4, got %d", m.MaxSize)
	}
	if m.TotalEnqueued != 1 {
		t.Fatalf("expected total enqueued 1, got %d", m.TotalEnqueued)
	}
}
