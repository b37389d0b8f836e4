// Package indexqueue implements the Indexing Queue (spec section 4.G): a
// thread-safe three-level priority FIFO feeding the Indexing Manager's
// worker pool. High-priority items (files opened by an editor, files on
// the active read path) always drain before medium, which always drains
// before low (background backfill), but within a level, FIFO order holds.
package indexqueue

import (
	"container/list"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/types"
)

// Snapshot is a lightweight point-in-time view of queue occupancy, safe
// to serialize for a status RPC.
type Snapshot struct {
	TotalItems         int
	HighPriorityItems  int
	MediumPriorityItems int
	LowPriorityItems   int
	EstimatedTotalBytes int64
	Paused             bool
	UtilizationRatio   float64
}

// Metrics extends Snapshot with lifetime counters.
type Metrics struct {
	Snapshot
	TotalEnqueued uint64
	TotalDequeued uint64
	MaxSize       int
	AgeSeconds    int64
}

// Queue is a thread-safe multi-level priority queue. The zero value is
// not usable; construct with New or Unlimited.
type Queue struct {
	mu   sync.RWMutex
	high *list.List
	med  *list.List
	low  *list.List

	totalItems   atomic.Int64
	totalEnqueued atomic.Uint64
	totalDequeued atomic.Uint64
	estimatedBytes atomic.Int64

	maxSize int // 0 means unlimited
	paused  atomic.Bool

	nextID  atomic.Uint64
	created time.Time
}

// New constructs a queue bounded to maxSize total items (0 for unbounded).
func New(maxSize int) *Queue {
	return &Queue{
		high:    list.New(),
		med:     list.New(),
		low:     list.New(),
		maxSize: maxSize,
		created: time.Now(),
		nextID:  atomic.Uint64{},
	}
}

// Unlimited constructs a queue with no size cap.
func Unlimited() *Queue {
	return New(0)
}

func (q *Queue) queueFor(p types.Priority) *list.List {
	switch p {
	case types.PriorityHigh:
		return q.high
	case types.PriorityMedium:
		return q.med
	default:
		return q.low
	}
}

// NextID allocates a monotonically increasing item ID, for callers
// constructing a types.QueueItem before Enqueue.
func (q *Queue) NextID() uint64 {
	return q.nextID.Add(1)
}

// Enqueue adds item to the queue appropriate for its priority. It
// returns false (not an error) if the queue is paused or at capacity,
// mirroring the soft-reject behavior callers (the file watcher, the
// discovery walk) are expected to handle by dropping the item.
func (q *Queue) Enqueue(item types.QueueItem) bool {
	if q.paused.Load() {
		return false
	}
	if q.maxSize > 0 && int(q.totalItems.Load()) >= q.maxSize {
		return false
	}

	q.mu.Lock()
	q.queueFor(item.Priority).PushBack(item)
	q.mu.Unlock()

	if item.EstimatedBytes > 0 {
		q.estimatedBytes.Add(item.EstimatedBytes)
	}
	q.totalItems.Add(1)
	q.totalEnqueued.Add(1)
	return true
}

// EnqueueBatch enqueues items in order and returns the count actually
// accepted.
func (q *Queue) EnqueueBatch(items []types.QueueItem) int {
	accepted := 0
	for _, it := range items {
		if q.Enqueue(it) {
			accepted++
		}
	}
	return accepted
}

// Dequeue removes and returns the highest-priority item available,
// trying high, then medium, then low. It returns false if the queue is
// paused or empty.
func (q *Queue) Dequeue() (types.QueueItem, bool) {
	if q.paused.Load() {
		return types.QueueItem{}, false
	}

	for _, lst := range []*list.List{q.high, q.med, q.low} {
		q.mu.Lock()
		front := lst.Front()
		if front == nil {
			q.mu.Unlock()
			continue
		}
		lst.Remove(front)
		q.mu.Unlock()

		item := front.Value.(types.QueueItem)
		q.totalItems.Add(-1)
		q.totalDequeued.Add(1)
		if item.EstimatedBytes > 0 {
			q.estimatedBytes.Add(-item.EstimatedBytes)
		}
		return item, true
	}
	return types.QueueItem{}, false
}

// Peek returns the item Dequeue would return next, without removing it.
func (q *Queue) Peek() (types.QueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, lst := range []*list.List{q.high, q.med, q.low} {
		if front := lst.Front(); front != nil {
			return front.Value.(types.QueueItem), true
		}
	}
	return types.QueueItem{}, false
}

// Len returns the total number of items across all three levels.
func (q *Queue) Len() int {
	return int(q.totalItems.Load())
}

// IsEmpty reports whether all three levels are empty.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// LenForPriority returns the number of items queued at a single level.
func (q *Queue) LenForPriority(p types.Priority) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queueFor(p).Len()
}

// Clear empties every level.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.high.Init()
	q.med.Init()
	q.low.Init()
	q.totalItems.Store(0)
	q.estimatedBytes.Store(0)
}

// ClearPriority empties a single level and returns the number of items
// removed.
func (q *Queue) ClearPriority(p types.Priority) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	lst := q.queueFor(p)
	removed := lst.Len()
	for e := lst.Front(); e != nil; e = e.Next() {
		item := e.Value.(types.QueueItem)
		if item.EstimatedBytes > 0 {
			q.estimatedBytes.Add(-item.EstimatedBytes)
		}
	}
	lst.Init()
	q.totalItems.Add(-int64(removed))
	return removed
}

// Pause stops Enqueue and Dequeue from accepting or yielding items.
// Items already queued remain queued.
func (q *Queue) Pause() {
	q.paused.Store(true)
}

// Resume clears the paused flag.
func (q *Queue) Resume() {
	q.paused.Store(false)
}

// IsPaused reports the current pause state.
func (q *Queue) IsPaused() bool {
	return q.paused.Load()
}

// RemoveMatching removes every item across all three levels for which
// predicate returns true, and returns the number removed. Used for
// cleanup when a file is deleted or a workspace is torn down mid-index.
func (q *Queue) RemoveMatching(predicate func(types.QueueItem) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for _, lst := range []*list.List{q.high, q.med, q.low} {
		var next *list.Element
		for e := lst.Front(); e != nil; e = next {
			next = e.Next()
			item := e.Value.(types.QueueItem)
			if predicate(item) {
				lst.Remove(e)
				removed++
				if item.EstimatedBytes > 0 {
					q.estimatedBytes.Add(-item.EstimatedBytes)
				}
			}
		}
	}
	if removed > 0 {
		q.totalItems.Add(-int64(removed))
	}
	return removed
}

// RemoveByFile removes every queued item for path, across all levels.
// relativePath comparisons are case-sensitive and exact; callers should
// pass the same path form used at Enqueue time.
func (q *Queue) RemoveByFile(path string) int {
	return q.RemoveMatching(func(item types.QueueItem) bool {
		return item.FilePath == path
	})
}

// RemoveByPathPrefix removes every queued item whose path falls under
// prefix (a directory being removed or a workspace being closed).
func (q *Queue) RemoveByPathPrefix(prefix string) int {
	return q.RemoveMatching(func(item types.QueueItem) bool {
		return strings.HasPrefix(item.FilePath, prefix)
	})
}

func (q *Queue) snapshot() Snapshot {
	ratio := 0.0
	if q.maxSize > 0 {
		ratio = float64(q.Len()) / float64(q.maxSize)
	}
	return Snapshot{
		TotalItems:          q.Len(),
		HighPriorityItems:   q.LenForPriority(types.PriorityHigh),
		MediumPriorityItems: q.LenForPriority(types.PriorityMedium),
		LowPriorityItems:    q.LenForPriority(types.PriorityLow),
		EstimatedTotalBytes: q.estimatedBytes.Load(),
		Paused:              q.IsPaused(),
		UtilizationRatio:    ratio,
	}
}

// GetSnapshot returns a lightweight occupancy snapshot.
func (q *Queue) GetSnapshot() Snapshot {
	return q.snapshot()
}

// GetMetrics returns Snapshot plus lifetime counters.
func (q *Queue) GetMetrics() Metrics {
	return Metrics{
		Snapshot:      q.snapshot(),
		TotalEnqueued: q.totalEnqueued.Load(),
		TotalDequeued: q.totalDequeued.Load(),
		MaxSize:       q.maxSize,
		AgeSeconds:    int64(time.Since(q.created).Seconds()),
	}
}
