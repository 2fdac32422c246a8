package internal

import (
	"container/heap"
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned when the event's kind is at capacity. The
	// webhook boundary surfaces it as a retryable rejection.
	ErrQueueFull = errors.New("queue full for kind")
	// ErrQueueClosed is returned once shutdown has begun.
	ErrQueueClosed = errors.New("queue closed")
)

// Queue is a bounded in-memory priority queue of pending events. Ordering
// is highest priority first, FIFO within equal priority (a monotonic
// sequence number breaks ties, never timestamps). Each kind has its own
// capacity so a noisy kind cannot starve the rest.
//
// The queue owns an Event from Enqueue until Dequeue hands it to a worker.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   eventHeap
	perKind map[Kind]int
	cap     int
	seq     uint64
	closed  bool
}

func NewQueue(capacityPerKind int) *Queue {
	if capacityPerKind <= 0 {
		capacityPerKind = 100
	}
	q := &Queue{
		perKind: make(map[Kind]int),
		cap:     capacityPerKind,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue admits a pending event. It never blocks.
func (q *Queue) Enqueue(evt *Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.perKind[evt.Kind] >= q.cap {
		return ErrQueueFull
	}

	evt.Status = StatusPending
	q.seq++
	heap.Push(&q.items, queued{evt: evt, seq: q.seq})
	q.perKind[evt.Kind]++
	SetQueueDepth(evt.Kind, int64(q.perKind[evt.Kind]))
	q.cond.Signal()
	return nil
}

// Dequeue removes the highest-priority event, blocking until one is
// available, the context is cancelled, or the queue shuts down.
func (q *Queue) Dequeue(ctx context.Context) (*Event, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(queued)
			q.perKind[item.evt.Kind]--
			SetQueueDepth(item.evt.Kind, int64(q.perKind[item.evt.Kind]))
			return item.evt, nil
		}
		if q.closed {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}
}

// Shutdown stops admissions and wakes every blocked Dequeue. Events still
// queued are returned to no one; callers drain via Dequeue until
// ErrQueueClosed if they want them.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Depth reports the number of queued events across all kinds.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// DepthByKind reports per-kind queue depth.
func (q *Queue) DepthByKind() map[Kind]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[Kind]int, len(q.perKind))
	for kind, n := range q.perKind {
		out[kind] = n
	}
	return out
}

type queued struct {
	evt *Event
	seq uint64
}

type eventHeap []queued

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].evt.Priority != h[j].evt.Priority {
		return h[i].evt.Priority > h[j].evt.Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(queued)) }

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queued{}
	*h = old[:n-1]
	return item
}
