// Package queue routes participant tasks to partitions. Every task of a participant
// lands on the same partition, which is drained by a single worker; that worker is
// the participant's serialization point.
package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultPartitions = 8
	defaultCapacity   = 4096
)

// Queue provides partitioned enqueue and per-partition dequeue.
type Queue interface {
	// Enqueue adds a task without blocking. It returns false when the partition is full
	// or the queue is closed.
	Enqueue(ctx context.Context, t model.Task) bool

	// EnqueueWait blocks until the task is accepted, ctx ends, or the queue closes.
	EnqueueWait(ctx context.Context, t model.Task) error

	// Dequeue returns the channel of partition i. It is closed when the queue closes.
	Dequeue(i int) <-chan model.Task

	// Done marks one dequeued task as consumed.
	Done()

	// Partitions returns the number of partitions.
	Partitions() int

	// Len returns the number of queued tasks across partitions.
	Len() int

	// Close stops accepting tasks. Queued tasks stay readable.
	Close() error
}

// Partitioned implements Queue with one buffered channel per partition.
type Partitioned struct {
	parts      []chan model.Task
	partitions int
	capacity   int

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
	size   atomic.Int64
}

var _ Queue = (*Partitioned)(nil)

// NewPartitioned creates a queue with configuration options.
func NewPartitioned(opts ...Option) *Partitioned {
	q := &Partitioned{
		partitions: defaultPartitions,
		capacity:   defaultCapacity,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.parts = make([]chan model.Task, q.partitions)
	for i := range q.parts {
		q.parts[i] = make(chan model.Task, q.capacity)
	}
	metrics.UpdateQueueSize(0)
	return q
}

// Partition returns the partition of a participant.
func (q *Partitioned) Partition(participantID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(participantID))
	return int(h.Sum32() % uint32(q.partitions)) //nolint:gosec // partitions is positive and small
}

// Partitions returns the number of partitions.
func (q *Partitioned) Partitions() int { return q.partitions }

// Enqueue adds a task to its participant's partition without blocking.
func (q *Partitioned) Enqueue(ctx context.Context, t model.Task) bool { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	stamp(&t)

	select {
	case q.parts[q.Partition(t.ParticipantID)] <- t:
		q.size.Add(1)
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "partition_full")
		return false
	}
}

// EnqueueWait adds a task, waiting for room in its partition.
func (q *Partitioned) EnqueueWait(ctx context.Context, t model.Task) error { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	stamp(&t)

	select {
	case q.parts[q.Partition(t.ParticipantID)] <- t:
		q.size.Add(1)
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns the channel of partition i.
func (q *Partitioned) Dequeue(i int) <-chan model.Task {
	return q.parts[i]
}

// Done marks one dequeued task as taken off the queue.
func (q *Partitioned) Done() {
	q.size.Add(-1)
}

// Len returns the number of queued tasks.
func (q *Partitioned) Len() int {
	return int(q.size.Load())
}

// Close stops accepting tasks and closes every partition once in-flight enqueues return.
func (q *Partitioned) Close() error {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
		for _, p := range q.parts {
			close(p)
		}
	})
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *Partitioned) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func stamp(t *model.Task) {
	if t.EnqueuedAtNanos == 0 {
		t.EnqueuedAtNanos = time.Now().UnixNano()
	}
}
