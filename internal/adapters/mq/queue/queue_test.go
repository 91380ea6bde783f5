package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
)

func task(id string, n int) model.Task {
	return model.Task{
		Kind:          model.TaskEvent,
		ParticipantID: id,
		Event:         model.ParticipantEvent{EventID: fmt.Sprintf("%s-%d", id, n), ParticipantID: id},
	}
}

func TestPartitioned_SameParticipantSamePartition(t *testing.T) {
	q := NewPartitioned(WithPartitions(4), WithCapacity(16))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !q.Enqueue(ctx, task("alice", i)) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}
	if l := q.Len(); l != 5 {
		t.Errorf("expected length 5, got %d", l)
	}

	ch := q.Dequeue(q.Partition("alice"))
	for i := 0; i < 5; i++ {
		got := <-ch
		q.Done()
		if want := fmt.Sprintf("alice-%d", i); got.Event.EventID != want {
			t.Errorf("expected %s, got %s", want, got.Event.EventID)
		}
		if got.EnqueuedAtNanos == 0 {
			t.Error("expected enqueue timestamp to be set")
		}
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestPartitioned_PartitionIsStable(t *testing.T) {
	q := NewPartitioned(WithPartitions(7))
	for _, id := range []string{"a", "b", "participant-42", ""} {
		p := q.Partition(id)
		if p < 0 || p >= 7 {
			t.Errorf("partition %d out of range for %q", p, id)
		}
		if q.Partition(id) != p {
			t.Errorf("partition for %q is not stable", id)
		}
	}
}

func TestPartitioned_Backpressure(t *testing.T) {
	q := NewPartitioned(WithPartitions(1), WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, task("a", 0)) || !q.Enqueue(ctx, task("a", 1)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, task("a", 2)) {
		t.Error("expected enqueue to fail when full")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(waitCtx, task("a", 3)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPartitioned_EnqueueWaitUnblocksOnClose(t *testing.T) {
	q := NewPartitioned(WithPartitions(1), WithCapacity(1))
	ctx := context.Background()
	q.Enqueue(ctx, task("a", 0))

	errCh := make(chan error, 1)
	go func() { errCh <- q.EnqueueWait(ctx, task("a", 1)) }()

	time.Sleep(10 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("EnqueueWait did not return after close")
	}
}

func TestPartitioned_ConcurrentProducers(t *testing.T) {
	q := NewPartitioned(WithPartitions(4), WithCapacity(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := q.EnqueueWait(ctx, task(fmt.Sprintf("p%d", p), i)); err != nil {
					t.Errorf("enqueue: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()

	if l := q.Len(); l != 1000 {
		t.Errorf("expected 1000 queued tasks, got %d", l)
	}
}

func TestPartitioned_GracefulShutdown(t *testing.T) {
	q := NewPartitioned(WithPartitions(1), WithCapacity(10))
	ctx := context.Background()
	q.Enqueue(ctx, task("a", 0))

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, task("a", 1)) {
		t.Error("expected enqueue to fail after closing")
	}

	var drained int
	for range q.Dequeue(0) {
		drained++
	}
	if drained != 1 {
		t.Errorf("expected queued task to stay readable, drained %d", drained)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
