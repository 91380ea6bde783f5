// Package worker drains queue partitions, one goroutine per partition.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

const defaultMetricsInterval = 5 * time.Second

// Handler executes one task. It is never called concurrently for the same partition.
type Handler interface {
	Handle(ctx context.Context, t model.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t model.Task) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t model.Task) error { return f(ctx, t) } //nolint:gocritic // hugeParam: Task is passed by value for channel semantics

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(i int) <-chan model.Task
	Done()
	Partitions() int
	Len() int
}

// Pool runs one worker per queue partition.
type Pool struct {
	queue           Queue
	handler         Handler
	name            string
	metricsInterval time.Duration
	logger          logger.Logger
}

// NewPool creates a pool over all partitions of q.
func NewPool(q Queue, h Handler, opts ...Option) *Pool {
	p := &Pool{
		queue:           q,
		handler:         h,
		name:            "worker-pool",
		metricsInterval: defaultMetricsInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Named(p.name)
	}
	return p
}

// Serve runs the workers until ctx is canceled or every partition is closed and drained.
func (p *Pool) Serve(ctx context.Context) error {
	n := p.queue.Partitions()
	metrics.UpdateWorkerCount(n)
	defer metrics.UpdateWorkerCount(0)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.run(ctx, i)
		}(i)
	}

	stop := make(chan struct{})
	go p.metricsLoop(ctx, stop)
	wg.Wait()
	close(stop)

	p.logger.Info(ctx, "workers stopped", logger.Int("workers", n))
	return ctx.Err()
}

// String names the pool for supervision.
func (p *Pool) String() string { return p.name }

func (p *Pool) run(ctx context.Context, i int) {
	tasks := p.queue.Dequeue(i)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			p.queue.Done()
			if err := p.process(ctx, t); err != nil {
				metrics.RecordWorkerError()
				metrics.RecordErrorByComponent("worker", t.Kind.String())
				p.logger.Error(ctx, "task failed",
					logger.String("worker", strconv.Itoa(i)),
					logger.String("participant", t.ParticipantID),
					logger.String("kind", t.Kind.String()),
					logger.Error(err))
			}
		}
	}
}

// process isolates a panicking handler so the partition keeps draining.
func (p *Pool) process(ctx context.Context, t model.Task) (err error) { //nolint:gocritic // hugeParam: Task is passed by value for channel semantics
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if t.EnqueuedAtNanos > 0 {
		defer func() {
			metrics.RecordProcessingLatency(float64(time.Now().UnixNano()-t.EnqueuedAtNanos) / 1e6)
		}()
	}
	return p.handler.Handle(ctx, t)
}

func (p *Pool) metricsLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.queue.Len())
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
