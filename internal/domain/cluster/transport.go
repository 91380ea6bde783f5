package cluster

import (
	"context"
	"sync"
)

// Transport moves encoded verdicts between nodes. Delivery is at-least-once or
// best-effort; merges are idempotent so either is fine. Every node must receive
// every message published on the topic, including its own.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns a channel closed when ctx ends or the transport closes.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// Noop is a transport for single-node deployments. Publishing succeeds and nothing is received.
type Noop struct {
	once sync.Once
	done chan struct{}
}

// NewNoop creates a Noop transport.
func NewNoop() *Noop {
	return &Noop{done: make(chan struct{})}
}

// Publish discards the payload.
func (n *Noop) Publish(context.Context, string, []byte) error { return nil }

// Subscribe returns a channel that closes with ctx or Close.
func (n *Noop) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		select {
		case <-ctx.Done():
		case <-n.done:
		}
	}()
	return ch, nil
}

// Close releases subscribers.
func (n *Noop) Close() error {
	n.once.Do(func() { close(n.done) })
	return nil
}
