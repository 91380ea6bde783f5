// Package redistransport carries cluster verdicts over Redis pub/sub.
package redistransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/okian/tempoguard/internal/domain/cluster"
	"github.com/okian/tempoguard/pkg/logger"
)

const subscriberBuffer = 256

// Transport publishes and subscribes through one Redis client.
type Transport struct {
	client *redis.Client
	log    logger.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

var _ cluster.Transport = (*Transport)(nil)

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string) (*Transport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client. Close closes it.
func NewWithClient(client *redis.Client) *Transport {
	return &Transport{
		client: client,
		log:    logger.Named("redis-transport"),
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

// Publish sends payload to every subscriber of topic.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe listens on topic until ctx ends or the transport closes.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, cluster.ErrTransportClosed
	}
	ps := t.client.Subscribe(ctx, topic)
	t.subs[ps] = struct{}{}
	t.mu.Unlock()

	// Wait for the subscription confirmation so nothing published after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		t.release(ps)
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer t.release(ps)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	t.log.Info(ctx, "subscribed", logger.String("topic", topic))
	return out, nil
}

// release closes ps and forgets it.
func (t *Transport) release(ps *redis.PubSub) {
	t.mu.Lock()
	delete(t.subs, ps)
	t.mu.Unlock()
	_ = ps.Close()
}

// Subscriptions returns the number of open subscriptions.
func (t *Transport) Subscriptions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Health pings the server.
func (t *Transport) Health(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close ends subscriptions and closes the client.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for ps := range t.subs {
		_ = ps.Close()
	}
	clear(t.subs)
	return t.client.Close()
}
