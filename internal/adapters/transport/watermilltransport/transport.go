// Package watermilltransport carries cluster verdicts over watermill publishers and
// subscribers: an in-process go channel for tests and single-host clusters, or core NATS.
package watermilltransport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/okian/tempoguard/internal/domain/cluster"
	"github.com/okian/tempoguard/pkg/logger"
)

const (
	subscriberBuffer   = 256
	natsMaxReconnects  = -1
	natsReconnectWait  = 2 * time.Second
	natsCloseTimeout   = 5 * time.Second
	natsAckWaitTimeout = 10 * time.Second
)

// Transport adapts a watermill publisher and subscriber to cluster.Transport.
type Transport struct {
	pub message.Publisher
	sub message.Subscriber
	log logger.Logger

	closeOnce sync.Once
}

var _ cluster.Transport = (*Transport)(nil)

// New wraps pub and sub. Close closes both.
func New(pub message.Publisher, sub message.Subscriber) *Transport {
	return &Transport{pub: pub, sub: sub, log: logger.Named("watermill-transport")}
}

// NewGoChannel creates an in-process pub/sub. Transports built with Shared on the same
// channel see each other's messages.
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: subscriberBuffer},
		NewLogger(logger.Named("gochannel")),
	)
}

// Shared wraps one go channel as both publisher and subscriber.
func Shared(ch *gochannel.GoChannel) *Transport {
	return New(ch, ch)
}

// NewNATS connects to core NATS at url. JetStream is not used: verdicts are
// re-broadcast by the reconciliation sweep, so at-most-once delivery is enough, and
// without a queue group every node receives every verdict.
func NewNATS(url string) (*Transport, error) {
	wlog := NewLogger(logger.Named("nats"))
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsMaxReconnects),
		natsgo.ReconnectWait(natsReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				wlog.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			wlog.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   natsAckWaitTimeout,
		CloseTimeout:     natsCloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	return New(pub, sub), nil
}

// Publish sends payload on topic.
func (t *Transport) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := t.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe acknowledges each message once its payload is handed over.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	msgs, err := t.sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				payload := append([]byte(nil), m.Payload...)
				m.Ack()
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	t.log.Info(ctx, "subscribed", logger.String("topic", topic))
	return out, nil
}

// Close closes the publisher and the subscriber.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = errors.Join(t.pub.Close(), t.sub.Close())
	})
	return err
}
