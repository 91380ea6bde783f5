package alert

import (
	"net/http"
	"time"

	"github.com/okian/tempoguard/pkg/breaker"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize bounds alerts waiting for delivery.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithTimeout bounds delivery of one alert to one notifier.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithNotifiers adds notifiers.
func WithNotifiers(n ...Notifier) Option {
	return func(d *Dispatcher) {
		d.notifiers = append(d.notifiers, n...)
	}
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient sets the client used for webhook calls.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		if c != nil {
			w.client = c
		}
	}
}

// WithFormat selects "json" or "discord" bodies.
func WithFormat(format string) WebhookOption {
	return func(w *WebhookNotifier) {
		if format != "" {
			w.format = format
		}
	}
}

// WithRateLimit caps webhook calls per second with a burst allowance.
func WithRateLimit(perSecond float64, burst int) WebhookOption {
	return func(w *WebhookNotifier) {
		if perSecond > 0 && burst > 0 {
			w.perSecond = perSecond
			w.burst = burst
		}
	}
}

// WithWebhookBreaker sets the breaker guarding webhook calls.
func WithWebhookBreaker(b *breaker.Breaker) WebhookOption {
	return func(w *WebhookNotifier) {
		if b != nil {
			w.breaker = b
		}
	}
}

// WithUsername sets the display name used by chat formats.
func WithUsername(name string) WebhookOption {
	return func(w *WebhookNotifier) {
		if name != "" {
			w.username = name
		}
	}
}
