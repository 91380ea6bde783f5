package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/pkg/breaker"
)

// Webhook body formats.
const (
	FormatJSON    = "json"
	FormatDiscord = "discord"
)

const (
	defaultUsername  = "TempoGuard"
	colorEscalation  = 0xd9b61a
	colorFlagged     = 0xd60010
	maxEvidenceChars = 1000
)

// WebhookNotifier posts alerts to an HTTP endpoint.
type WebhookNotifier struct {
	url       string
	format    string
	username  string
	client    *http.Client
	perSecond float64
	burst     int
	limiter   *rate.Limiter
	breaker   *breaker.Breaker
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string, opts ...WebhookOption) (*WebhookNotifier, error) {
	w := &WebhookNotifier{
		url:       url,
		format:    FormatJSON,
		username:  defaultUsername,
		client:    &http.Client{Timeout: 15 * time.Second},
		perSecond: 5,
		burst:     10,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.format != FormatJSON && w.format != FormatDiscord {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, w.format)
	}
	w.limiter = rate.NewLimiter(rate.Limit(w.perSecond), w.burst)
	if w.breaker == nil {
		w.breaker = breaker.New(breaker.Config{Name: "alert-webhook"})
	}
	return w, nil
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Send waits for a rate-limit token, then posts the alert through the breaker.
func (w *WebhookNotifier) Send(ctx context.Context, ev model.EscalationEvent) error {
	body, err := w.body(ev)
	if err != nil {
		return err
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}
	return breaker.Do(w.breaker, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook request: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
		}
		return nil
	})
}

func (w *WebhookNotifier) body(ev model.EscalationEvent) ([]byte, error) {
	var v any = ev
	if w.format == FormatDiscord {
		v = w.discordMessage(ev)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode webhook body: %w", err)
	}
	return b, nil
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp,omitempty"`
	Footer    *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

func (w *WebhookNotifier) discordMessage(ev model.EscalationEvent) discordMessage {
	title, color := w.username+" Alert", colorEscalation
	if ev.Flagged {
		title, color = w.username+" Flagged", colorFlagged
	}
	evidence := ev.Evidence
	if len(evidence) > maxEvidenceChars {
		evidence = evidence[:maxEvidenceChars]
	}
	embed := discordEmbed{
		Title: title,
		Color: color,
		Fields: []discordField{
			{Name: "**Participant**", Value: ev.ParticipantID, Inline: true},
			{Name: "**Check**", Value: ev.CheckID, Inline: true},
			{Name: "**Level**", Value: strconv.Itoa(ev.PreviousLevel) + " → " + strconv.Itoa(ev.NewLevel), Inline: true},
			{Name: "**Score**", Value: strconv.FormatFloat(ev.Score, 'f', 2, 64), Inline: true},
			{Name: "**Details**", Value: "```" + evidence + "```"},
		},
	}
	if !ev.At.IsZero() {
		embed.Timestamp = ev.At.UTC().Format(time.RFC3339)
	}
	if ev.NodeID != "" {
		embed.Footer = &discordFooter{Text: ev.NodeID}
	}
	return discordMessage{Username: w.username, Embeds: []discordEmbed{embed}}
}
