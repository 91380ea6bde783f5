package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tempoguard/pkg/logger"
)

// Result is the final state of one simulated participant.
type Result struct {
	ParticipantID string         `json:"participant_id"`
	Bot           bool           `json:"bot"`
	Sent          int            `json:"sent"`
	MaxLevel      int            `json:"max_level"`
	Levels        map[string]int `json:"levels"`
	Flagged       bool           `json:"flagged"`
}

// Report summarizes a run.
type Report struct {
	Results        []Result `json:"results"`
	BotsDetected   int      `json:"bots_detected"`
	Bots           int      `json:"bots"`
	FalsePositives int      `json:"false_positives"`
}

// Runner executes a simulation.
type Runner struct {
	cfg    Config
	client *client
	log    logger.Logger
}

// NewRunner validates cfg and prepares an HTTP client.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		client: &client{base: cfg.BaseURL, http: &http.Client{Timeout: cfg.RequestTimeout}},
		log:    logger.Named("simulate"),
	}, nil
}

// Run drives every participant concurrently for the configured duration. The first
// transport error cancels the run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var (
		mu      sync.Mutex
		results []Result
	)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Humans+r.cfg.Bots; i++ {
		isBot := i >= r.cfg.Humans
		id := fmt.Sprintf("human-%d", i)
		if isBot {
			id = fmt.Sprintf("bot-%d", i-r.cfg.Humans)
		}
		rng := rand.New(rand.NewSource(r.cfg.Seed + int64(i))) //nolint:gosec // traffic shape only
		var pacer Pacer
		if isBot {
			pacer = NewBot(id, r.cfg, rng)
		} else {
			pacer = NewHuman(id, r.cfg, rng)
		}

		g.Go(func() error {
			res, err := r.participant(ctx, id, isBot, pacer)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ParticipantID < results[j].ParticipantID })
	rep := Report{Results: results, Bots: r.cfg.Bots}
	for _, res := range results {
		switch {
		case res.Bot && res.MaxLevel > 0:
			rep.BotsDetected++
		case !res.Bot && res.MaxLevel > 0:
			rep.FalsePositives++
		}
	}
	r.log.Info(ctx, "simulation finished",
		logger.Int("participants", len(results)),
		logger.Int("bots_detected", rep.BotsDetected),
		logger.Int("bots", rep.Bots),
		logger.Int("false_positives", rep.FalsePositives))
	return rep, nil
}

func (r *Runner) participant(ctx context.Context, id string, isBot bool, pacer Pacer) (Result, error) {
	res := Result{ParticipantID: id, Bot: isBot}
	if err := r.client.connect(ctx, id); err != nil {
		return res, err
	}

	deadline := time.NewTimer(r.cfg.Duration)
	defer deadline.Stop()
loop:
	for {
		step := pacer.Next()
		wait := time.NewTimer(step.Wait)
		select {
		case <-ctx.Done():
			wait.Stop()
			return res, ctx.Err()
		case <-deadline.C:
			wait.Stop()
			break loop
		case <-wait.C:
		}
		if err := r.client.send(ctx, step.Event); err != nil {
			return res, err
		}
		res.Sent++
	}

	// The view can trail the last few queued events.
	view, err := r.client.view(ctx, id)
	if err != nil {
		return res, err
	}
	res.Levels = make(map[string]int, len(view.Checks))
	for _, c := range view.Checks {
		res.Levels[c.CheckID] = c.EscalationLevel
		if c.EscalationLevel > res.MaxLevel {
			res.MaxLevel = c.EscalationLevel
		}
		res.Flagged = res.Flagged || c.Flagged
	}
	return res, r.client.disconnect(ctx, id)
}
