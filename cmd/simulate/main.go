// Command simulate sends synthetic human and bot traffic to a tempoguard node and
// prints which participants were escalated.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/okian/tempoguard/internal/simulate"
	"github.com/okian/tempoguard/pkg/logger"
)

func main() {
	cfg := simulate.DefaultConfig()
	flag.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "node base URL")
	flag.IntVar(&cfg.Humans, "humans", cfg.Humans, "number of human participants")
	flag.IntVar(&cfg.Bots, "bots", cfg.Bots, "number of bot participants")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "how long each participant plays")
	flag.DurationVar(&cfg.BotInterval, "bot-interval", cfg.BotInterval, "bot click cadence")
	flag.DurationVar(&cfg.HumanMean, "human-mean", cfg.HumanMean, "mean human click interval")
	flag.DurationVar(&cfg.HumanJitter, "human-jitter", cfg.HumanJitter, "human click interval standard deviation")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := simulate.NewRunner(cfg)
	if err != nil {
		log.Error(ctx, "invalid configuration", logger.Error(err))
		os.Exit(2)
	}
	report, err := runner.Run(ctx)
	if err != nil {
		log.Error(ctx, "simulation failed", logger.Error(err))
		stop()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
