package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/tempoguard/internal/adapters/http/api"
	service "github.com/okian/tempoguard/internal/app"
	"github.com/okian/tempoguard/internal/config"
	"github.com/okian/tempoguard/internal/supervisor"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// We collect our own system metrics on a custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "tempoguard exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := service.New(ctx, cfg, service.WithLogger(log.Named("service")))
	if err != nil {
		return err
	}

	srv := newHTTPServer(cfg.Addr, api.NewServer(svc).Router())
	svc.AddAPI(supervisor.NewHTTPService(srv, shutdownTimeout))

	if err := svc.Start(ctx); err != nil {
		return err
	}
	log.Info(ctx, "serving HTTP", logger.String("addr", cfg.Addr), logger.String("node", svc.NodeID()))

	go startSystemMetricsUpdater(ctx)

	<-ctx.Done()
	log.Info(context.Background(), "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		return err
	}
	log.Info(shutdownCtx, "stopped")
	return nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater refreshes process metrics until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
