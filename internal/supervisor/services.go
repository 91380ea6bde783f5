package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
)

// Once wraps a service that finishes on its own: a clean return is final instead of
// triggering a restart. Done is closed when that happens.
type Once struct {
	svc  suture.Service
	done chan struct{}
	once sync.Once
}

// NewOnce wraps svc.
func NewOnce(svc suture.Service) *Once {
	return &Once{svc: svc, done: make(chan struct{})}
}

// Serve runs the wrapped service.
func (o *Once) Serve(ctx context.Context) error {
	err := o.svc.Serve(ctx)
	if err == nil {
		o.once.Do(func() { close(o.done) })
		return suture.ErrDoNotRestart
	}
	return err
}

// Done is closed after the wrapped service returned cleanly.
func (o *Once) Done() <-chan struct{} { return o.done }

func (o *Once) String() string { return fmt.Sprint(o.svc) }

// HTTPServer is the part of *http.Server the service needs.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server until ctx ends, then shuts it down gracefully.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve listens until ctx ends or the server fails.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }
