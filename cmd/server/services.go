package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// httpServer matches *http.Server's lifecycle methods, the same narrowing
// the teacher's supervisor/services package applies so the wrapper below
// can be tested without binding a real listener.
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// httpService adapts an httpServer's blocking ListenAndServe into suture's
// context-aware Serve contract: start it in a goroutine, wait for either
// ctx cancellation or a server error, and on cancellation call Shutdown
// with a bounded grace period.
type httpService struct {
	server          httpServer
	shutdownTimeout time.Duration
}

func newHTTPService(server httpServer, shutdownTimeout time.Duration) *httpService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &httpService{server: server, shutdownTimeout: shutdownTimeout}
}

func (h *httpService) String() string { return "http-server" }

func (h *httpService) Serve(ctx context.Context) error {
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

// routerService adapts a blocking Run(ctx) error method — the shape
// watermill's message.Router exposes — into a suture.Service, the same
// Start-until-ctx-done pattern the teacher's SyncService wraps around its
// own start/stop managers.
type routerService struct {
	name string
	run  func(ctx context.Context) error
}

func newRouterService(name string, run func(ctx context.Context) error) *routerService {
	return &routerService{name: name, run: run}
}

func (r *routerService) String() string { return r.name }

func (r *routerService) Serve(ctx context.Context) error {
	return r.run(ctx)
}

// intervalService runs fn on a fixed period until ctx is canceled, the
// mechanism behind the Place/Visit Detector's background pass — a simpler
// cousin of the per-plugin cron cadence in internal/ingestion since the
// detector has exactly one, fixed-interval cadence rather than a
// per-source one.
type intervalService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	onErr    func(err error)
}

func newIntervalService(name string, interval time.Duration, fn func(ctx context.Context) error, onErr func(error)) *intervalService {
	return &intervalService{name: name, interval: interval, fn: fn, onErr: onErr}
}

func (s *intervalService) String() string { return s.name }

func (s *intervalService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.fn(ctx); err != nil && s.onErr != nil {
		s.onErr(err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.fn(ctx); err != nil && s.onErr != nil {
				s.onErr(err)
			}
		}
	}
}
