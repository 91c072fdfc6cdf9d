package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CoinPulse/pkg/logger"
)

// Hook is one component's lifecycle. Either function may be nil.
type Hook struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// App starts its hooks in order, waits for SIGINT/SIGTERM, then stops
// them in reverse order.
type App struct {
	log             *logger.Logger
	hooks           []Hook
	shutdownTimeout time.Duration
}

// AppOption configures an App.
type AppOption func(*App)

// WithShutdownTimeout bounds the stop phase.
func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

func NewApp(log *logger.Logger, hooks []Hook, opts ...AppOption) *App {
	a := &App{
		log:             log,
		hooks:           hooks,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run blocks until a termination signal arrives. A failed start hook
// stops the already-started hooks and returns the error.
func (a *App) Run() error {
	ctx := context.Background()

	started := 0
	for _, h := range a.hooks {
		if h.Start != nil {
			if err := h.Start(ctx); err != nil {
				a.log.Error("start failed", logger.String("component", h.Name), logger.Error(err))
				a.stop(started)
				return fmt.Errorf("start %s: %w", h.Name, err)
			}
			a.log.Info("started", logger.String("component", h.Name))
		}
		started++
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	a.log.Info("shutting down", logger.String("signal", sig.String()))

	a.stop(len(a.hooks))
	return nil
}

// stop tears down the first n hooks, last started first.
func (a *App) stop(n int) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	for i := n - 1; i >= 0; i-- {
		h := a.hooks[i]
		if h.Stop == nil {
			continue
		}
		if err := h.Stop(ctx); err != nil {
			a.log.Error("stop failed", logger.String("component", h.Name), logger.Error(err))
			continue
		}
		a.log.Info("stopped", logger.String("component", h.Name))
	}
}
