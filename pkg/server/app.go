package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ExecCore/pkg/config"
	xhttp "ExecCore/pkg/http"
	pkgkafka "ExecCore/pkg/kafka"
	applogger "ExecCore/pkg/logger"
)

// Service is a background component with an explicit lifecycle.
type Service interface {
	Start() error
	Stop(ctx context.Context) error
}

// Sweeper drops idle per-key state.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

type closer interface {
	Close() error
}

// Option configures App.
type Option func(*App)

// WithConsumer runs c alongside the HTTP server. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) {
		if c != nil {
			a.consumer = c
		}
	}
}

// WithService runs an arbitrary background service.
func WithService(s Service) Option {
	return func(a *App) { a.consumer = s }
}

// WithSweeper sweeps idle rate limiter keys on a ticker.
func WithSweeper(s Sweeper) Option {
	return func(a *App) { a.sweeper = s }
}

// WithPublisher closes p after the HTTP server has drained.
func WithPublisher(p closer) Option {
	return func(a *App) { a.publisher = p }
}

// WithSweepInterval overrides how often and at what idle age keys are swept.
func WithSweepInterval(every, idle time.Duration) Option {
	return func(a *App) {
		a.sweepEvery = every
		a.sweepIdle = idle
	}
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   Service
	sweeper    Sweeper
	publisher  closer
	sweepEvery time.Duration
	sweepIdle  time.Duration
}

// New creates an App around the HTTP server.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, opts ...Option) *App {
	a := &App{
		cfg:        cfg,
		log:        l,
		httpServer: srv,
		sweepEvery: time.Minute,
		sweepIdle:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until ctx is done, a termination
// signal arrives, or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := a.httpServer.Start()

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			_ = a.shutdown()
			return fmt.Errorf("start consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.MicrostructureTopic))
	}

	var wg sync.WaitGroup
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	if a.sweeper != nil && a.sweepEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.sweep(sweepCtx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-errc:
		if ok && err != nil {
			a.log.Error("http server error", applogger.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	cancelSweep()
	wg.Wait()

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(a.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.sweeper.Sweep(a.sweepIdle); n > 0 {
				a.log.Debug("rate limiter keys swept", applogger.Int("count", n))
			}
		}
	}
}

// shutdown stops intake first (HTTP, consumer) and then flushes the publisher.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
