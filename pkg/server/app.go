package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PulseScan/internal/usecase"
	xhttp "PulseScan/pkg/http"
	pkgkafka "PulseScan/pkg/kafka"
	applogger "PulseScan/pkg/logger"
)

// CycleRunner runs one scan over the universe.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*usecase.CycleReport, error)
}

// Pipeline is the outbound signal buffer.
type Pipeline interface {
	Start(ctx context.Context)
	Stop()
	Drain(ctx context.Context) int
	Pending() int
}

// DedupState is the sent-alert record that must survive a restart.
type DedupState interface {
	Prune() int
	Flush() error
}

// Reloader refreshes file-backed settings between cycles.
type Reloader interface {
	Reload() error
}

type Options struct {
	Interval        time.Duration
	StatsEvery      int
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration
}

// App owns the process lifecycle: the scan schedule, the HTTP server, the
// archive consumer and orderly shutdown of every client.
type App struct {
	opts    Options
	log     *applogger.Logger
	scanner CycleRunner
	stats   *usecase.Stats

	pipeline  Pipeline
	dedup     DedupState
	blocklist Reloader

	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	archive    pkgkafka.MessageHandler

	closers []namedCloser

	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	lastFlush time.Time
}

type namedCloser struct {
	name string
	c    io.Closer
}

func New(opts Options, log *applogger.Logger, scanner CycleRunner, stats *usecase.Stats) *App {
	if log == nil {
		log = applogger.Nop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	return &App{
		opts:    opts,
		log:     log,
		scanner: scanner,
		stats:   stats,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func (a *App) SetPipeline(p Pipeline)        { a.pipeline = p }
func (a *App) SetDedup(d DedupState)         { a.dedup = d }
func (a *App) SetBlocklist(r Reloader)       { a.blocklist = r }
func (a *App) SetHTTPServer(s *xhttp.Server) { a.httpServer = s }

// SetConsumer attaches the archive consumer and its handler.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.archive = c, h
}

// CloserFunc adapts a func to io.Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// AddCloser registers a client closed on shutdown, in reverse order.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts background services and scans until SIGINT/SIGTERM. With
// once set it runs a single cycle and returns its error.
func (a *App) Run(once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx, once)
}

// RunContext is Run driven by ctx instead of process signals.
func (a *App) RunContext(ctx context.Context, once bool) error {
	if err := a.start(ctx, once); err != nil {
		a.shutdown()
		return err
	}

	err := a.loop(ctx, once)
	if errors.Is(err, context.Canceled) {
		a.log.Info("shutdown signal received")
		err = nil
	}
	a.shutdown()
	return err
}

func (a *App) start(ctx context.Context, once bool) error {
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}
	if a.consumer != nil && a.archive != nil {
		a.consumer.RegisterHandler(a.archive)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start archive consumer: %w", err)
		}
	}
	if a.httpServer != nil && !once {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}
	return nil
}

// loop runs cycles back to back on a fixed cadence. A cycle that overran
// the interval is followed immediately by the next one.
func (a *App) loop(ctx context.Context, once bool) error {
	for n := 1; ; n++ {
		start := a.now()
		if a.blocklist != nil {
			if err := a.blocklist.Reload(); err != nil {
				a.log.Warn("blocklist reload failed, keeping previous list", applogger.Error(err))
			}
		}
		a.maintainDedup(start)

		report, err := a.scanner.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			a.log.Error("cycle failed", applogger.Int("cycle", n), applogger.Error(err))
			if once {
				return err
			}
		}
		if once {
			if a.stats != nil {
				a.stats.Log(a.log)
			}
			return nil
		}
		if report != nil && a.stats != nil && a.opts.StatsEvery > 0 && a.stats.Cycles()%a.opts.StatsEvery == 0 {
			a.stats.Log(a.log)
		}

		elapsed := a.now().Sub(start)
		wait := a.opts.Interval - elapsed
		if wait <= 0 {
			a.log.Warn("cycle overran interval, starting next immediately",
				applogger.Duration("elapsed", elapsed),
				applogger.Duration("interval", a.opts.Interval),
			)
			continue
		}
		a.log.Info("waiting for next cycle", applogger.Duration("sleep", wait))
		if err := a.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// maintainDedup evicts expired records every cycle and rewrites the file
// at most once per FlushInterval.
func (a *App) maintainDedup(now time.Time) {
	if a.dedup == nil {
		return
	}
	pruned := a.dedup.Prune()
	if pruned > 0 {
		a.log.Debug("dedup records expired", applogger.Int("pruned", pruned))
	}
	if a.opts.FlushInterval <= 0 || now.Sub(a.lastFlush) < a.opts.FlushInterval {
		return
	}
	if err := a.dedup.Flush(); err != nil {
		a.log.Warn("dedup flush failed", applogger.Error(err))
		return
	}
	a.lastFlush = now
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Warn("http shutdown error", applogger.Error(err))
		}
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
		if n := a.pipeline.Drain(ctx); n > 0 {
			a.log.Info("drained buffered signals", applogger.Int("delivered", n))
		}
		if left := a.pipeline.Pending(); left > 0 {
			a.log.Warn("signals left undelivered", applogger.Int("pending", left))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.dedup != nil {
		if err := a.dedup.Flush(); err != nil {
			a.log.Error("dedup flush failed", applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", nc.name), applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
