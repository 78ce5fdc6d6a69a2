// Package schedule drives the acceptance pipeline on a fixed interval.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"github.com/bnema/truck-load-watch/internal/application"
	"github.com/bnema/truck-load-watch/internal/domain"
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultCycleTimeout = 2 * time.Minute
)

type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleResult, error)
}

type Config struct {
	Interval     time.Duration
	CycleTimeout time.Duration
}

type Scheduler struct {
	runner  CycleRunner
	cfg     Config
	logger  *slog.Logger
	newID   func() string
	running sync.Mutex
}

func New(runner CycleRunner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("schedule: cycle runner is nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		newID:  func() string { return ulid.Make().String() },
	}, nil
}

// Run executes a cycle at once and then on every interval until ctx is
// done. It returns after the cycle in flight, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	cronLogger := newCronLogger(s.logger)
	job := cron.NewChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	).Then(cron.FuncJob(func() {
		_, _ = s.RunOnce(ctx)
	}))

	c := cron.New(cron.WithLogger(cronLogger))
	c.Schedule(cron.Every(s.cfg.Interval), job)

	s.logger.InfoContext(ctx, "watcher started", "interval", s.cfg.Interval, "cycle_timeout", s.cfg.CycleTimeout)

	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		job.Run()
	}()

	c.Start()
	<-ctx.Done()

	<-c.Stop().Done()
	first.Wait()

	s.logger.Info("watcher stopped")
	return nil
}

// RunOnce runs a single cycle with its own id and deadline. Cancelling
// ctx does not interrupt a cycle already underway; the cycle timeout
// bounds it instead.
func (s *Scheduler) RunOnce(ctx context.Context) (domain.CycleResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.CycleResult{}, err
	}

	s.running.Lock()
	defer s.running.Unlock()

	cycleID := s.newID()
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CycleTimeout)
	defer cancel()
	cycleCtx = application.WithCycleID(cycleCtx, cycleID)

	logger := s.logger.With("cycle", cycleID)
	started := time.Now()

	result, err := s.runner.RunCycle(cycleCtx)
	elapsed := time.Since(started).Round(time.Millisecond)
	if err != nil {
		s.logFailure(cycleCtx, logger, err, elapsed)
		return result, err
	}

	switch result.Kind {
	case domain.CycleAccepted:
		logger.InfoContext(cycleCtx, "cycle finished", "result", result.String(), "elapsed", elapsed)
	case domain.CycleAborted:
		logger.WarnContext(cycleCtx, "cycle aborted", "reason", result.Reason, "elapsed", elapsed)
	default:
		logger.DebugContext(cycleCtx, "cycle finished", "result", result.String(), "elapsed", elapsed)
	}

	return result, nil
}

func (s *Scheduler) logFailure(ctx context.Context, logger *slog.Logger, err error, elapsed time.Duration) {
	switch {
	case errors.Is(err, domain.ErrParse):
		logger.ErrorContext(ctx, "listing could not be parsed; upstream layout changed", "error", err, "elapsed", elapsed)
	case errors.Is(err, domain.ErrAuth):
		logger.ErrorContext(ctx, "market login failed", "error", err, "elapsed", elapsed)
	case errors.Is(err, context.DeadlineExceeded):
		logger.ErrorContext(ctx, fmt.Sprintf("cycle exceeded %s", s.cfg.CycleTimeout), "error", err)
	default:
		logger.ErrorContext(ctx, "cycle failed", "error", err, "elapsed", elapsed)
	}
}
