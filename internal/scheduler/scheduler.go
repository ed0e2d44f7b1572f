package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/logger"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/pipeline"
)

// Runner executes one pipeline cycle.
type Runner interface {
	RunCycle(ctx context.Context) (pipeline.Stats, error)
}

// Scheduler fires pipeline cycles on a cron schedule. At most one cycle
// runs at a time: a tick that lands while the previous cycle is still
// going is skipped and logged, never queued. The suppression is
// process-local; running two daemons against the same cache is not
// supported.
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule

	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	running      bool
	cycleRunning bool
	inFlight     sync.WaitGroup

	shutdownTimeout time.Duration
}

func New(runner Runner, cfg config.SchedulerConfig) (*Scheduler, error) {
	spec := cfg.Schedule
	if spec == "" {
		spec = config.DefaultSchedulerSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSchedulerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler shutdown timeout: %w", err)
	}

	return &Scheduler{
		runner:          runner,
		schedule:        schedule,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.run()

	slog.Info("Scheduler started", "next", s.schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Scheduler stopped gracefully")
		return nil
	case <-time.After(s.shutdownTimeout):
		slog.Warn("Scheduler shutdown timeout, abandoning in-flight cycle")
		return errors.Internal("shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// TryBeginCycle claims the cycle slot. It returns false when a cycle is
// already in flight; the caller must call EndCycle after a true return.
func (s *Scheduler) TryBeginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycleRunning {
		return false
	}
	s.cycleRunning = true
	return true
}

func (s *Scheduler) EndCycle() {
	s.mu.Lock()
	s.cycleRunning = false
	s.mu.Unlock()
}

func (s *Scheduler) run() {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			s.fire(next)
		case <-s.ctx.Done():
			timer.Stop()
			slog.Info("Scheduler run loop stopped")
			return
		}
	}
}

func (s *Scheduler) fire(tick time.Time) {
	if !s.TryBeginCycle() {
		slog.Warn("Previous cycle still running, skipping tick", "tick", tick.Format(time.RFC3339))
		return
	}

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		defer s.EndCycle()

		ctx := logger.WithRunID(s.ctx, newRunID())
		if _, err := s.runner.RunCycle(ctx); err != nil {
			slog.ErrorContext(ctx, "Cycle failed", "error", err)
		}
	}()
}
