package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrSchedulerRunning = errors.New("scheduler is already running")

// Task is one scheduled run; it returns how many items it handled.
type Task func(ctx context.Context, now time.Time) (int, error)

type SchedulerConfig struct {
	Name     string
	Interval time.Duration
}

// Scheduler runs a task immediately and then on every interval tick until stopped.
type Scheduler struct {
	task   Task
	config SchedulerConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(task Task, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &Scheduler{task: task, config: config, logger: logger}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)
	s.logger.InfoContext(ctx, "Scheduler started", "task", s.config.Name, "interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current run to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Scheduler stopped", "task", s.config.Name)
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out", "task", s.config.Name)
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, time.Now())
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runOnce(ctx, now)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	n, err := s.task(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled run failed", "task", s.config.Name, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled run complete",
		"task", s.config.Name,
		"handled", n,
		"next_run", now.Add(s.config.Interval).Format("15:04:05"))
}
