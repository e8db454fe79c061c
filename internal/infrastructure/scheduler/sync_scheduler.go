// Package scheduler drives periodic sync runs. One ticker loop invokes the
// orchestrator at a fixed interval; ticks that land while a run is still in
// flight are skipped, never queued.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	syncapp "github.com/optika/backend/internal/application/sync"
)

// maxRunHistory bounds the in-memory run history
const maxRunHistory = 50

// SyncRunner is the orchestrator surface the scheduler depends on.
type SyncRunner interface {
	Run(ctx context.Context, mode syncapp.Mode) (*syncapp.RunResult, error)
	IsRunning() bool
}

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Enabled indicates if the interval loop starts at boot
	Enabled bool
	// Interval is the delay between scheduled incremental runs
	Interval time.Duration
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler periodically triggers incremental sync runs and keeps a
// bounded in-memory history of completed runs for monitoring.
type SyncScheduler struct {
	config SyncSchedulerConfig
	runner SyncRunner
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	historyMu sync.RWMutex
	history   []*syncapp.RunResult
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, runner SyncRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncScheduler{
		config:  config,
		runner:  runner,
		logger:  logger.Named("scheduler"),
		history: make([]*syncapp.RunResult, 0, maxRunHistory),
	}, nil
}

// Start starts the interval loop. Calling Start on a running scheduler is a
// no-op.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Sync scheduler started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight tick to
// finish until the context expires.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the interval loop is active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// TriggerSync runs one sync pass on demand with the given mode. Manual
// triggers share the orchestrator's mutual exclusion guard with scheduled
// ticks; a trigger during an active run returns ErrSyncInProgress.
func (s *SyncScheduler) TriggerSync(ctx context.Context, mode syncapp.Mode) (*syncapp.RunResult, error) {
	result, err := s.runner.Run(ctx, mode)
	if err != nil {
		return nil, err
	}
	s.addToHistory(result)
	return result, nil
}

// History returns the most recent completed runs, newest first.
func (s *SyncScheduler) History(limit int) []*syncapp.RunResult {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*syncapp.RunResult, limit)
	copy(result, s.history[:limit])
	return result
}

// loop ticks at the configured interval until the context is cancelled.
func (s *SyncScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one scheduled incremental pass. A tick that finds a run already
// in flight logs and skips; it never queues behind the active run.
func (s *SyncScheduler) tick(ctx context.Context) {
	if s.runner.IsRunning() {
		s.logger.Info("Skipping scheduled sync, previous run still in flight")
		return
	}

	result, err := s.runner.Run(ctx, syncapp.ModeIncremental)
	if err != nil {
		if errors.Is(err, syncapp.ErrSyncInProgress) {
			// A manual trigger won the race between the check and the run.
			s.logger.Info("Skipping scheduled sync, previous run still in flight")
			return
		}
		s.logger.Error("Scheduled sync failed", zap.Error(err))
		return
	}
	s.addToHistory(result)
}

// addToHistory prepends a completed run, trimming to the history cap.
func (s *SyncScheduler) addToHistory(result *syncapp.RunResult) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*syncapp.RunResult{result}, s.history...)
	if len(s.history) > maxRunHistory {
		s.history = s.history[:maxRunHistory]
	}
}
