package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncapp "github.com/optika/backend/internal/application/sync"
)

// fakeRunner counts runs and can simulate a long-running pass
type fakeRunner struct {
	mu       sync.Mutex
	runs     int
	blockFor time.Duration
	running  atomic.Bool
}

func (r *fakeRunner) Run(ctx context.Context, mode syncapp.Mode) (*syncapp.RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, syncapp.ErrSyncInProgress
	}
	defer r.running.Store(false)

	if r.blockFor > 0 {
		select {
		case <-time.After(r.blockFor):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	return &syncapp.RunResult{ID: uuid.New(), Mode: mode, StartedAt: time.Now()}, nil
}

func (r *fakeRunner) IsRunning() bool { return r.running.Load() }

func (r *fakeRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func TestNewSyncScheduler(t *testing.T) {
	t.Run("rejects non-positive interval", func(t *testing.T) {
		_, err := NewSyncScheduler(SyncSchedulerConfig{Interval: 0}, &fakeRunner{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSyncScheduler_StartStop(t *testing.T) {
	t.Run("start is idempotent", func(t *testing.T) {
		runner := &fakeRunner{}
		s, err := NewSyncScheduler(SyncSchedulerConfig{Enabled: true, Interval: time.Hour}, runner, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.IsRunning())

		require.NoError(t, s.Stop(context.Background()))
		assert.False(t, s.IsRunning())
	})

	t.Run("stop before start is a no-op", func(t *testing.T) {
		s, err := NewSyncScheduler(SyncSchedulerConfig{Interval: time.Hour}, &fakeRunner{}, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, s.Stop(context.Background()))
	})
}

func TestSyncScheduler_Ticks(t *testing.T) {
	t.Run("interval ticks trigger incremental runs", func(t *testing.T) {
		runner := &fakeRunner{}
		s, err := NewSyncScheduler(SyncSchedulerConfig{Enabled: true, Interval: 10 * time.Millisecond}, runner, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		defer s.Stop(context.Background())

		assert.Eventually(t, func() bool { return runner.runCount() >= 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("ticks are skipped while a run is in flight", func(t *testing.T) {
		runner := &fakeRunner{blockFor: 200 * time.Millisecond}
		s, err := NewSyncScheduler(SyncSchedulerConfig{Enabled: true, Interval: 10 * time.Millisecond}, runner, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))
		time.Sleep(150 * time.Millisecond)
		require.NoError(t, s.Stop(context.Background()))

		// Many ticks elapsed but at most one run could have been active.
		assert.LessOrEqual(t, runner.runCount(), 1)
	})
}

func TestSyncScheduler_TriggerSync(t *testing.T) {
	t.Run("manual trigger records history", func(t *testing.T) {
		runner := &fakeRunner{}
		s, err := NewSyncScheduler(SyncSchedulerConfig{Interval: time.Hour}, runner, zap.NewNop())
		require.NoError(t, err)

		result, err := s.TriggerSync(context.Background(), syncapp.ModeFull)

		require.NoError(t, err)
		assert.Equal(t, syncapp.ModeFull, result.Mode)
		history := s.History(10)
		require.Len(t, history, 1)
		assert.Equal(t, result.ID, history[0].ID)
	})

	t.Run("history is newest first and bounded", func(t *testing.T) {
		runner := &fakeRunner{}
		s, err := NewSyncScheduler(SyncSchedulerConfig{Interval: time.Hour}, runner, zap.NewNop())
		require.NoError(t, err)

		for i := 0; i < maxRunHistory+5; i++ {
			_, err := s.TriggerSync(context.Background(), syncapp.ModeIncremental)
			require.NoError(t, err)
		}

		history := s.History(0)
		assert.Len(t, history, maxRunHistory)
	})
}
