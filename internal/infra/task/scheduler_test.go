package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *recordingMetrics) JobFinished(kind, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[kind+"/"+outcome]++
}

func (m *recordingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[key]
}

func TestScheduler_RunsJobAfterDelay(t *testing.T) {
	metrics := &recordingMetrics{}
	s := NewScheduler(zap.NewNop(), &Config{Workers: 2}, metrics)
	defer s.Stop()

	ran := make(chan uuid.UUID, 1)
	s.RegisterHandler("payment.settle", func(_ context.Context, id uuid.UUID) error {
		ran <- id
		return nil
	})

	id := uuid.New()
	start := time.Now()
	require.NoError(t, s.Schedule("payment.settle", id, 20*time.Millisecond))

	select {
	case got := <-ran:
		assert.Equal(t, id, got)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	require.Eventually(t, func() bool {
		return metrics.count("payment.settle/"+OutcomeSucceeded) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Pending())
}

func TestScheduler_Schedule(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		s := NewScheduler(nil, nil, nil)
		defer s.Stop()

		err := s.Schedule("nope", uuid.New(), 0)
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("after stop", func(t *testing.T) {
		s := NewScheduler(nil, nil, nil)
		s.RegisterHandler("k", func(context.Context, uuid.UUID) error { return nil })
		s.Stop()

		err := s.Schedule("k", uuid.New(), 0)
		assert.ErrorIs(t, err, ErrStopped)
	})

	t.Run("duplicate pending job runs once", func(t *testing.T) {
		s := NewScheduler(nil, nil, nil)
		defer s.Stop()

		var runs atomic.Int32
		s.RegisterHandler("k", func(context.Context, uuid.UUID) error {
			runs.Add(1)
			return nil
		})

		id := uuid.New()
		require.NoError(t, s.Schedule("k", id, 30*time.Millisecond))
		require.NoError(t, s.Schedule("k", id, 30*time.Millisecond))
		assert.Len(t, s.Pending(), 1)

		require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(1), runs.Load())
	})
}

func TestScheduler_StopCancelsUnfiredTimers(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil, nil)

	var runs atomic.Int32
	s.RegisterHandler("k", func(context.Context, uuid.UUID) error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.Schedule("k", uuid.New(), time.Hour))
	require.Len(t, s.Pending(), 1)

	s.Stop()
	assert.Empty(t, s.Pending())
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_StopWaitsForRunningJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop(), nil, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s.RegisterHandler("k", func(context.Context, uuid.UUID) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	})

	require.NoError(t, s.Schedule("k", uuid.New(), 0))
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-stopped
	assert.True(t, finished.Load())
}

func TestScheduler_BoundedWorkers(t *testing.T) {
	s := NewScheduler(zap.NewNop(), &Config{Workers: 2}, nil)
	defer s.Stop()

	var current, peak atomic.Int32
	var done sync.WaitGroup
	s.RegisterHandler("k", func(context.Context, uuid.UUID) error {
		defer done.Done()
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil
	})

	const jobs = 8
	done.Add(jobs)
	for i := 0; i < jobs; i++ {
		require.NoError(t, s.Schedule("k", uuid.New(), 0))
	}
	done.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestScheduler_FailuresAndPanicsAreContained(t *testing.T) {
	metrics := &recordingMetrics{}
	s := NewScheduler(zap.NewNop(), nil, metrics)
	defer s.Stop()

	s.RegisterHandler("fail", func(context.Context, uuid.UUID) error { return errors.New("boom") })
	s.RegisterHandler("panic", func(context.Context, uuid.UUID) error { panic("boom") })

	require.NoError(t, s.Schedule("fail", uuid.New(), 0))
	require.NoError(t, s.Schedule("panic", uuid.New(), 0))

	require.Eventually(t, func() bool {
		return metrics.count("fail/"+OutcomeFailed) == 1 && metrics.count("panic/"+OutcomePanicked) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_JobTimeout(t *testing.T) {
	s := NewScheduler(zap.NewNop(), &Config{Workers: 1, JobTimeout: 10 * time.Millisecond}, nil)
	defer s.Stop()

	errCh := make(chan error, 1)
	s.RegisterHandler("k", func(ctx context.Context, _ uuid.UUID) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})

	require.NoError(t, s.Schedule("k", uuid.New(), 0))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}
