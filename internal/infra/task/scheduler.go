package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler arms one timer per job and runs due jobs on a bounded worker pool.
// Jobs run with a background context: the request that scheduled a job may
// be long gone by the time it fires.
type Scheduler struct {
	mu sync.Mutex

	handlers map[string]Handler
	pending  map[jobKey]*scheduled
	logger   *zap.Logger
	metrics  Metrics

	config    *Config
	semaphore chan struct{}

	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type scheduled struct {
	timer *time.Timer
	dueAt time.Time
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *zap.Logger, config *Config, metrics Metrics) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Scheduler{
		handlers:  make(map[string]Handler),
		pending:   make(map[jobKey]*scheduled),
		logger:    logger.Named("scheduler"),
		metrics:   metrics,
		config:    config,
		semaphore: make(chan struct{}, config.Workers),
		stopCh:    make(chan struct{}),
	}
}

// RegisterHandler registers the handler for a job kind.
func (s *Scheduler) RegisterHandler(kind string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
	s.logger.Debug("registered job handler", zap.String("kind", kind))
}

// Schedule runs the handler for kind with id once delay has elapsed. A job
// that is already pending for the same kind and id is not scheduled twice.
func (s *Scheduler) Schedule(kind string, id uuid.UUID, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if _, ok := s.handlers[kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	key := jobKey{kind: kind, id: id}
	if _, ok := s.pending[key]; ok {
		return nil
	}
	if delay < 0 {
		delay = 0
	}

	s.pending[key] = &scheduled{
		dueAt: time.Now().Add(delay),
		timer: time.AfterFunc(delay, func() { s.fire(key) }),
	}
	s.logger.Debug("job scheduled",
		zap.String("kind", kind),
		zap.String("id", id.String()),
		zap.Duration("delay", delay))
	return nil
}

// Pending returns the jobs whose timers have not fired yet.
func (s *Scheduler) Pending() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.pending))
	for key, p := range s.pending {
		jobs = append(jobs, Job{Kind: key.kind, ID: key.id, DueAt: p.dueAt})
	}
	return jobs
}

// Stop cancels timers that have not fired and waits for running jobs to finish.
// Cancelled jobs are not run; their records stay in their pre-settlement state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.stopped = true
	cancelled := 0
	for key, p := range s.pending {
		if p.timer.Stop() {
			cancelled++
		}
		delete(s.pending, key)
	}
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.Info("stopping scheduler", zap.Int("cancelled_jobs", cancelled))
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) fire(key jobKey) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if _, ok := s.pending[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	handler := s.handlers[key.kind]
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	select {
	case <-s.stopCh:
		s.logger.Debug("job dropped on shutdown",
			zap.String("kind", key.kind),
			zap.String("id", key.id.String()))
		return
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	}

	s.run(key, handler)
}

func (s *Scheduler) run(key jobKey, handler Handler) {
	ctx := context.Background()
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome := OutcomeSucceeded
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanicked
			s.logger.Error("job panicked",
				zap.String("kind", key.kind),
				zap.String("id", key.id.String()),
				zap.Any("panic", r))
		}
		s.metrics.JobFinished(key.kind, outcome, time.Since(start))
	}()

	if err := handler(ctx, key.id); err != nil {
		outcome = OutcomeFailed
		s.logger.Warn("job failed",
			zap.String("kind", key.kind),
			zap.String("id", key.id.String()),
			zap.Error(err))
		return
	}

	s.logger.Debug("job completed",
		zap.String("kind", key.kind),
		zap.String("id", key.id.String()),
		zap.Duration("duration", time.Since(start)))
}
