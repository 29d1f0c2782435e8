// Package task runs deferred jobs: each job is a (kind, id) pair executed by
// the handler registered for its kind once its delay has elapsed.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStopped is returned when scheduling on a stopped scheduler.
	ErrStopped = errors.New("scheduler stopped")

	// ErrUnknownKind is returned when no handler is registered for a job kind.
	ErrUnknownKind = errors.New("no handler registered for job kind")
)

// Handler executes one job.
type Handler func(ctx context.Context, id uuid.UUID) error

// Job outcomes reported to metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomePanicked  = "panicked"
)

// Job identifies a scheduled unit of work.
type Job struct {
	Kind  string
	ID    uuid.UUID
	DueAt time.Time
}

type jobKey struct {
	kind string
	id   uuid.UUID
}

// Config contains scheduler configuration.
type Config struct {
	// Workers bounds how many jobs run at once.
	Workers int `json:"workers" yaml:"workers"`
	// JobTimeout bounds a single job run; zero means no limit.
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:    8,
		JobTimeout: 30 * time.Second,
	}
}

// Metrics receives job outcomes.
type Metrics interface {
	JobFinished(kind, outcome string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) JobFinished(string, string, time.Duration) {}
