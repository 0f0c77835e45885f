// Package worker schedules background jobs on a Redis list and runs them.
//
// A Worker is serialized as JSON when scheduled and rebuilt on the consuming
// side from the Factory registered under its name, so every exported field a
// worker needs at run time must survive a JSON round trip.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is the Redis list jobs are pushed to.
const DefaultQueue = "workers"

// Worker is a unit of background work.
type Worker interface {
	// Name identifies the worker type; it selects the Factory on the
	// consuming side.
	Name() string
	// BeforeRun is checked at schedule time. An error keeps the job off
	// the queue.
	BeforeRun(ctx context.Context) error
	Run(ctx context.Context) error
	// ShouldRetry reports whether a failed run is pushed back once.
	ShouldRetry() bool
}

// Base provides no-op BeforeRun and a false ShouldRetry for embedding.
type Base struct{}

// BeforeRun accepts every job.
func (Base) BeforeRun(context.Context) error { return nil }

// ShouldRetry never retries.
func (Base) ShouldRetry() bool { return false }

// Factory returns a zero worker that the job payload is decoded into.
type Factory func() Worker

// ErrUnknownWorker is returned when a job names a worker with no Factory.
var ErrUnknownWorker = errors.New("unknown worker")

// PrecheckError reports a BeforeRun failure.
type PrecheckError struct {
	Worker string
	Err    error
}

func (e *PrecheckError) Error() string {
	return fmt.Sprintf("worker %s failed precheck: %v", e.Worker, e.Err)
}

func (e *PrecheckError) Unwrap() error { return e.Err }

// Job is the queued representation of a worker.
type Job struct {
	ID         string          `json:"id"`
	Worker     string          `json:"worker"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewJob encodes w into a job ready to be pushed.
func NewJob(w Worker) (*Job, error) {
	if w == nil {
		return nil, errors.New("worker is required")
	}
	name := strings.TrimSpace(w.Name())
	if name == "" {
		return nil, errors.New("worker name is required")
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal worker %s: %w", name, err)
	}
	return &Job{
		ID:         uuid.NewString(),
		Worker:     name,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (j *Job) encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job %s: %w", j.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if job.Worker == "" {
		return nil, errors.New("job has no worker name")
	}
	return &job, nil
}
