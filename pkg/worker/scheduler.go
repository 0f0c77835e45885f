package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
)

// Scheduler pushes workers onto the queue.
type Scheduler struct {
	queue Queue
	list  string
	log   logger.Logger
}

// NewScheduler returns a Scheduler writing to list (DefaultQueue when empty).
func NewScheduler(q Queue, list string, log logger.Logger) (*Scheduler, error) {
	if q == nil {
		return nil, errors.New("queue is required")
	}
	if strings.TrimSpace(list) == "" {
		list = DefaultQueue
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{queue: q, list: list, log: log.With("queue", list)}, nil
}

// Schedule runs the worker's precheck and enqueues it. A failed precheck
// returns a *PrecheckError and nothing is pushed.
func (s *Scheduler) Schedule(ctx context.Context, w Worker) (err error) {
	if w == nil {
		return errors.New("worker is required")
	}
	name := w.Name()
	ctx, span := tracing.StartWorkerSpan(ctx, "schedule", name)
	defer func() {
		tracing.Finish(span, err)
		metrics.RecordWorkerJob(name, "schedule", err)
	}()

	if err := w.BeforeRun(ctx); err != nil {
		s.log.WithContext(ctx).Error("worker precheck failed", "worker", name, "error", err)
		return &PrecheckError{Worker: name, Err: err}
	}

	job, err := NewJob(w)
	if err != nil {
		return err
	}
	if err := s.push(ctx, job); err != nil {
		return err
	}
	s.log.WithContext(ctx).Debug("worker scheduled", "worker", name, "job_id", job.ID)
	return nil
}

func (s *Scheduler) push(ctx context.Context, job *Job) error {
	data, err := job.encode()
	if err != nil {
		return err
	}
	return s.queue.Push(ctx, s.list, data)
}
