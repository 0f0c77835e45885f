package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nimburion/docroute/pkg/observability/logger"
	"github.com/nimburion/docroute/pkg/observability/metrics"
	"github.com/nimburion/docroute/pkg/observability/tracing"
)

const (
	defaultPollTimeout = 5 * time.Second
	errorBackoff       = time.Second
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Queue       string
	PollTimeout time.Duration
	Concurrency int
}

// Runner pops jobs from the queue and runs the matching workers.
type Runner struct {
	queue Queue
	cfg   RunnerConfig
	log   logger.Logger

	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRunner validates cfg and returns an idle Runner.
func NewRunner(q Queue, cfg RunnerConfig, log logger.Logger) (*Runner, error) {
	if q == nil {
		return nil, errors.New("queue is required")
	}
	if strings.TrimSpace(cfg.Queue) == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		queue:     q,
		cfg:       cfg,
		log:       log.With("queue", cfg.Queue),
		factories: make(map[string]Factory),
	}, nil
}

// Register binds a worker name to the factory used to rebuild it.
func (r *Runner) Register(name string, f Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("worker name is required")
	}
	if f == nil {
		return fmt.Errorf("worker %s: factory is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("worker %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Run processes jobs with cfg.Concurrency goroutines until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("worker runner started", "concurrency", r.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx)
		}()
	}
	wg.Wait()
	r.log.Info("worker runner stopped")
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := r.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("worker queue pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessOne waits for at most one job and runs it. It reports whether a
// job was taken; only queue failures are returned, job failures are logged.
func (r *Runner) ProcessOne(ctx context.Context) (bool, error) {
	data, err := r.queue.Pop(ctx, r.cfg.Queue, r.cfg.PollTimeout)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}

	job, err := decodeJob(data)
	if err != nil {
		r.log.Error("dropping malformed job", "error", err)
		metrics.RecordWorkerJob("unknown", "run", err)
		return true, nil
	}
	r.execute(ctx, job)
	return true, nil
}

func (r *Runner) execute(ctx context.Context, job *Job) {
	ctx, span := tracing.StartWorkerSpan(ctx, "run", job.Worker)
	log := r.log.With("worker", job.Worker, "job_id", job.ID, "attempt", job.Attempt)

	w, err := r.build(job)
	if err == nil {
		err = r.runSafely(ctx, w)
	}
	tracing.Finish(span, err)
	metrics.RecordWorkerJob(job.Worker, "run", err)

	if err == nil {
		log.Debug("worker finished")
		return
	}
	log.Error("worker failed", "error", err)

	if w == nil || job.Attempt > 0 || !w.ShouldRetry() {
		return
	}
	retry := *job
	retry.Attempt++
	retryErr := r.requeue(ctx, &retry)
	metrics.RecordWorkerJob(job.Worker, "retry", retryErr)
	if retryErr != nil {
		log.Error("worker retry enqueue failed", "error", retryErr)
		return
	}
	log.Info("worker re-enqueued for retry")
}

func (r *Runner) build(job *Job) (Worker, error) {
	r.mu.RLock()
	factory, ok := r.factories[job.Worker]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorker, job.Worker)
	}
	w := factory()
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, w); err != nil {
			return nil, fmt.Errorf("decode worker %s: %w", job.Worker, err)
		}
	}
	return w, nil
}

func (r *Runner) runSafely(ctx context.Context, w Worker) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker panic: %v", rec)
		}
	}()
	return w.Run(ctx)
}

func (r *Runner) requeue(ctx context.Context, job *Job) error {
	data, err := job.encode()
	if err != nil {
		return err
	}
	// the job context may already be cancelled at shutdown
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultOperationTimeout)
	defer cancel()
	return r.queue.Push(pushCtx, r.cfg.Queue, data)
}
