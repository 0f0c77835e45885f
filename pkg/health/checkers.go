package health

import (
	"context"
	"time"
)

const defaultCheckTimeout = 5 * time.Second

// Checkable is implemented by components that can report their own health,
// such as the MongoDB pool and the Redis worker queue.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Dependency is one backing service checked on readiness.
//
// A failing Optional dependency degrades the report instead of failing it:
// the process can still serve requests that do not need it.
type Dependency struct {
	Name     string
	Target   Checkable
	Timeout  time.Duration
	Optional bool
}

func (d Dependency) check(ctx context.Context) Result {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := d.Target.HealthCheck(ctx)
	res := Result{
		Name:     d.Name,
		Status:   StatusHealthy,
		Optional: d.Optional,
		Latency:  time.Since(start),
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}
