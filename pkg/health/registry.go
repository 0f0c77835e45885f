// Package health aggregates dependency checks for the management server.
package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Status is the state of one dependency or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Result is the outcome of checking one dependency.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Optional bool          `json:"optional,omitempty"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Report is the readiness answer: one Result per dependency, sorted by name.
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Result  `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// Ready reports whether the process should receive traffic.
func (r Report) Ready() bool { return r.Status != StatusUnhealthy }

// Registry holds the dependencies of one process.
type Registry struct {
	mu   sync.RWMutex
	deps []Dependency
}

func NewRegistry() *Registry { return &Registry{} }

// Add registers dep, replacing a dependency with the same name.
func (r *Registry) Add(dep Dependency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, found := slices.BinarySearchFunc(r.deps, dep.Name, func(d Dependency, name string) int {
		return strings.Compare(d.Name, name)
	})
	if found {
		r.deps[i] = dep
		return
	}
	r.deps = slices.Insert(r.deps, i, dep)
}

// Names returns the registered dependency names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.deps))
	for i, d := range r.deps {
		names[i] = d.Name
	}
	return names
}

// Check runs every dependency check concurrently.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	deps := slices.Clone(r.deps)
	r.mu.RUnlock()

	results := make([]Result, len(deps))
	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.check(ctx)
		}()
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, Checks: results, CheckedAt: time.Now()}
	for _, res := range results {
		if res.Status == StatusHealthy {
			continue
		}
		if !res.Optional {
			report.Status = StatusUnhealthy
			break
		}
		report.Status = StatusDegraded
	}
	return report
}
