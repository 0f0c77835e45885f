package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nimburion/docroute/pkg/observability/logger"
)

// PoolConfig applies to every adapter the pool opens.
type PoolConfig struct {
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Pool connects lazily and keeps one Adapter per distinct URL for the life
// of the process. Build it once at startup and hand it to every store.
type Pool struct {
	cfg      PoolConfig
	logger   logger.Logger
	connect  func(Config, logger.Logger) (*Adapter, error)
	mu       sync.Mutex
	adapters map[string]*Adapter
}

// NewPool creates an empty pool.
func NewPool(cfg PoolConfig, log logger.Logger) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{
		cfg:      cfg,
		logger:   log,
		connect:  NewAdapter,
		adapters: map[string]*Adapter{},
	}
}

// Get returns the adapter for url, connecting on first use. A failed
// connection is not cached, so the next call tries again.
func (p *Pool) Get(ctx context.Context, url string) (*Adapter, error) {
	if url == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.adapters[url]; ok {
		return a, nil
	}
	a, err := p.connect(Config{
		URL:              url,
		ConnectTimeout:   p.cfg.ConnectTimeout,
		OperationTimeout: p.cfg.OperationTimeout,
	}, p.logger)
	if err != nil {
		return nil, err
	}
	p.adapters[url] = a
	return a, nil
}

// Len returns the number of open connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.adapters)
}

// CheckURL pings the database at url, connecting first when the pool has no
// adapter for it yet. Unlike HealthCheck it fails while the database has
// never been reachable.
func (p *Pool) CheckURL(ctx context.Context, url string) error {
	a, err := p.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("mongodb unavailable: %w", err)
	}
	return a.HealthCheck(ctx)
}

// HealthCheck pings every open connection. An empty pool is healthy.
func (p *Pool) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	adapters := make([]*Adapter, 0, len(p.adapters))
	for _, a := range p.adapters {
		adapters = append(adapters, a)
	}
	p.mu.Unlock()

	var errs []error
	for _, a := range adapters {
		if err := a.HealthCheck(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close disconnects every adapter and empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	urls := make([]string, 0, len(p.adapters))
	for url := range p.adapters {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	adapters := p.adapters
	p.adapters = map[string]*Adapter{}
	p.mu.Unlock()

	var errs []error
	for _, url := range urls {
		if err := adapters[url].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
