package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/docroute/pkg/observability/logger"
)

const defaultOperationTimeout = 5 * time.Second

// ErrQueueClosed is returned by operations on a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is a FIFO list of encoded jobs.
type Queue interface {
	// Push appends data at the tail of the named list.
	Push(ctx context.Context, list string, data []byte) error
	// Pop removes the head of the named list, waiting up to timeout.
	// It returns nil, nil when the wait expires.
	Pop(ctx context.Context, list string, timeout time.Duration) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisQueueConfig configures the Redis-backed queue.
type RedisQueueConfig struct {
	URL              string
	OperationTimeout time.Duration
}

// RedisQueue implements Queue with RPUSH and BLPOP.
type RedisQueue struct {
	client  *redis.Client
	log     logger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue parses the URL, connects and pings the server.
func NewRedisQueue(cfg RedisQueueConfig, log logger.Logger) (*RedisQueue, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis url is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url failed: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}

	log.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &RedisQueue{client: client, log: log, timeout: cfg.OperationTimeout}, nil
}

// Push appends data to list.
func (q *RedisQueue) Push(ctx context.Context, list string, data []byte) error {
	if err := q.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	if err := q.client.RPush(opCtx, list, data).Err(); err != nil {
		return fmt.Errorf("rpush %s failed: %w", list, err)
	}
	return nil
}

// Pop blocks on BLPOP for at most timeout.
func (q *RedisQueue) Pop(ctx context.Context, list string, timeout time.Duration) ([]byte, error) {
	if err := q.ensureOpen(); err != nil {
		return nil, err
	}
	values, err := q.client.BLPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blpop %s failed: %w", list, err)
	}
	// BLPOP answers [list, value].
	if len(values) != 2 {
		return nil, fmt.Errorf("blpop %s: unexpected reply of %d elements", list, len(values))
	}
	return []byte(values[1]), nil
}

// Ping checks the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.client.Ping(opCtx).Err()
}

// Close releases the client. Further calls return ErrQueueClosed.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.client.Close()
}

func (q *RedisQueue) ensureOpen() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// HealthCheck pings Redis; it lets the queue serve as a readiness check.
func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	return q.Ping(ctx)
}
