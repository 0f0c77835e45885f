package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/docroute/pkg/testutil"
)

func newIntegrationQueue(t *testing.T) *RedisQueue {
	t.Helper()
	url := testutil.StartRedis(t)

	q, err := NewRedisQueue(RedisQueueConfig{URL: url, OperationTimeout: 5 * time.Second}, &testutil.MockLogger{})
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestRedisQueue_Integration(t *testing.T) {
	q := newIntegrationQueue(t)
	ctx := context.Background()

	t.Run("Ping and HealthCheck", func(t *testing.T) {
		if err := q.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
		if err := q.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck failed: %v", err)
		}
	})

	t.Run("Push and Pop in FIFO order", func(t *testing.T) {
		list := "integration:fifo"
		for _, v := range []string{"first", "second", "third"} {
			if err := q.Push(ctx, list, []byte(v)); err != nil {
				t.Fatalf("Push(%q) failed: %v", v, err)
			}
		}
		for _, want := range []string{"first", "second", "third"} {
			got, err := q.Pop(ctx, list, time.Second)
			if err != nil {
				t.Fatalf("Pop failed: %v", err)
			}
			if string(got) != want {
				t.Errorf("Pop() = %q, want %q", got, want)
			}
		}
	})

	t.Run("Pop keeps binary payloads", func(t *testing.T) {
		list := "integration:binary"
		payload := []byte{0x00, 0xff, '\n', 0x7f}
		if err := q.Push(ctx, list, payload); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		got, err := q.Pop(ctx, list, time.Second)
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if string(got) != string(payload) {
			t.Errorf("Pop() = %v, want %v", got, payload)
		}
	})

	t.Run("Pop on empty list times out with nil", func(t *testing.T) {
		start := time.Now()
		got, err := q.Pop(ctx, "integration:empty", time.Second)
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if got != nil {
			t.Errorf("Pop() = %q, want nil", got)
		}
		if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
			t.Errorf("Pop returned after %v, expected to wait for the timeout", elapsed)
		}
	})

	t.Run("Pop wakes on a concurrent Push", func(t *testing.T) {
		list := "integration:wake"
		done := make(chan []byte, 1)
		go func() {
			got, _ := q.Pop(ctx, list, 5*time.Second)
			done <- got
		}()
		time.Sleep(200 * time.Millisecond)
		if err := q.Push(ctx, list, []byte("late")); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		select {
		case got := <-done:
			if string(got) != "late" {
				t.Errorf("Pop() = %q, want %q", got, "late")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Pop did not return after Push")
		}
	})
}

func TestRedisQueue_IntegrationSchedulerToRunner(t *testing.T) {
	q := newIntegrationQueue(t)
	ctx := context.Background()

	runs := &runLog{}
	s, err := NewScheduler(q, "integration:jobs", nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	r, err := NewRunner(q, RunnerConfig{Queue: "integration:jobs", PollTimeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if err := r.Register("email", func() Worker { return &emailWorker{runs: runs} }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, to := range []string{"a@example.com", "b@example.com"} {
		if err := s.Schedule(ctx, &emailWorker{To: to}); err != nil {
			t.Fatalf("Schedule(%s) error = %v", to, err)
		}
	}
	for i := 0; i < 2; i++ {
		took, err := r.ProcessOne(ctx)
		if err != nil || !took {
			t.Fatalf("ProcessOne() = %v, %v", took, err)
		}
	}
	if took, err := r.ProcessOne(ctx); took || err != nil {
		t.Fatalf("ProcessOne() on drained queue = %v, %v", took, err)
	}
	if got := strings.Join(runs.seen, ","); got != "a@example.com,b@example.com" {
		t.Fatalf("runs = %s", got)
	}
}

func TestRedisQueue_IntegrationClose(t *testing.T) {
	q := newIntegrationQueue(t)
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := q.Push(ctx, "integration:closed", []byte("x")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Push after Close = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Pop(ctx, "integration:closed", time.Second); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Pop after Close = %v, want ErrQueueClosed", err)
	}
	if err := q.Ping(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Ping after Close = %v, want ErrQueueClosed", err)
	}
	if err := q.HealthCheck(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("HealthCheck after Close = %v, want ErrQueueClosed", err)
	}
}
