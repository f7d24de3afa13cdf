package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunInvokesJobsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	s := New()
	s.Every(5*time.Millisecond, "counter", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New()
	s.Every(time.Millisecond, "noop", func(ctx context.Context) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestRunWithNoJobsReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		New().Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("empty scheduler should return without jobs")
	}
}
