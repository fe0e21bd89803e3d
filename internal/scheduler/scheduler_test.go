package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsUntilCanceled(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler("test", 5*time.Millisecond, TaskFunc(func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("계속 실행되어야 함")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("스케줄러가 종료되지 않았습니다")
	}
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler("test", time.Hour, TaskFunc(func(ctx context.Context) error { return nil }))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("스케줄러가 종료되지 않았습니다")
	}
}
