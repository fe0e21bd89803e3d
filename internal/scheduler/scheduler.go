// Package scheduler는 주기적인 유지보수 작업을 실행합니다.
package scheduler

import (
	"context"
	"time"

	"github.com/assist-by/odyssey/internal/logger"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용할 수 있게 합니다
type TaskFunc func(ctx context.Context) error

// Execute는 f(ctx)를 호출합니다
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler는 정해진 간격마다 작업을 실행합니다
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	stopCh   chan struct{}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(name string, interval time.Duration, task Task) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		task:     task,
		stopCh:   make(chan struct{}),
	}
}

// Start는 ctx가 취소되거나 Stop이 호출될 때까지 작업을 반복합니다.
// 작업 실패는 기록만 하고 다음 주기에 다시 시도합니다.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debugf("%s 스케줄러 시작 (간격 %s)", s.name, s.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if err := s.task.Execute(ctx); err != nil {
				logger.Warnf("%s 작업 실행 실패: %v", s.name, err)
			}
		}
	}
}

// Stop은 스케줄러를 중지합니다. 한 번만 호출해야 합니다.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}
