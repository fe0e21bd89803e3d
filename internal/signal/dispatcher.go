// Package signal은 외부 차트 서비스의 방향 신호를 포지션 동작으로 변환합니다.
package signal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/logger"
	"github.com/assist-by/odyssey/internal/metrics"
	"github.com/assist-by/odyssey/internal/notification"
	"github.com/assist-by/odyssey/internal/position"
	"github.com/shopspring/decimal"
)

// Action은 웹훅으로 수신하는 방향 신호입니다
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// ParseAction은 문자열을 Action으로 변환합니다 (대소문자 무시)
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Buy, Sell:
		return a, nil
	default:
		return "", fmt.Errorf("알 수 없는 액션: %q", s)
	}
}

// Side는 액션에 대응하는 포지션 방향입니다
func (a Action) Side() domain.Side {
	if a == Buy {
		return domain.Long
	}
	return domain.Short
}

// Outcome은 신호 처리 결과입니다
type Outcome string

const (
	OutcomeOpened    Outcome = "opened"    // 포지션 없음 -> 진입
	OutcomeFlipped   Outcome = "flipped"   // 반대 포지션 청산 후 진입
	OutcomeClosed    Outcome = "closed"    // 청산은 했지만 재진입 실패
	OutcomeIgnored   Outcome = "ignored"   // 같은 방향 포지션 보유 중
	OutcomeDuplicate Outcome = "duplicate" // 동시 신호로 이미 진입됨
	OutcomeFailed    Outcome = "failed"
)

// Controller는 디스패처가 사용하는 포지션 컨트롤러 기능입니다
type Controller interface {
	Current() (*domain.Position, error)
	Open(ctx context.Context, side domain.Side) (*domain.Position, error)
	Close(ctx context.Context, exitPrice decimal.NullDecimal, reason domain.ExitReason) (*domain.TradeRecord, error)
}

// Dispatcher는 신호를 직렬화하여 컨트롤러로 전달합니다
type Dispatcher struct {
	ctrl        Controller
	notifier    notification.Notifier
	settleDelay time.Duration
	mu          sync.Mutex
}

// NewDispatcher는 새로운 디스패처를 생성합니다. notifier는 nil일 수 있습니다.
func NewDispatcher(ctrl Controller, notifier notification.Notifier, settleDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		ctrl:        ctrl,
		notifier:    notifier,
		settleDelay: settleDelay,
	}
}

// Handle은 신호 하나를 처리합니다
func (d *Dispatcher) Handle(ctx context.Context, action Action) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	outcome, side, err := d.handle(ctx, action)
	metrics.IncSignal(string(action), string(outcome))

	if err != nil {
		logger.Errorf("신호 처리 실패 [%s -> %s]: %v", action, outcome, err)
	} else {
		logger.Infof("신호 처리 완료: %s -> %s", action, outcome)
	}

	if d.notifier != nil && outcome != OutcomeIgnored && outcome != OutcomeDuplicate {
		if nErr := d.notifier.SendSignal(notification.SignalInfo{
			Action:  string(action),
			Outcome: string(outcome),
			Side:    side,
			Err:     err,
		}); nErr != nil {
			logger.Warnf("신호 알림 전송 실패: %v", nErr)
		}
	}

	return outcome, err
}

func (d *Dispatcher) handle(ctx context.Context, action Action) (Outcome, domain.Side, error) {
	target := action.Side()

	current, err := d.ctrl.Current()
	if err != nil {
		return OutcomeFailed, target, fmt.Errorf("포지션 조회 실패: %w", err)
	}

	if current != nil {
		if current.Side == target {
			return OutcomeIgnored, target, nil
		}

		if _, err := d.ctrl.Close(ctx, decimal.NullDecimal{}, domain.ReasonOpposingSignal); err != nil {
			return OutcomeFailed, target, fmt.Errorf("반대 포지션 청산 실패: %w", err)
		}

		if err := sleepCtx(ctx, d.settleDelay); err != nil {
			return OutcomeClosed, target, fmt.Errorf("재진입 대기 중단: %w", err)
		}

		if _, err := d.ctrl.Open(ctx, target); err != nil {
			if position.IsBenign(err) {
				return OutcomeDuplicate, target, nil
			}
			return OutcomeClosed, target, err
		}
		return OutcomeFlipped, target, nil
	}

	if _, err := d.ctrl.Open(ctx, target); err != nil {
		if position.IsBenign(err) {
			return OutcomeDuplicate, target, nil
		}
		return OutcomeFailed, target, err
	}
	return OutcomeOpened, target, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
