package position

import (
	"context"
	"sync"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/logger"
)

// MonitorConfig는 청산 모니터 주기 설정입니다
type MonitorConfig struct {
	Interval     time.Duration // 기본 점검 주기
	ErrorBackoff time.Duration // 예기치 못한 에러 후 대기
	PriceRetry   time.Duration // 가격 조회 실패 후 재시도 대기
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 30 * time.Second
	}
	if c.PriceRetry <= 0 {
		c.PriceRetry = 10 * time.Second
	}
	return c
}

// Monitor는 열린 포지션의 청산 조건을 주기적으로 확인합니다.
// 동시에 최대 하나의 고루틴만 실행되며 세대 번호로 구분합니다.
// 모든 상태 변경은 컨트롤러를 통해서만 이루어집니다.
type Monitor struct {
	ctrl *Controller
	cfg  MonitorConfig

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	gen     uint64
	running bool
}

func newMonitor(ctrl *Controller, cfg MonitorConfig) *Monitor {
	return &Monitor{
		ctrl: ctrl,
		cfg:  cfg.withDefaults(),
		base: context.Background(),
	}
}

// SetBaseContext는 모니터 고루틴의 수명을 결정하는 컨텍스트를 설정합니다
func (m *Monitor) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base = ctx
}

// Running은 모니터가 실행 중인지 반환합니다
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start는 모니터가 실행 중이 아니면 새로 시작합니다
func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return false
	}

	ctx, cancel := context.WithCancel(m.base)
	m.gen++
	m.cancel = cancel
	m.running = true

	go m.run(ctx, m.gen)
	logger.Debugf("청산 모니터 시작 (세대 %d)", m.gen)
	return true
}

// Stop은 실행 중인 모니터를 취소합니다. 종료를 기다리지 않으므로 모니터 자신이 호출해도 안전합니다.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.cancel()
	m.running = false
	logger.Debugf("청산 모니터 중지 (세대 %d)", m.gen)
}

func (m *Monitor) finish(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen == gen && m.running {
		m.cancel()
		m.running = false
	}
}

func (m *Monitor) run(ctx context.Context, gen uint64) {
	defer m.finish(gen)

	for {
		wait, done := m.cycle(ctx)
		if done {
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle은 한 번의 점검을 수행하고 다음 대기 시간과 종료 여부를 반환합니다
func (m *Monitor) cycle(ctx context.Context) (time.Duration, bool) {
	if ctx.Err() != nil {
		return 0, true
	}

	pos, err := m.ctrl.Current()
	if err != nil {
		logger.Errorf("모니터: 포지션 조회 실패: %v", err)
		return m.cfg.ErrorBackoff, false
	}
	if pos == nil {
		logger.Infof("모니터: 포지션 없음, 종료")
		return 0, true
	}

	// 모니터 중지가 자신이 시작한 청산을 중단시키지 않도록 분리된 컨텍스트를 사용합니다
	opCtx := context.WithoutCancel(ctx)
	ex := m.ctrl.exchange

	// 거래소에서 보호 주문이 체결되었는지 확인
	if pos.HasProtection() {
		order, err := ex.GetOrder(ctx, pos.Symbol, pos.ProtectiveOrderID)
		switch {
		case err != nil:
			logger.Warnf("모니터: 보호 주문 조회 실패 (ID: %d): %v", pos.ProtectiveOrderID, err)
		case order.IsFilled():
			logger.Infof("모니터: 보호 주문 체결 감지 (ID: %d)", order.OrderID)
			if _, err := m.ctrl.SettleStopped(opCtx, pos.ID, order); err != nil {
				logger.Errorf("모니터: 스탑 체결 기록 실패: %v", err)
				return m.cfg.ErrorBackoff, false
			}
			return 0, true
		case order.Status == domain.StatusCanceled || order.Status == domain.StatusExpired || order.Status == domain.StatusRejected:
			logger.Warnf("모니터: 보호 주문이 더 이상 유효하지 않습니다 (ID: %d, 상태: %s)", order.OrderID, order.Status)
			if err := m.ctrl.RestoreProtection(opCtx, pos.ID, pos.ProtectiveOrderID); err != nil {
				logger.Errorf("모니터: 보호 주문 재생성 실패: %v", err)
				return m.cfg.ErrorBackoff, false
			}
		}
	}

	price, err := ex.GetPrice(ctx, pos.Symbol)
	if err != nil || !price.IsPositive() {
		if ctx.Err() != nil {
			return 0, true
		}
		logger.Warnf("모니터: 가격 조회 실패, %s 후 재시도: %v", m.cfg.PriceRetry, err)
		return m.cfg.PriceRetry, false
	}

	switch pos.ExitStrategy {
	case domain.TrailingStopStrategy:
		if err := m.ctrl.AdvanceTrailing(opCtx, pos.ID, price); err != nil {
			logger.Errorf("모니터: 트레일링 스탑 갱신 실패: %v", err)
			return m.cfg.ErrorBackoff, false
		}
	default:
		if targetHit(pos.Side, price, pos.TakeProfitPrice) {
			logger.Infof("모니터: 익절 목표 도달 %s (목표 %s)", price, pos.TakeProfitPrice)
			if _, err := m.ctrl.closeMatching(opCtx, pos.ID, price, domain.ReasonTakeProfit); err != nil {
				logger.Errorf("모니터: 익절 청산 실패: %v", err)
				return m.cfg.ErrorBackoff, false
			}
			return 0, true
		}
	}

	return m.cfg.Interval, false
}
