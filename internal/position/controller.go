package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/exchange"
	"github.com/assist-by/odyssey/internal/logger"
	"github.com/assist-by/odyssey/internal/metrics"
	"github.com/assist-by/odyssey/internal/notification"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store는 단일 포지션 스냅샷 저장소입니다
type Store interface {
	Load() (*domain.Position, error)
	Save(pos *domain.Position) error
	Clear() error
}

// Recorder는 청산된 거래를 기록합니다
type Recorder interface {
	Append(ctx context.Context, record domain.TradeRecord) error
}

// PrecisionSource는 심볼 정밀도를 제공합니다
type PrecisionSource interface {
	Resolve(ctx context.Context, symbol string) (domain.PrecisionProfile, error)
}

// Config는 컨트롤러 설정입니다. 생성 후 변경되지 않습니다.
type Config struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	PositionSizePercent decimal.Decimal
	StopLossPercent     decimal.Decimal
	MinBalance          decimal.Decimal

	ExitStrategy              domain.ExitStrategy
	TakeProfitPercent         decimal.Decimal
	TrailingActivationPercent decimal.Decimal
	TrailingDistancePercent   decimal.Decimal

	ReentryEnabled      bool
	MaxReentries        int
	ReentryCooldown     time.Duration
	ReentryPollAttempts int
	ReentryPollInterval time.Duration

	// 체결가가 응답에 없을 때 가격을 다시 읽기 전 대기 시간
	EntrySettleDelay time.Duration

	Monitor MonitorConfig
}

// Controller는 단일 마진 포지션의 생명주기를 관리합니다.
// Position과 TradeRecord의 유일한 작성자이며 모든 변경은 mu로 직렬화됩니다.
type Controller struct {
	cfg       Config
	exchange  exchange.Exchange
	precision PrecisionSource
	store     Store
	ledger    Recorder
	notifier  notification.Notifier
	monitor   *Monitor

	mu  sync.Mutex
	now func() time.Time
}

// Option은 컨트롤러 생성 옵션을 정의합니다
type Option func(*Controller)

// WithNotifier는 알림 전송기를 설정합니다
func WithNotifier(n notification.Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithClock은 시간 함수를 설정합니다
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController는 새로운 컨트롤러를 생성합니다
func NewController(cfg Config, ex exchange.Exchange, precision PrecisionSource, store Store, ledger Recorder, opts ...Option) *Controller {
	if cfg.ReentryPollAttempts <= 0 {
		cfg.ReentryPollAttempts = 5
	}

	c := &Controller{
		cfg:       cfg,
		exchange:  ex,
		precision: precision,
		store:     store,
		ledger:    ledger,
		now:       time.Now,
	}
	c.monitor = newMonitor(c, cfg.Monitor)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Current는 저장된 포지션을 반환합니다. 거래소를 호출하지 않습니다.
func (c *Controller) Current() (*domain.Position, error) {
	return c.store.Load()
}

// MonitorRunning은 청산 모니터가 실행 중인지 반환합니다
func (c *Controller) MonitorRunning() bool {
	return c.monitor.Running()
}

// Resume은 모니터의 기본 컨텍스트를 설정하고, 저장된 포지션이 있으면 모니터링을 재개합니다
func (c *Controller) Resume(ctx context.Context) (*domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.monitor.SetBaseContext(ctx)

	pos, err := c.store.Load()
	if err != nil {
		return nil, NewPositionError(c.cfg.Symbol, "load_state", err)
	}
	if pos == nil {
		metrics.SetPositionOpen(false)
		return nil, nil
	}

	if _, err := c.precision.Resolve(ctx, pos.Symbol); err != nil {
		logger.Warnf("재개 중 정밀도 조회 실패 (청산 시 재시도): %v", err)
	}

	metrics.SetPositionOpen(true)
	c.monitor.Start()
	logger.Infof("저장된 포지션 모니터링 재개: %s %s %s @ %s",
		pos.Symbol, pos.Side, pos.Quantity, pos.EntryPrice)
	return pos.Clone(), nil
}

// Open은 새 포지션에 진입합니다. 포지션이 이미 있으면 부수효과 없이 ErrPositionExists를 반환합니다.
func (c *Controller) Open(ctx context.Context, side domain.Side) (*domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.openLocked(ctx, side, 0)
}

func (c *Controller) openLocked(ctx context.Context, side domain.Side, reentryCount int) (*domain.Position, error) {
	symbol := c.cfg.Symbol

	// 1. 기존 포지션 확인
	existing, err := c.store.Load()
	if err != nil {
		return nil, NewPositionError(symbol, "load_state", err)
	}
	if existing != nil {
		return nil, NewPositionError(symbol, "check_position", ErrPositionExists)
	}

	// 2. 정밀도 조회
	profile, err := c.precision.Resolve(ctx, symbol)
	if err != nil {
		return nil, NewPositionError(symbol, "resolve_precision", err)
	}

	// 3. 잔고 확인
	balance, err := c.exchange.GetBalance(ctx, c.cfg.QuoteAsset)
	if err != nil {
		return nil, NewPositionError(symbol, "get_balance", err)
	}
	if balance.LessThanOrEqual(c.cfg.MinBalance) {
		return nil, NewPositionError(symbol, "check_balance",
			fmt.Errorf("%w: %s %s (최소 %s)", ErrInsufficientFunds, balance, c.cfg.QuoteAsset, c.cfg.MinBalance))
	}

	// 4. 현재 가격 확인
	price, err := c.exchange.GetPrice(ctx, symbol)
	if err != nil {
		return nil, NewPositionError(symbol, "get_price", fmt.Errorf("%w: %w", ErrPriceUnavailable, err))
	}
	if !price.IsPositive() {
		return nil, NewPositionError(symbol, "get_price", ErrPriceUnavailable)
	}

	// 5. 포지션 크기 계산
	size, err := CalculatePositionSize(balance, price, c.cfg.PositionSizePercent, profile)
	if err != nil {
		return nil, NewPositionError(symbol, "calculate_position", err)
	}
	quantity := profile.FormatQuantity(size.Quantity)
	logger.Infof("포지션 계산: %s %s 투입, 수량 %s (가격 %s)", size.Investment.StringFixed(2), c.cfg.QuoteAsset, quantity, price)

	// 6. 숏은 기초 자산을 먼저 차입
	if side == domain.Short {
		tranID, err := c.exchange.Borrow(ctx, c.cfg.BaseAsset, quantity)
		if err != nil {
			return nil, NewPositionError(symbol, "borrow", fmt.Errorf("%w: %w", ErrBorrowFailed, err))
		}
		logger.Infof("차입 완료: %s %s (tranId: %d)", quantity, c.cfg.BaseAsset, tranID)
	}

	// 7. 진입 주문 실행
	entryOrder := domain.OrderRequest{
		Symbol:        symbol,
		Side:          side.EntryOrderSide(),
		Type:          domain.Market,
		Quantity:      quantity,
		SideEffect:    domain.NoSideEffect,
		ClientOrderID: newClientOrderID("entry"),
	}
	resp, err := c.exchange.MarketOrder(ctx, entryOrder)
	if err != nil {
		if side == domain.Short {
			logger.Warnf("진입 실패로 차입한 %s %s가 상환되지 않은 채 남아있습니다", quantity, c.cfg.BaseAsset)
		}
		return nil, NewPositionError(symbol, "place_entry_order", fmt.Errorf("%w: %w", ErrEntryRejected, err))
	}
	metrics.IncOrder(string(domain.Market), string(entryOrder.Side))

	// 8. 진입가 결정
	entryPrice := c.resolveEntryPrice(ctx, resp, price)

	pos := &domain.Position{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Side:         side,
		Quantity:     size.Quantity,
		EntryPrice:   entryPrice,
		ExitStrategy: c.cfg.ExitStrategy,
		EntryTime:    c.now(),
		ReentryCount: reentryCount,
	}

	// 9. 보호 손절 주문. 실패해도 롤백하지 않습니다.
	pos.StopLossPrice = profile.QuantizePrice(stopLossPrice(side, entryPrice, c.cfg.StopLossPercent))
	orderID, err := c.placeStop(ctx, pos, profile, pos.StopLossPrice)
	if err != nil {
		c.critical("protective_stop", fmt.Errorf("%s %s 포지션이 보호 주문 없이 열려있습니다: %w", symbol, side, err))
	} else {
		pos.ProtectiveOrderID = orderID
	}

	// 10. 청산 목표 설정
	switch pos.ExitStrategy {
	case domain.TrailingStopStrategy:
		pos.TrailingActivationPrice = favourableTarget(side, entryPrice, c.cfg.TrailingActivationPercent)
		pos.TrailingExtremumPrice = entryPrice
	default:
		pos.ExitStrategy = domain.TakeProfitStrategy
		pos.TakeProfitPrice = favourableTarget(side, entryPrice, c.cfg.TakeProfitPercent)
	}

	if err := c.store.Save(pos); err != nil {
		c.critical("save_state", fmt.Errorf("진입한 포지션 저장 실패: %w", err))
		return nil, NewPositionError(symbol, "save_state", err)
	}
	metrics.SetPositionOpen(true)

	logger.Infof("포지션 진입: %s %s %s @ %s (손절 %s, 전략 %s)",
		symbol, side, quantity, entryPrice, pos.StopLossPrice, pos.ExitStrategy)

	if c.notifier != nil {
		if err := c.notifier.SendTradeInfo(notification.TradeInfo{
			Symbol:       symbol,
			Side:         side,
			Quantity:     pos.Quantity,
			EntryPrice:   entryPrice,
			Investment:   size.Investment,
			StopLoss:     pos.StopLossPrice,
			Protected:    pos.HasProtection(),
			ExitStrategy: pos.ExitStrategy,
			TakeProfit:   pos.TakeProfitPrice,
			Activation:   pos.TrailingActivationPrice,
			ReentryCount: reentryCount,
		}); err != nil {
			logger.Warnf("거래 정보 알림 전송 실패: %v", err)
		}
	}

	c.monitor.Start()
	return pos.Clone(), nil
}

// resolveEntryPrice는 평균 체결가, 대기 후 재조회 가격, 계산 가격 순으로 진입가를 결정합니다
func (c *Controller) resolveEntryPrice(ctx context.Context, resp *domain.OrderResponse, sizingPrice decimal.Decimal) decimal.Decimal {
	if avg, ok := resp.AvgFillPrice(); ok {
		return avg
	}

	if err := sleepCtx(ctx, c.cfg.EntrySettleDelay); err == nil {
		if price, err := c.exchange.GetPrice(ctx, c.cfg.Symbol); err == nil && price.IsPositive() {
			return price
		}
	}

	logger.Warnf("진입가를 확인할 수 없어 계산 가격 %s를 사용합니다", sizingPrice)
	return sizingPrice
}

// placeStop은 포지션의 청산 방향으로 STOP_LOSS 주문을 생성합니다
func (c *Controller) placeStop(ctx context.Context, pos *domain.Position, profile domain.PrecisionProfile, stop decimal.Decimal) (int64, error) {
	sideEffect := domain.NoSideEffect
	if pos.Side == domain.Short {
		sideEffect = domain.AutoRepay
	}

	req := domain.OrderRequest{
		Symbol:        pos.Symbol,
		Side:          pos.Side.ExitOrderSide(),
		Type:          domain.StopLoss,
		Quantity:      profile.FormatQuantity(pos.Quantity),
		StopPrice:     profile.FormatPrice(stop),
		SideEffect:    sideEffect,
		ClientOrderID: newClientOrderID("stop"),
	}
	resp, err := c.exchange.StopOrder(ctx, req)
	if err != nil {
		return 0, err
	}
	metrics.IncOrder(string(domain.StopLoss), string(req.Side))
	return resp.OrderID, nil
}

// Close는 현재 포지션을 시장가로 청산합니다. 포지션이 없으면 (nil, nil)을 반환합니다.
// exitPrice가 유효하면 청산가로 사용합니다.
func (c *Controller) Close(ctx context.Context, exitPrice decimal.NullDecimal, reason domain.ExitReason) (*domain.TradeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.store.Load()
	if err != nil {
		return nil, NewPositionError(c.cfg.Symbol, "load_state", err)
	}
	if pos == nil {
		logger.Debugf("청산할 포지션 없음 (사유: %s)", reason)
		return nil, nil
	}

	return c.closeLocked(ctx, pos, exitPrice, reason)
}

// closeMatching은 positionID의 포지션이 여전히 열려있을 때만 청산합니다
func (c *Controller) closeMatching(ctx context.Context, positionID string, price decimal.Decimal, reason domain.ExitReason) (*domain.TradeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.store.Load()
	if err != nil {
		return nil, NewPositionError(c.cfg.Symbol, "load_state", err)
	}
	if pos == nil || pos.ID != positionID {
		return nil, nil
	}

	return c.closeLocked(ctx, pos, decimal.NewNullDecimal(price), reason)
}

func (c *Controller) closeLocked(ctx context.Context, pos *domain.Position, exitPrice decimal.NullDecimal, reason domain.ExitReason) (*domain.TradeRecord, error) {
	symbol := pos.Symbol

	profile, err := c.precision.Resolve(ctx, symbol)
	if err != nil {
		return nil, NewPositionError(symbol, "resolve_precision", err)
	}

	// 1. 모니터 중지
	c.monitor.Stop()

	// 2. 보호 주문 취소
	if pos.HasProtection() {
		if err := c.exchange.CancelOrder(ctx, symbol, pos.ProtectiveOrderID); err != nil {
			logger.Warnf("보호 주문 취소 실패 (ID: %d): %v", pos.ProtectiveOrderID, err)
		}
	}

	// 3. 청산 수량 결정
	closeQty := pos.Quantity
	sideEffect := domain.NoSideEffect
	if pos.Side == domain.Short {
		sideEffect = domain.AutoRepay
		debt, err := c.exchange.GetDebt(ctx, c.cfg.BaseAsset)
		if err != nil {
			logger.Warnf("%s 부채 조회 실패, 포지션 수량으로 상환합니다: %v", c.cfg.BaseAsset, err)
		} else if debt.GreaterThan(closeQty) {
			closeQty = debt
		}
		closeQty = profile.CeilQuantity(closeQty)
	}

	// 4. 청산 주문
	req := domain.OrderRequest{
		Symbol:        symbol,
		Side:          pos.Side.ExitOrderSide(),
		Type:          domain.Market,
		Quantity:      profile.FormatQuantity(closeQty),
		SideEffect:    sideEffect,
		ClientOrderID: newClientOrderID("close"),
	}
	resp, err := c.exchange.MarketOrder(ctx, req)
	if err != nil {
		c.critical("close", fmt.Errorf("%s %s 청산 주문 실패, 상태를 초기화합니다. 거래소 포지션을 직접 확인하세요: %w",
			symbol, pos.Side, err))
		if clearErr := c.store.Clear(); clearErr != nil {
			logger.Errorf("상태 초기화 실패: %v", clearErr)
		}
		metrics.SetPositionOpen(false)
		return nil, NewPositionError(symbol, "place_close_order", fmt.Errorf("%w: %w", ErrCriticalReconciliation, err))
	}
	metrics.IncOrder(string(domain.Market), string(req.Side))

	// 5. 청산가 결정
	price := c.resolveExitPrice(ctx, pos, exitPrice, resp)

	// 6. 거래 기록
	record := c.finalize(ctx, pos, price, reason)

	// 7. 익절 후 반대 방향 재진입
	if reason == domain.ReasonTakeProfit && c.cfg.ReentryEnabled && pos.ReentryCount < c.cfg.MaxReentries {
		c.reenterLocked(ctx, pos)
	}

	return record, nil
}

// resolveExitPrice는 호출자 지정 가격, 평균 체결가, 재조회 가격, 진입가 순으로 청산가를 결정합니다
func (c *Controller) resolveExitPrice(ctx context.Context, pos *domain.Position, exitPrice decimal.NullDecimal, resp *domain.OrderResponse) decimal.Decimal {
	if exitPrice.Valid && exitPrice.Decimal.IsPositive() {
		return exitPrice.Decimal
	}
	if avg, ok := resp.AvgFillPrice(); ok {
		return avg
	}
	if price, err := c.exchange.GetPrice(ctx, pos.Symbol); err == nil && price.IsPositive() {
		return price
	}

	logger.Warnf("청산가를 확인할 수 없어 진입가 %s를 사용합니다", pos.EntryPrice)
	return pos.EntryPrice
}

// finalize는 거래 기록을 남기고 포지션 없음 상태를 저장합니다
func (c *Controller) finalize(ctx context.Context, pos *domain.Position, exitPrice decimal.Decimal, reason domain.ExitReason) *domain.TradeRecord {
	record := domain.TradeRecord{
		ID:         uuid.NewString(),
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        domain.RealizedPnL(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity),
		EntryTime:  pos.EntryTime,
		ExitTime:   c.now(),
		ExitReason: reason,
	}

	if err := c.ledger.Append(ctx, record); err != nil {
		logger.Errorf("거래 기록 저장 실패: %v", err)
	}
	if err := c.store.Clear(); err != nil {
		logger.Errorf("상태 초기화 실패: %v", err)
	}

	pnl, _ := record.PnL.Float64()
	metrics.RecordExit(string(reason), string(pos.Side), pnl)
	metrics.SetPositionOpen(false)

	logger.Infof("포지션 청산: %s %s %s @ %s -> %s, 손익 %s (사유: %s)",
		record.Symbol, record.Side, record.Quantity, record.EntryPrice, record.ExitPrice, record.PnL, reason)

	if c.notifier != nil {
		if err := c.notifier.SendTradeResult(record); err != nil {
			logger.Warnf("청산 알림 전송 실패: %v", err)
		}
	}

	return &record
}

// reenterLocked는 익절 후 잔고가 안정되면 반대 방향으로 재진입합니다
func (c *Controller) reenterLocked(ctx context.Context, prev *domain.Position) {
	next := prev.Side.Opposite()
	logger.Infof("재진입 대기: %s (%d/%d), 쿨다운 %s", next, prev.ReentryCount+1, c.cfg.MaxReentries, c.cfg.ReentryCooldown)

	if err := sleepCtx(ctx, c.cfg.ReentryCooldown); err != nil {
		logger.Warnf("재진입 취소: %v", err)
		return
	}

	baseline, err := c.exchange.GetBalance(ctx, c.cfg.QuoteAsset)
	if err != nil {
		logger.Warnf("재진입 기준 잔고 조회 실패, 재진입을 포기합니다: %v", err)
		return
	}

	for attempt := 1; attempt <= c.cfg.ReentryPollAttempts; attempt++ {
		if err := sleepCtx(ctx, c.cfg.ReentryPollInterval); err != nil {
			logger.Warnf("재진입 취소: %v", err)
			return
		}

		balance, err := c.exchange.GetBalance(ctx, c.cfg.QuoteAsset)
		if err != nil {
			logger.Debugf("재진입 잔고 조회 실패 (%d/%d): %v", attempt, c.cfg.ReentryPollAttempts, err)
			continue
		}
		if balance.GreaterThanOrEqual(baseline) && balance.GreaterThan(c.cfg.MinBalance) {
			if _, err := c.openLocked(ctx, next, prev.ReentryCount+1); err != nil {
				logger.Errorf("재진입 실패: %v", err)
				c.notifyError(fmt.Errorf("재진입 실패: %w", err))
			}
			return
		}
		logger.Debugf("잔고 안정 대기 중 (%d/%d): %s (기준 %s)", attempt, c.cfg.ReentryPollAttempts, balance, baseline)
	}

	logger.Warnf("잔고가 안정되지 않아 재진입을 포기합니다")
	c.notifyInfo(fmt.Sprintf("⚠️ 잔고가 안정되지 않아 %s 재진입을 포기했습니다", next))
}

// AdvanceTrailing은 트레일링 스탑 상태를 갱신합니다.
// 포지션이 바뀌었거나 트레일링 전략이 아니면 아무것도 하지 않습니다.
func (c *Controller) AdvanceTrailing(ctx context.Context, positionID string, price decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.store.Load()
	if err != nil {
		return NewPositionError(c.cfg.Symbol, "load_state", err)
	}
	if pos == nil || pos.ID != positionID || pos.ExitStrategy != domain.TrailingStopStrategy {
		return nil
	}

	if !pos.TrailingActivated {
		if !targetHit(pos.Side, price, pos.TrailingActivationPrice) {
			return nil
		}
		pos.TrailingActivated = true
		pos.TrailingExtremumPrice = price
		if err := c.store.Save(pos); err != nil {
			return NewPositionError(pos.Symbol, "save_state", err)
		}
		logger.Infof("트레일링 스탑 활성화: %s @ %s (활성화 가격 %s)", pos.Symbol, price, pos.TrailingActivationPrice)
		c.notifyInfo(fmt.Sprintf("📈 %s 트레일링 스탑 활성화 @ %s", pos.Symbol, price))
		// 스탑은 활성화 이후 새 극값에서만 이동
		return nil
	}
	if !shouldUpdateExtremum(pos.Side, price, pos.TrailingExtremumPrice) {
		return nil
	}
	pos.TrailingExtremumPrice = price

	profile, err := c.precision.Resolve(ctx, pos.Symbol)
	if err != nil {
		return NewPositionError(pos.Symbol, "resolve_precision", err)
	}

	candidate := profile.QuantizePrice(trailingStopFor(pos.Side, pos.TrailingExtremumPrice, c.cfg.TrailingDistancePercent))
	if !shouldUpdateStop(pos.Side, candidate, pos.StopLossPrice) {
		// 스탑은 그대로 두고 극값만 기록
		if err := c.store.Save(pos); err != nil {
			return NewPositionError(pos.Symbol, "save_state", err)
		}
		return nil
	}

	if pos.HasProtection() {
		if err := c.exchange.CancelOrder(ctx, pos.Symbol, pos.ProtectiveOrderID); err != nil {
			logger.Warnf("기존 스탑 취소 실패, 이번 주기 갱신을 건너뜁니다 (ID: %d): %v", pos.ProtectiveOrderID, err)
			return nil
		}
	}

	previous := pos.StopLossPrice
	pos.StopLossPrice = candidate
	pos.ProtectiveOrderID = 0

	orderID, err := c.placeStop(ctx, pos, profile, candidate)
	if err != nil {
		c.critical("trailing_stop", fmt.Errorf("%s 트레일링 스탑 재설정 실패, 보호 주문 없음: %w", pos.Symbol, err))
	} else {
		pos.ProtectiveOrderID = orderID
		logger.Infof("트레일링 스탑 이동: %s %s -> %s (극값 %s)", pos.Symbol, previous, candidate, pos.TrailingExtremumPrice)
	}

	if err := c.store.Save(pos); err != nil {
		return NewPositionError(pos.Symbol, "save_state", err)
	}
	return nil
}

// RestoreProtection은 취소되거나 만료된 보호 주문을 현재 손절가로 다시 생성합니다.
// deadOrderID가 현재 보호 주문이 아니면 아무것도 하지 않습니다.
func (c *Controller) RestoreProtection(ctx context.Context, positionID string, deadOrderID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.store.Load()
	if err != nil {
		return NewPositionError(c.cfg.Symbol, "load_state", err)
	}
	if pos == nil || pos.ID != positionID || pos.ProtectiveOrderID != deadOrderID {
		return nil
	}

	profile, err := c.precision.Resolve(ctx, pos.Symbol)
	if err != nil {
		return NewPositionError(pos.Symbol, "resolve_precision", err)
	}

	pos.ProtectiveOrderID = 0
	orderID, err := c.placeStop(ctx, pos, profile, pos.StopLossPrice)
	if err != nil {
		c.critical("protective_stop", fmt.Errorf("%s 보호 주문(ID: %d) 무효화 후 재생성 실패, 보호 주문 없음: %w",
			pos.Symbol, deadOrderID, err))
	} else {
		pos.ProtectiveOrderID = orderID
		logger.Warnf("무효화된 보호 주문 재생성: %d -> %d @ %s", deadOrderID, orderID, pos.StopLossPrice)
	}

	if err := c.store.Save(pos); err != nil {
		return NewPositionError(pos.Symbol, "save_state", err)
	}
	return nil
}

// SettleStopped는 거래소에서 체결된 보호 주문으로 닫힌 포지션을 기록합니다
func (c *Controller) SettleStopped(ctx context.Context, positionID string, order *domain.OrderResponse) (*domain.TradeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, err := c.store.Load()
	if err != nil {
		return nil, NewPositionError(c.cfg.Symbol, "load_state", err)
	}
	if pos == nil || pos.ID != positionID || order == nil || pos.ProtectiveOrderID != order.OrderID {
		return nil, nil
	}

	c.monitor.Stop()

	price, ok := order.AvgFillPrice()
	if !ok {
		price = order.StopPrice
	}
	if !price.IsPositive() {
		price = pos.StopLossPrice
	}

	reason := domain.ReasonStopLoss
	if pos.TrailingActivated {
		reason = domain.ReasonTrailingStop
	}

	return c.finalize(ctx, pos, price, reason), nil
}

// Reset은 거래소를 건드리지 않고 상태를 포지션 없음으로 초기화합니다
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.monitor.Stop()
	if err := c.store.Clear(); err != nil {
		return NewPositionError(c.cfg.Symbol, "reset", err)
	}
	metrics.SetPositionOpen(false)

	logger.Warnf("포지션 상태가 수동으로 초기화되었습니다")
	c.notifyInfo("🧹 포지션 상태가 수동으로 초기화되었습니다")
	return nil
}

func (c *Controller) critical(op string, err error) {
	logger.Criticalf("[%s] %v", op, err)
	metrics.IncCritical(op)
	if c.notifier != nil {
		if nErr := c.notifier.SendCritical(op, err); nErr != nil {
			logger.Warnf("긴급 알림 전송 실패: %v", nErr)
		}
	}
}

func (c *Controller) notifyInfo(msg string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.SendInfo(msg); err != nil {
		logger.Warnf("알림 전송 실패: %v", err)
	}
}

func (c *Controller) notifyError(err error) {
	if c.notifier == nil {
		return
	}
	if nErr := c.notifier.SendError(err); nErr != nil {
		logger.Warnf("에러 알림 전송 실패: %v", nErr)
	}
}

// newClientOrderID는 거래소 newClientOrderId 제한(36자)에 맞는 ID를 생성합니다
func newClientOrderID(prefix string) string {
	id := prefix + "-" + uuid.NewString()
	if len(id) > 36 {
		id = id[:36]
	}
	return id
}

// sleepCtx는 컨텍스트 취소를 존중하며 대기합니다
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

// IsBenign은 중복 신호 등 무시해도 되는 에러인지 확인합니다
func IsBenign(err error) bool {
	return errors.Is(err, ErrPositionExists)
}
