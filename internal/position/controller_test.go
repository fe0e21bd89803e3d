package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCloseEndToEnd(t *testing.T) {
	ex := newFakeExchange("100", "10", "10.6")
	h := newHarness(t, testConfig(), ex)
	ctx := context.Background()

	pos, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("5.0")))
	assert.True(t, pos.EntryPrice.Equal(d("10")))
	assert.True(t, pos.StopLossPrice.Equal(d("9.8")))
	assert.True(t, pos.TakeProfitPrice.Equal(d("10.5")))

	// 첫 모니터 주기에서 10.6으로 익절
	require.Eventually(t, func() bool {
		return len(h.ledger.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := h.ledger.all()[0]
	assert.Equal(t, domain.ReasonTakeProfit, rec.ExitReason)
	assert.Equal(t, domain.Long, rec.Side)
	assert.True(t, rec.ExitPrice.Equal(d("10.6")))
	assert.True(t, rec.PnL.Equal(d("3.0")), "pnl=%s", rec.PnL)

	assert.Nil(t, h.current(t))
	require.Eventually(t, func() bool { return !h.ctrl.MonitorRunning() }, time.Second, 10*time.Millisecond)

	market, stops, cancels, borrows := ex.snapshot()
	require.Len(t, market, 2)
	assert.Equal(t, domain.Buy, market[0].Side)
	assert.Equal(t, "5.0", market[0].Quantity)
	assert.Equal(t, domain.Sell, market[1].Side)
	assert.Equal(t, domain.NoSideEffect, market[1].SideEffect)

	require.Len(t, stops, 1)
	assert.Equal(t, domain.Sell, stops[0].Side)
	assert.Equal(t, "9.800", stops[0].StopPrice)
	assert.Equal(t, "5.0", stops[0].Quantity)
	assert.Equal(t, []int64{pos.ProtectiveOrderID}, cancels)
	assert.Empty(t, borrows)
}

func TestOpenWhenPositionExists(t *testing.T) {
	ex := newFakeExchange("100", "10")
	h := newHarness(t, testConfig(), ex)
	ctx := context.Background()

	first, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)
	marketBefore, stopsBefore, _, _ := ex.snapshot()

	_, err = h.ctrl.Open(ctx, domain.Short)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPositionExists)
	assert.True(t, IsBenign(err))

	var posErr *PositionError
	require.True(t, errors.As(err, &posErr))
	assert.Equal(t, "WLDUSDC", posErr.Symbol)

	market, stops, _, borrows := ex.snapshot()
	assert.Len(t, market, len(marketBefore))
	assert.Len(t, stops, len(stopsBefore))
	assert.Empty(t, borrows)
	assert.Equal(t, first.ID, h.current(t).ID)
}

func TestCloseWhenFlat(t *testing.T) {
	ex := newFakeExchange("100", "10")
	h := newHarness(t, testConfig(), ex)

	rec, err := h.ctrl.Close(context.Background(), decimal.NullDecimal{}, domain.ReasonManualClose)
	require.NoError(t, err)
	assert.Nil(t, rec)

	market, _, cancels, _ := ex.snapshot()
	assert.Empty(t, market)
	assert.Empty(t, cancels)
}

func TestOpenFailuresDoNotMutateState(t *testing.T) {
	tests := []struct {
		name    string
		side    domain.Side
		setup   func(*fakeExchange)
		wantErr error
	}{
		{
			name:    "잔고 부족",
			side:    domain.Long,
			setup:   func(f *fakeExchange) { f.balance = d("10") },
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "가격 0",
			side:    domain.Long,
			setup:   func(f *fakeExchange) { f.prices = []decimal.Decimal{decimal.Zero} },
			wantErr: ErrPriceUnavailable,
		},
		{
			name:    "가격 조회 실패",
			side:    domain.Long,
			setup:   func(f *fakeExchange) { f.priceErr = errors.New("timeout") },
			wantErr: ErrPriceUnavailable,
		},
		{
			name:    "수량 0",
			side:    domain.Long,
			setup:   func(f *fakeExchange) { f.balance = d("10.5"); f.prices = []decimal.Decimal{d("100")} },
			wantErr: ErrQuantityTooSmall,
		},
		{
			name:    "차입 실패",
			side:    domain.Short,
			setup:   func(f *fakeExchange) { f.borrowErr = errRejected },
			wantErr: ErrBorrowFailed,
		},
		{
			name:  "진입 거부",
			side:  domain.Long,
			setup: func(f *fakeExchange) {
				f.marketErr = func(domain.OrderRequest) error { return errRejected }
			},
			wantErr: ErrEntryRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newFakeExchange("100", "10")
			tt.setup(ex)
			h := newHarness(t, testConfig(), ex)

			pos, err := h.ctrl.Open(context.Background(), tt.side)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, pos)
			assert.Nil(t, h.current(t))
			assert.False(t, h.ctrl.MonitorRunning())

			_, stops, _, _ := ex.snapshot()
			assert.Empty(t, stops)
		})
	}
}

func TestStopPlacementFailureKeepsPositionOpen(t *testing.T) {
	ex := newFakeExchange("100", "10")
	ex.stopErr = errRejected
	h := newHarness(t, testConfig(), ex)

	pos, err := h.ctrl.Open(context.Background(), domain.Long)
	require.NoError(t, err)
	assert.False(t, pos.HasProtection())

	stored := h.current(t)
	require.NotNil(t, stored)
	assert.Equal(t, int64(0), stored.ProtectiveOrderID)
	assert.True(t, stored.StopLossPrice.Equal(d("9.8")))
	assert.Equal(t, []string{"protective_stop"}, h.notifier.criticalOps())
}

func TestEntryPriceFallsBackToFreshRead(t *testing.T) {
	ex := newFakeExchange("100", "10", "10.2")
	ex.reportFill = false
	h := newHarness(t, testConfig(), ex)

	pos, err := h.ctrl.Open(context.Background(), domain.Long)
	require.NoError(t, err)
	// 수량은 계산 가격 10 기준, 진입가는 재조회 가격
	assert.True(t, pos.Quantity.Equal(d("5")))
	assert.True(t, pos.EntryPrice.Equal(d("10.2")))
	assert.True(t, pos.StopLossPrice.Equal(d("9.996")))
}

func TestCloseShortRepaysDebt(t *testing.T) {
	ex := newFakeExchange("100", "10")
	ex.debt = d("5.03")
	h := newHarness(t, testConfig(), ex)
	ctx := context.Background()

	pos, err := h.ctrl.Open(ctx, domain.Short)
	require.NoError(t, err)
	assert.True(t, pos.StopLossPrice.Equal(d("10.2")))

	rec, err := h.ctrl.Close(ctx, decimal.NewNullDecimal(d("9.5")), domain.ReasonManualClose)
	require.NoError(t, err)
	require.NotNil(t, rec)

	market, stops, _, borrows := ex.snapshot()
	assert.Equal(t, []string{"5.0"}, borrows)
	require.Len(t, stops, 1)
	assert.Equal(t, domain.Buy, stops[0].Side)
	assert.Equal(t, domain.AutoRepay, stops[0].SideEffect)

	require.Len(t, market, 2)
	assert.Equal(t, domain.Sell, market[0].Side)
	assert.Equal(t, domain.Buy, market[1].Side)
	assert.Equal(t, domain.AutoRepay, market[1].SideEffect)
	assert.Equal(t, "5.1", market[1].Quantity)

	// 손익은 포지션 수량 기준
	assert.True(t, rec.PnL.Equal(d("2.5")), "pnl=%s", rec.PnL)
	assert.Nil(t, h.current(t))
}

func TestCloseMarketFailureIsCritical(t *testing.T) {
	ex := newFakeExchange("100", "10")
	h := newHarness(t, testConfig(), ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)

	ex.mu.Lock()
	ex.marketErr = func(req domain.OrderRequest) error {
		if req.Side == domain.Sell {
			return errRejected
		}
		return nil
	}
	ex.mu.Unlock()

	rec, err := h.ctrl.Close(ctx, decimal.NullDecimal{}, domain.ReasonManualClose)
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrCriticalReconciliation)
	assert.ErrorIs(t, err, errRejected)

	assert.Nil(t, h.current(t))
	assert.Empty(t, h.ledger.all())
	assert.Contains(t, h.notifier.criticalOps(), "close")
	assert.False(t, h.ctrl.MonitorRunning())
}

func TestExitPriceFallbacks(t *testing.T) {
	ex := newFakeExchange("100", "10")
	ex.reportFill = false
	h := newHarness(t, testConfig(), ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)

	// 호출자 가격 없음, 체결 정보 없음 -> 재조회 가격
	ex.setPrices("9.9")
	rec, err := h.ctrl.Close(ctx, decimal.NullDecimal{}, domain.ReasonManualClose)
	require.NoError(t, err)
	assert.True(t, rec.ExitPrice.Equal(d("9.9")))
	assert.True(t, rec.PnL.Equal(d("-0.5")), "pnl=%s", rec.PnL)
	assert.Equal(t, domain.ReasonManualClose, rec.ExitReason)
}

func TestReentryBound(t *testing.T) {
	cfg := testConfig()
	cfg.ReentryEnabled = true
	cfg.MaxReentries = 1
	ex := newFakeExchange("100", "10")
	h := newHarness(t, cfg, ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)

	// 익절 -> 반대 방향 재진입
	_, err = h.ctrl.Close(ctx, decimal.NewNullDecimal(d("10.6")), domain.ReasonTakeProfit)
	require.NoError(t, err)

	next := h.current(t)
	require.NotNil(t, next)
	assert.Equal(t, domain.Short, next.Side)
	assert.Equal(t, 1, next.ReentryCount)

	// 재진입 한도 도달 -> 더 이상 진입하지 않음
	_, err = h.ctrl.Close(ctx, decimal.NewNullDecimal(d("9.5")), domain.ReasonTakeProfit)
	require.NoError(t, err)
	assert.Nil(t, h.current(t))

	records := h.ledger.all()
	require.Len(t, records, 2)
	assert.Equal(t, domain.Long, records[0].Side)
	assert.Equal(t, domain.Short, records[1].Side)

	market, _, _, borrows := ex.snapshot()
	assert.Len(t, market, 4)
	assert.Len(t, borrows, 1)
}

func TestNoReentryForOtherReasons(t *testing.T) {
	cfg := testConfig()
	cfg.ReentryEnabled = true
	cfg.MaxReentries = 3
	ex := newFakeExchange("100", "10")
	h := newHarness(t, cfg, ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)
	_, err = h.ctrl.Close(ctx, decimal.NullDecimal{}, domain.ReasonOpposingSignal)
	require.NoError(t, err)

	assert.Nil(t, h.current(t))
}

func TestReentryAbandonedWhenBalanceBelowFloor(t *testing.T) {
	cfg := testConfig()
	cfg.ReentryEnabled = true
	cfg.MaxReentries = 1
	ex := newFakeExchange("100", "10")
	h := newHarness(t, cfg, ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)

	ex.mu.Lock()
	ex.balance = d("5")
	ex.mu.Unlock()

	_, err = h.ctrl.Close(ctx, decimal.NewNullDecimal(d("10.6")), domain.ReasonTakeProfit)
	require.NoError(t, err)
	assert.Nil(t, h.current(t))

	market, _, _, _ := ex.snapshot()
	assert.Len(t, market, 2)
}

func TestStaleMonitorOperationsAreNoops(t *testing.T) {
	cfg := testConfig()
	cfg.ExitStrategy = domain.TrailingStopStrategy
	ex := newFakeExchange("100", "100")
	h := newHarness(t, cfg, ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)
	marketBefore, stopsBefore, _, _ := ex.snapshot()

	require.NoError(t, h.ctrl.AdvanceTrailing(ctx, "other-id", d("150")))
	rec, err := h.ctrl.closeMatching(ctx, "other-id", d("150"), domain.ReasonTakeProfit)
	require.NoError(t, err)
	assert.Nil(t, rec)
	rec, err = h.ctrl.SettleStopped(ctx, "other-id", &domain.OrderResponse{OrderID: 1})
	require.NoError(t, err)
	assert.Nil(t, rec)

	market, stops, _, _ := ex.snapshot()
	assert.Len(t, market, len(marketBefore))
	assert.Len(t, stops, len(stopsBefore))
	assert.False(t, h.current(t).TrailingActivated)
}

func TestResumeRestartsMonitor(t *testing.T) {
	ex := newFakeExchange("100", "10.6")
	h := newHarness(t, testConfig(), ex)

	require.NoError(t, h.store.Save(&domain.Position{
		ID:                "persisted",
		Symbol:            "WLDUSDC",
		Side:              domain.Long,
		Quantity:          d("5"),
		EntryPrice:        d("10"),
		StopLossPrice:     d("9.8"),
		ProtectiveOrderID: 55,
		ExitStrategy:      domain.TakeProfitStrategy,
		TakeProfitPrice:   d("10.5"),
		EntryTime:         time.Now(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pos, err := h.ctrl.Resume(ctx)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, "persisted", pos.ID)

	require.Eventually(t, func() bool {
		return len(h.ledger.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.ledger.all()[0].PnL.Equal(d("3")))

	_, _, cancels, _ := ex.snapshot()
	assert.Equal(t, []int64{55}, cancels)
}

func TestResumeWithoutPosition(t *testing.T) {
	h := newHarness(t, testConfig(), newFakeExchange("100", "10"))

	pos, err := h.ctrl.Resume(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.False(t, h.ctrl.MonitorRunning())
}

func TestReset(t *testing.T) {
	ex := newFakeExchange("100", "10")
	h := newHarness(t, testConfig(), ex)
	ctx := context.Background()

	_, err := h.ctrl.Open(ctx, domain.Long)
	require.NoError(t, err)
	require.True(t, h.ctrl.MonitorRunning())

	require.NoError(t, h.ctrl.Reset(ctx))
	assert.Nil(t, h.current(t))
	assert.False(t, h.ctrl.MonitorRunning())

	// 거래소는 건드리지 않음
	market, _, cancels, _ := ex.snapshot()
	assert.Len(t, market, 1)
	assert.Empty(t, cancels)
}

func TestConcurrentOperationsAreSerialized(t *testing.T) {
	const workers = 8

	tests := []struct {
		name        string
		preopen     bool
		race        func(ctrl *Controller, pos *domain.Position, i int) (bool, error)
		wantSuccess int
		wantMarket  int
		wantRecords int
		wantOpen    bool
	}{
		{
			name: "concurrent opens",
			race: func(ctrl *Controller, _ *domain.Position, _ int) (bool, error) {
				pos, err := ctrl.Open(context.Background(), domain.Long)
				return pos != nil, err
			},
			wantSuccess: 1,
			wantMarket:  1,
			wantOpen:    true,
		},
		{
			name:    "manual close races monitor close",
			preopen: true,
			race: func(ctrl *Controller, pos *domain.Position, i int) (bool, error) {
				var rec *domain.TradeRecord
				var err error
				if i%2 == 0 {
					rec, err = ctrl.Close(context.Background(), decimal.NullDecimal{}, domain.ReasonManualClose)
				} else {
					rec, err = ctrl.closeMatching(context.Background(), pos.ID, d("10.5"), domain.ReasonTakeProfit)
				}
				return rec != nil, err
			},
			wantSuccess: 1,
			wantMarket:  2,
			wantRecords: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newFakeExchange("100", "10")
			h := newHarness(t, testConfig(), ex)

			var pos *domain.Position
			if tt.preopen {
				var err error
				pos, err = h.ctrl.Open(context.Background(), domain.Long)
				require.NoError(t, err)
			}

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				errs      []error
			)
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					ok, err := tt.race(h.ctrl, pos, i)
					mu.Lock()
					defer mu.Unlock()
					if ok {
						successes++
					}
					if err != nil {
						errs = append(errs, err)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, tt.wantSuccess, successes)
			for _, err := range errs {
				assert.True(t, IsBenign(err), "unexpected error: %v", err)
			}

			market, _, _, _ := ex.snapshot()
			assert.Len(t, market, tt.wantMarket)
			assert.Len(t, h.ledger.all(), tt.wantRecords)
			assert.Equal(t, tt.wantOpen, h.current(t) != nil)
		})
	}
}
