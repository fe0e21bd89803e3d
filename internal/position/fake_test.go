package position

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/notification"
	"github.com/assist-by/odyssey/internal/precision"
	"github.com/assist-by/odyssey/internal/store"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeExchange는 메모리 기반 거래소입니다. 가격 큐의 마지막 값은 계속 반복됩니다.
type fakeExchange struct {
	mu sync.Mutex

	prices     []decimal.Decimal
	lastPrice  decimal.Decimal
	priceErr   error
	balance    decimal.Decimal
	debt       decimal.Decimal
	reportFill bool

	marketErr func(req domain.OrderRequest) error
	stopErr   error
	cancelErr error
	borrowErr error

	nextID  int64
	market  []domain.OrderRequest
	stops   []domain.OrderRequest
	stopIDs []int64
	cancels []int64
	borrows []string
	orders  map[int64]*domain.OrderResponse
}

func newFakeExchange(balance string, prices ...string) *fakeExchange {
	f := &fakeExchange{
		balance:    d(balance),
		reportFill: true,
		nextID:     100,
		orders:     make(map[int64]*domain.OrderResponse),
	}
	for _, p := range prices {
		f.prices = append(f.prices, d(p))
	}
	return f
}

func (f *fakeExchange) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	if len(f.prices) == 0 {
		return decimal.Zero, nil
	}
	p := f.prices[0]
	if len(f.prices) > 1 {
		f.prices = f.prices[1:]
	}
	f.lastPrice = p
	return p, nil
}

func (f *fakeExchange) setPrices(prices ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = nil
	for _, p := range prices {
		f.prices = append(f.prices, d(p))
	}
}

func (f *fakeExchange) GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	return &domain.SymbolInfo{
		Symbol:     symbol,
		BaseAsset:  "WLD",
		QuoteAsset: "USDC",
		StepSize:   d("0.10000000"),
		TickSize:   d("0.00100000"),
	}, nil
}

func (f *fakeExchange) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeExchange) GetDebt(ctx context.Context, asset string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debt, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok {
		return o, nil
	}
	return &domain.OrderResponse{OrderID: orderID, Symbol: symbol, Status: domain.StatusNew}, nil
}

func (f *fakeExchange) MarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketErr != nil {
		if err := f.marketErr(req); err != nil {
			return nil, err
		}
	}
	f.market = append(f.market, req)
	f.nextID++

	resp := &domain.OrderResponse{
		OrderID: f.nextID,
		Symbol:  req.Symbol,
		Status:  domain.StatusFilled,
		Side:    req.Side,
		Type:    domain.Market,
	}
	if f.reportFill {
		qty := d(req.Quantity)
		resp.ExecutedQuantity = qty
		resp.CumQuote = qty.Mul(f.lastPrice)
	}
	return resp, nil
}

func (f *fakeExchange) StopOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	f.stops = append(f.stops, req)
	f.nextID++
	f.stopIDs = append(f.stopIDs, f.nextID)
	return &domain.OrderResponse{OrderID: f.nextID, Status: domain.StatusNew, Type: domain.StopLoss}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancels = append(f.cancels, orderID)
	return nil
}

func (f *fakeExchange) Borrow(ctx context.Context, asset string, amount string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.borrowErr != nil {
		return 0, f.borrowErr
	}
	f.borrows = append(f.borrows, amount)
	return 1, nil
}

// fillStop은 보호 주문을 거래소 측에서 체결된 것으로 표시합니다
func (f *fakeExchange) fillStop(orderID int64, qty, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[orderID] = &domain.OrderResponse{
		OrderID:          orderID,
		Status:           domain.StatusFilled,
		Type:             domain.StopLoss,
		StopPrice:        d(price),
		ExecutedQuantity: d(qty),
		CumQuote:         d(qty).Mul(d(price)),
	}
}

// setOrderStatus는 주문 상태를 거래소 측에서 변경합니다
func (f *fakeExchange) setOrderStatus(orderID int64, status domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[orderID] = &domain.OrderResponse{OrderID: orderID, Status: status, Type: domain.StopLoss}
}

func (f *fakeExchange) snapshot() (market, stops []domain.OrderRequest, cancels []int64, borrows []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderRequest(nil), f.market...),
		append([]domain.OrderRequest(nil), f.stops...),
		append([]int64(nil), f.cancels...),
		append([]string(nil), f.borrows...)
}

type memLedger struct {
	mu      sync.Mutex
	records []domain.TradeRecord
}

func (l *memLedger) Append(ctx context.Context, record domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *memLedger) all() []domain.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.TradeRecord(nil), l.records...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	criticals []string
	opened    int
	closed    int
}

var _ notification.Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) SendSignal(info notification.SignalInfo) error { return nil }
func (n *recordingNotifier) SendError(err error) error                    { return nil }
func (n *recordingNotifier) SendInfo(message string) error                { return nil }

func (n *recordingNotifier) SendCritical(op string, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.criticals = append(n.criticals, op)
	return nil
}

func (n *recordingNotifier) SendTradeInfo(info notification.TradeInfo) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened++
	return nil
}

func (n *recordingNotifier) SendTradeResult(record domain.TradeRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed++
	return nil
}

func (n *recordingNotifier) criticalOps() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.criticals...)
}

type harness struct {
	ctrl     *Controller
	ex       *fakeExchange
	store    *store.FileStore
	ledger   *memLedger
	notifier *recordingNotifier
}

func testConfig() Config {
	return Config{
		Symbol:                    "WLDUSDC",
		BaseAsset:                 "WLD",
		QuoteAsset:                "USDC",
		PositionSizePercent:       d("50"),
		StopLossPercent:           d("2"),
		MinBalance:                d("10"),
		ExitStrategy:              domain.TakeProfitStrategy,
		TakeProfitPercent:         d("5"),
		TrailingActivationPercent: d("2"),
		TrailingDistancePercent:   d("1"),
		Monitor: MonitorConfig{
			Interval:     time.Hour,
			ErrorBackoff: time.Hour,
			PriceRetry:   time.Hour,
		},
	}
}

func newHarness(t *testing.T, cfg Config, ex *fakeExchange) *harness {
	t.Helper()
	h := &harness{
		ex:       ex,
		store:    store.NewFileStore(filepath.Join(t.TempDir(), "state.json")),
		ledger:   &memLedger{},
		notifier: &recordingNotifier{},
	}
	h.ctrl = NewController(cfg, ex, precision.NewResolver(ex), h.store, h.ledger, WithNotifier(h.notifier))
	t.Cleanup(h.ctrl.monitor.Stop)
	return h
}

func (h *harness) current(t *testing.T) *domain.Position {
	t.Helper()
	pos, err := h.store.Load()
	if err != nil {
		t.Fatalf("상태 로드 실패: %v", err)
	}
	return pos
}

var errRejected = errors.New("rejected")
