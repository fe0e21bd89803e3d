package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest는 주문 요청 정보를 표현합니다
// Quantity와 StopPrice는 이미 심볼 정밀도에 맞게 포맷된 문자열입니다
type OrderRequest struct {
	Symbol        string     // 심볼 (예: WLDUSDC)
	Side          OrderSide  // 매수/매도
	Type          OrderType  // 주문 유형
	Quantity      string     // 수량
	StopPrice     string     // 스탑 가격 (STOP_LOSS 주문 시)
	SideEffect    SideEffect // 마진 부수효과
	ClientOrderID string     // 클라이언트 측 주문 ID
}

// OrderResponse는 주문 응답을 표현합니다
type OrderResponse struct {
	OrderID          int64           // 주문 ID
	Symbol           string          // 심볼
	Status           OrderStatus     // 주문 상태
	ClientOrderID    string          // 클라이언트 측 주문 ID
	Side             OrderSide       // 매수/매도
	Type             OrderType       // 주문 유형
	StopPrice        decimal.Decimal // 스탑 가격
	OrigQuantity     decimal.Decimal // 원래 주문 수량
	ExecutedQuantity decimal.Decimal // 체결된 수량
	CumQuote         decimal.Decimal // 누적 체결 금액 (호가 자산)
	UpdateTime       time.Time       // 마지막 갱신 시간
}

// AvgFillPrice는 응답에 체결 정보가 있을 때 평균 체결가를 반환합니다
func (r *OrderResponse) AvgFillPrice() (decimal.Decimal, bool) {
	if r == nil || !r.ExecutedQuantity.IsPositive() || !r.CumQuote.IsPositive() {
		return decimal.Zero, false
	}
	return r.CumQuote.Div(r.ExecutedQuantity), true
}

// IsFilled는 주문이 완전히 체결되었는지 확인합니다
func (r *OrderResponse) IsFilled() bool {
	return r != nil && r.Status == StatusFilled
}

// SymbolInfo는 심볼의 거래 정보를 나타냅니다
type SymbolInfo struct {
	Symbol     string          // 심볼 이름
	BaseAsset  string          // 기초 자산 (예: WLD)
	QuoteAsset string          // 호가 자산 (예: USDC)
	StepSize   decimal.Decimal // 수량 최소 단위
	TickSize   decimal.Decimal // 가격 최소 단위
}
