package domain

import "fmt"

// Side는 포지션 방향을 정의합니다
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// ParseSide는 문자열을 포지션 방향으로 변환합니다
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Long, Short:
		return Side(s), nil
	default:
		return "", fmt.Errorf("알 수 없는 포지션 방향: %q", s)
	}
}

// Opposite는 반대 방향을 반환합니다
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

// EntryOrderSide는 포지션 진입을 위한 주문 사이드를 반환합니다
func (s Side) EntryOrderSide() OrderSide {
	if s == Long {
		return Buy
	}
	return Sell
}

// ExitOrderSide는 포지션 청산을 위한 주문 사이드를 반환합니다
func (s Side) ExitOrderSide() OrderSide {
	if s == Long {
		return Sell
	}
	return Buy
}

// OrderSide는 주문 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	Market   OrderType = "MARKET"
	StopLoss OrderType = "STOP_LOSS"
)

// SideEffect는 마진 주문의 차입/상환 부수효과를 정의합니다
type SideEffect string

const (
	NoSideEffect SideEffect = "NO_SIDE_EFFECT"
	AutoRepay    SideEffect = "AUTO_REPAY"
)

// OrderStatus는 거래소 주문 상태입니다
type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusRejected        OrderStatus = "REJECTED"
)

// ExitStrategy는 포지션 청산 전략을 정의합니다
type ExitStrategy string

const (
	TakeProfitStrategy   ExitStrategy = "take_profit"
	TrailingStopStrategy ExitStrategy = "trailing_stop"
)

// Valid는 지원하는 전략인지 확인합니다
func (e ExitStrategy) Valid() bool {
	return e == TakeProfitStrategy || e == TrailingStopStrategy
}

// ExitReason은 포지션이 닫힌 이유입니다
type ExitReason string

const (
	ReasonTakeProfit     ExitReason = "take_profit"
	ReasonOpposingSignal ExitReason = "opposing_signal"
	ReasonStopLoss       ExitReason = "stop_loss"
	ReasonTrailingStop   ExitReason = "trailing_stop"
	ReasonManualClose    ExitReason = "manual_close"
)

// NotificationColor는 알림 색상 코드를 정의합니다
const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)
