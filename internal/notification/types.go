package notification

import (
	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendSignal은 수신한 웹훅 신호와 처리 결과를 전송합니다
	SendSignal(info SignalInfo) error

	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendCritical은 수동 조치가 필요한 실패를 전송합니다
	SendCritical(op string, err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error

	// SendTradeInfo는 포지션 진입 정보를 전송합니다
	SendTradeInfo(info TradeInfo) error

	// SendTradeResult는 포지션 청산 결과를 전송합니다
	SendTradeResult(record domain.TradeRecord) error
}

// SignalInfo는 처리된 신호 정보입니다
type SignalInfo struct {
	Action  string // buy / sell
	Outcome string // opened, flipped, ignored ...
	Side    domain.Side
	Err     error
}

// TradeInfo는 거래 실행 정보를 정의합니다
type TradeInfo struct {
	Symbol       string
	Side         domain.Side
	Quantity     decimal.Decimal
	EntryPrice   decimal.Decimal
	Investment   decimal.Decimal // 투입 금액 (호가 자산)
	StopLoss     decimal.Decimal
	Protected    bool // 보호 주문 생성 여부
	ExitStrategy domain.ExitStrategy
	TakeProfit   decimal.Decimal // take_profit 전략
	Activation   decimal.Decimal // trailing_stop 전략
	ReentryCount int
}

// GetColorForSide는 포지션 방향에 따른 색상을 반환합니다
func GetColorForSide(side domain.Side) int {
	switch side {
	case domain.Long:
		return domain.ColorSuccess
	case domain.Short:
		return domain.ColorError
	default:
		return domain.ColorInfo
	}
}
