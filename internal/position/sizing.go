package position

import (
	"fmt"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SizeResult는 포지션 크기 계산 결과를 담는 구조체입니다
type SizeResult struct {
	Investment decimal.Decimal // 투입 금액 (호가 자산)
	Quantity   decimal.Decimal // stepSize로 내림된 주문 수량
}

// CalculatePositionSize는 잔고의 일정 비율로 진입 수량을 계산합니다.
// 수량은 stepSize 단위로 내림되며 결과가 0이면 ErrQuantityTooSmall을 반환합니다.
func CalculatePositionSize(balance, price, sizePercent decimal.Decimal, profile domain.PrecisionProfile) (SizeResult, error) {
	if !price.IsPositive() {
		return SizeResult{}, ErrPriceUnavailable
	}

	investment := balance.Mul(sizePercent).Div(hundred)
	quantity := profile.QuantizeQuantity(investment.Div(price))

	if !quantity.IsPositive() {
		return SizeResult{}, fmt.Errorf("%w: 투입 %s / 가격 %s (step %s)",
			ErrQuantityTooSmall, investment, price, profile.StepSize)
	}

	return SizeResult{
		Investment: investment,
		Quantity:   quantity,
	}, nil
}
