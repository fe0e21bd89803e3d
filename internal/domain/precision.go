package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PrecisionProfile은 심볼별 가격/수량 최소 단위를 표현합니다
// 한 번 조회된 값은 변경되지 않습니다
type PrecisionProfile struct {
	Symbol   string          `json:"symbol"`
	TickSize decimal.Decimal `json:"tick_size"` // 가격 최소 단위
	StepSize decimal.Decimal `json:"step_size"` // 수량 최소 단위
}

// Decimals는 증분 단위가 의미하는 소수점 자릿수를 반환합니다 (0.10000000 -> 1)
func Decimals(increment decimal.Decimal) int32 {
	if !increment.IsPositive() {
		return 0
	}
	s := increment.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}

// PriceDecimals는 가격 소수점 자릿수입니다
func (p PrecisionProfile) PriceDecimals() int32 { return Decimals(p.TickSize) }

// QuantityDecimals는 수량 소수점 자릿수입니다
func (p PrecisionProfile) QuantityDecimals() int32 { return Decimals(p.StepSize) }

// QuantizeQuantity는 수량을 stepSize 단위로 내림합니다 (절대 올리지 않음)
func (p PrecisionProfile) QuantizeQuantity(q decimal.Decimal) decimal.Decimal {
	return truncateTo(q, p.StepSize)
}

// CeilQuantity는 수량을 stepSize 단위로 올림합니다
// 숏 포지션 상환 시 이자 잔여분까지 갚기 위해서만 사용합니다
func (p PrecisionProfile) CeilQuantity(q decimal.Decimal) decimal.Decimal {
	if !p.StepSize.IsPositive() {
		return q
	}
	steps, rem := q.QuoRem(p.StepSize, 0)
	if rem.IsPositive() {
		steps = steps.Add(decimal.NewFromInt(1))
	}
	return steps.Mul(p.StepSize)
}

// QuantizePrice는 가격을 tickSize 단위로 내림합니다
// 롱/숏 스탑 트리거 모두 내림으로 정렬합니다
func (p PrecisionProfile) QuantizePrice(price decimal.Decimal) decimal.Decimal {
	return truncateTo(price, p.TickSize)
}

// FormatQuantity는 수량을 내림 후 거래소 요구 자릿수로 포맷합니다
func (p PrecisionProfile) FormatQuantity(q decimal.Decimal) string {
	return p.QuantizeQuantity(q).StringFixed(p.QuantityDecimals())
}

// FormatPrice는 가격을 내림 후 거래소 요구 자릿수로 포맷합니다
func (p PrecisionProfile) FormatPrice(price decimal.Decimal) string {
	return p.QuantizePrice(price).StringFixed(p.PriceDecimals())
}

func truncateTo(v, increment decimal.Decimal) decimal.Decimal {
	if !increment.IsPositive() {
		return v
	}
	steps, _ := v.QuoRem(increment, 0)
	return steps.Mul(increment)
}
