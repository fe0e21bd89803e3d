package position

import (
	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
)

var decOne = decimal.NewFromInt(1)

func pct(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// stopLossPrice는 진입가 기준 손절 트리거 가격입니다
// 롱: entry × (1 − sl%), 숏: entry × (1 + sl%)
func stopLossPrice(side domain.Side, entry, slPercent decimal.Decimal) decimal.Decimal {
	if side == domain.Short {
		return entry.Mul(decOne.Add(pct(slPercent)))
	}
	return entry.Mul(decOne.Sub(pct(slPercent)))
}

// favourableTarget은 진입가 기준 유리한 방향 목표가입니다 (익절가, 트레일링 활성화 가격)
// 롱: entry × (1 + p%), 숏: entry ÷ (1 + p%)
func favourableTarget(side domain.Side, entry, percent decimal.Decimal) decimal.Decimal {
	factor := decOne.Add(pct(percent))
	if side == domain.Short {
		return entry.Div(factor)
	}
	return entry.Mul(factor)
}

// trailingStopFor는 극값 기준 트레일링 스탑 가격입니다
// 롱: extremum × (1 − d%), 숏: extremum ÷ (1 − d%)
func trailingStopFor(side domain.Side, extremum, distancePercent decimal.Decimal) decimal.Decimal {
	factor := decOne.Sub(pct(distancePercent))
	if side == domain.Short {
		return extremum.Div(factor)
	}
	return extremum.Mul(factor)
}

// targetHit은 가격이 유리한 방향으로 목표가에 도달했는지 확인합니다
func targetHit(side domain.Side, price, target decimal.Decimal) bool {
	if !price.IsPositive() || !target.IsPositive() {
		return false
	}
	if side == domain.Short {
		return price.LessThanOrEqual(target)
	}
	return price.GreaterThanOrEqual(target)
}

// shouldUpdateExtremum은 가격이 새로운 유리한 극값인지 확인합니다
func shouldUpdateExtremum(side domain.Side, price, extremum decimal.Decimal) bool {
	if !price.IsPositive() {
		return false
	}
	if !extremum.IsPositive() {
		return true
	}
	if side == domain.Short {
		return price.LessThan(extremum)
	}
	return price.GreaterThan(extremum)
}

// shouldUpdateStop은 후보 스탑이 포지션에 유리한 방향으로만 이동하는지 확인합니다
func shouldUpdateStop(side domain.Side, candidate, current decimal.Decimal) bool {
	if !candidate.IsPositive() {
		return false
	}
	if !current.IsPositive() {
		return true
	}
	if side == domain.Short {
		return candidate.LessThan(current)
	}
	return candidate.GreaterThan(current)
}
