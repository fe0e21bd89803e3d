package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position은 현재 보유 중인 단일 마진 포지션을 표현합니다
// 프로세스 전체에서 최대 하나만 존재합니다
type Position struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Side              Side            `json:"side"`
	Quantity          decimal.Decimal `json:"quantity"`    // stepSize로 정렬된 수량
	EntryPrice        decimal.Decimal `json:"entry_price"` // 손익 및 스탑 계산 기준가
	StopLossPrice     decimal.Decimal `json:"stop_loss_price"`
	ProtectiveOrderID int64           `json:"protective_order_id,omitempty"` // 0이면 보호 주문 없음
	ExitStrategy      ExitStrategy    `json:"exit_strategy"`

	// take_profit 전략
	TakeProfitPrice decimal.Decimal `json:"take_profit_price,omitempty"`

	// trailing_stop 전략
	TrailingActivationPrice decimal.Decimal `json:"ts_activation_price,omitempty"`
	TrailingActivated       bool            `json:"ts_activated,omitempty"`
	TrailingExtremumPrice   decimal.Decimal `json:"ts_extremum_price,omitempty"`

	EntryTime    time.Time `json:"entry_timestamp"`
	ReentryCount int       `json:"reentry_count"`
}

// HasProtection은 살아있는 보호 주문이 기록되어 있는지 확인합니다
func (p *Position) HasProtection() bool {
	return p != nil && p.ProtectiveOrderID != 0
}

// Clone은 포지션의 복사본을 반환합니다
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// UnrealizedPnL은 주어진 가격 기준 평가 손익을 계산합니다
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return RealizedPnL(p.Side, p.EntryPrice, price, p.Quantity)
}

// RealizedPnL은 방향에 따른 실현 손익을 계산합니다
// 롱: (exit - entry) * qty, 숏: (entry - exit) * qty
func RealizedPnL(side Side, entry, exit, quantity decimal.Decimal) decimal.Decimal {
	if side == Short {
		return entry.Sub(exit).Mul(quantity)
	}
	return exit.Sub(entry).Mul(quantity)
}
