package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord는 청산된 포지션 하나의 불변 기록입니다
type TradeRecord struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	PnL        decimal.Decimal `json:"pnl"`
	EntryTime  time.Time       `json:"entry_timestamp"`
	ExitTime   time.Time       `json:"exit_timestamp"`
	ExitReason ExitReason      `json:"exit_reason"`
}

// IsWin은 수익 거래인지 확인합니다
func (t TradeRecord) IsWin() bool {
	return t.PnL.IsPositive()
}
