// Package ledger는 청산된 거래 기록을 추가 전용으로 보관합니다.
package ledger

import (
	"context"
	"fmt"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
)

// Driver 종류
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Ledger는 거래 기록 저장소 인터페이스입니다
type Ledger interface {
	// Append는 거래 기록 하나를 추가합니다
	Append(ctx context.Context, record domain.TradeRecord) error
	// List는 기록된 거래를 오래된 순서로 반환합니다
	List(ctx context.Context) ([]domain.TradeRecord, error)
	Close() error
}

// Open은 드라이버 이름에 맞는 Ledger를 생성합니다
func Open(driver, path string) (Ledger, error) {
	switch driver {
	case "", DriverCSV:
		return NewCSVLedger(path), nil
	case DriverSQLite:
		return NewSQLiteLedger(path)
	default:
		return nil, fmt.Errorf("지원하지 않는 ledger 드라이버: %s", driver)
	}
}

// Stats는 거래 기록 요약 통계입니다
type Stats struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     float64         `json:"win_rate"` // 퍼센트
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	BestTrade   decimal.Decimal `json:"best_trade"`
	WorstTrade  decimal.Decimal `json:"worst_trade"`
}

// Summarize는 거래 기록으로부터 통계를 계산합니다
func Summarize(records []domain.TradeRecord) Stats {
	stats := Stats{TotalTrades: len(records)}
	if len(records) == 0 {
		return stats
	}

	stats.BestTrade = records[0].PnL
	stats.WorstTrade = records[0].PnL
	for _, r := range records {
		if r.IsWin() {
			stats.Wins++
		} else {
			stats.Losses++
		}
		stats.TotalPnL = stats.TotalPnL.Add(r.PnL)
		if r.PnL.GreaterThan(stats.BestTrade) {
			stats.BestTrade = r.PnL
		}
		if r.PnL.LessThan(stats.WorstTrade) {
			stats.WorstTrade = r.PnL
		}
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	return stats
}
