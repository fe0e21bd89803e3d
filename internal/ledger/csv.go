package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
)

var csvHeader = []string{
	"symbol", "side", "quantity", "entry_price", "exit_price", "pnl",
	"entry_timestamp", "exit_timestamp", "exit_reason",
}

// CSVLedger는 CSV 파일 기반 거래 기록입니다. 첫 기록 시 헤더를 씁니다.
type CSVLedger struct {
	path string
	mu   sync.Mutex
}

// NewCSVLedger는 새로운 CSVLedger를 생성합니다
func NewCSVLedger(path string) *CSVLedger {
	return &CSVLedger{path: path}
}

// Append는 거래 기록 한 줄을 추가합니다
func (l *CSVLedger) Append(ctx context.Context, record domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ledger 디렉토리 생성 실패: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger 파일 열기 실패: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("ledger 파일 상태 확인 실패: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("ledger 헤더 쓰기 실패: %w", err)
		}
	}

	row := []string{
		record.Symbol,
		string(record.Side),
		record.Quantity.String(),
		record.EntryPrice.String(),
		record.ExitPrice.String(),
		record.PnL.String(),
		record.EntryTime.UTC().Format(time.RFC3339),
		record.ExitTime.UTC().Format(time.RFC3339),
		string(record.ExitReason),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("ledger 기록 실패: %w", err)
	}

	w.Flush()
	return w.Error()
}

// List는 파일의 모든 거래 기록을 읽습니다
func (l *CSVLedger) List(ctx context.Context) ([]domain.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger 파일 열기 실패: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	var records []domain.TradeRecord
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ledger %d번째 줄 읽기 실패: %w", line, err)
		}
		if line == 1 && row[0] == csvHeader[0] {
			continue
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("ledger %d번째 줄 해석 실패: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close는 CSV 기반 ledger에서 할 일이 없습니다
func (l *CSVLedger) Close() error {
	return nil
}

func parseRow(row []string) (domain.TradeRecord, error) {
	var (
		rec  domain.TradeRecord
		errs []error
	)

	num := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	ts := func(s string) time.Time {
		v, err := time.Parse(time.RFC3339, s)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	rec.Symbol = row[0]
	rec.Side = domain.Side(row[1])
	rec.Quantity = num(row[2])
	rec.EntryPrice = num(row[3])
	rec.ExitPrice = num(row[4])
	rec.PnL = num(row[5])
	rec.EntryTime = ts(row[6])
	rec.ExitTime = ts(row[7])
	rec.ExitReason = domain.ExitReason(row[8])

	return rec, errors.Join(errs...)
}
