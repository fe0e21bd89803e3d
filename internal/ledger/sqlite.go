package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// tradeModel은 trades 테이블 행입니다. 금액은 정밀도 보존을 위해 문자열로 저장합니다.
type tradeModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TradeID    string `gorm:"size:64;index"`
	Symbol     string `gorm:"size:32;index"`
	Side       string `gorm:"size:8"`
	Quantity   string `gorm:"size:64"`
	EntryPrice string `gorm:"size:64"`
	ExitPrice  string `gorm:"size:64"`
	PnL        string `gorm:"column:pnl;size:64"`
	EntryTime  time.Time
	ExitTime   time.Time `gorm:"index"`
	ExitReason string    `gorm:"size:32"`
	CreatedAt  time.Time
}

func (tradeModel) TableName() string { return "trades" }

// SQLiteLedger는 gorm + SQLite 기반 거래 기록입니다
type SQLiteLedger struct {
	db *gorm.DB
}

// NewSQLiteLedger는 SQLite 파일을 열고 스키마를 마이그레이션합니다
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite ledger: 경로가 비어있습니다")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite ledger 디렉토리 생성 실패: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger 열기 실패: %w", err)
	}
	if err := db.AutoMigrate(&tradeModel{}); err != nil {
		return nil, fmt.Errorf("sqlite ledger 마이그레이션 실패: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteLedger{db: db}, nil
}

// Append는 거래 기록 하나를 삽입합니다
func (l *SQLiteLedger) Append(ctx context.Context, record domain.TradeRecord) error {
	row := tradeModel{
		TradeID:    record.ID,
		Symbol:     record.Symbol,
		Side:       string(record.Side),
		Quantity:   record.Quantity.String(),
		EntryPrice: record.EntryPrice.String(),
		ExitPrice:  record.ExitPrice.String(),
		PnL:        record.PnL.String(),
		EntryTime:  record.EntryTime.UTC(),
		ExitTime:   record.ExitTime.UTC(),
		ExitReason: string(record.ExitReason),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("거래 기록 삽입 실패: %w", err)
	}
	return nil
}

// List는 삽입 순서대로 거래 기록을 반환합니다
func (l *SQLiteLedger) List(ctx context.Context) ([]domain.TradeRecord, error) {
	var rows []tradeModel
	if err := l.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("거래 기록 조회 실패: %w", err)
	}

	records := make([]domain.TradeRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.TradeRecord{
			ID:         row.TradeID,
			Symbol:     row.Symbol,
			Side:       domain.Side(row.Side),
			Quantity:   decimalOrZero(row.Quantity),
			EntryPrice: decimalOrZero(row.EntryPrice),
			ExitPrice:  decimalOrZero(row.ExitPrice),
			PnL:        decimalOrZero(row.PnL),
			EntryTime:  row.EntryTime,
			ExitTime:   row.ExitTime,
			ExitReason: domain.ExitReason(row.ExitReason),
		})
	}
	return records, nil
}

// Close는 데이터베이스 연결을 닫습니다
func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decimalOrZero(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
