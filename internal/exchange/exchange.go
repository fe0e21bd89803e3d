// internal/exchange/exchange.go
package exchange

import (
	"context"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/shopspring/decimal"
)

// Exchange는 마진 거래소와의 상호작용을 위한 인터페이스입니다.
// 구현체는 내부에서 재시도하지 않습니다. 재시도 여부는 호출자가 결정합니다.
type Exchange interface {
	// 시장 데이터 조회
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error)

	// 계정 데이터 조회
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	GetDebt(ctx context.Context, asset string) (decimal.Decimal, error)
	GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error)

	// 거래 기능
	MarketOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error)
	StopOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	Borrow(ctx context.Context, asset string, amount string) (int64, error)
}
