// Package precision은 심볼별 가격/수량 정밀도를 조회하고 캐시합니다.
package precision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/logger"
)

// ErrPrecisionUnavailable은 심볼의 정밀도를 얻을 수 없을 때 반환됩니다.
// 정밀도 없이 주문을 낼 수 없으므로 호출자는 작업을 중단해야 합니다.
var ErrPrecisionUnavailable = errors.New("정밀도 정보를 사용할 수 없습니다")

// SymbolSource는 거래소 심볼 필터를 제공합니다
type SymbolSource interface {
	GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error)
}

// Resolver는 심볼별 PrecisionProfile의 읽기 전용 캐시입니다
type Resolver struct {
	source   SymbolSource
	mu       sync.RWMutex
	profiles map[string]domain.PrecisionProfile
}

// NewResolver는 새로운 Resolver를 생성합니다
func NewResolver(source SymbolSource) *Resolver {
	return &Resolver{
		source:   source,
		profiles: make(map[string]domain.PrecisionProfile),
	}
}

// Resolve는 캐시된 프로필을 반환하고, 없으면 거래소에서 조회합니다
func (r *Resolver) Resolve(ctx context.Context, symbol string) (domain.PrecisionProfile, error) {
	r.mu.RLock()
	profile, ok := r.profiles[symbol]
	r.mu.RUnlock()
	if ok {
		return profile, nil
	}

	info, err := r.source.GetSymbolInfo(ctx, symbol)
	if err != nil {
		return domain.PrecisionProfile{}, fmt.Errorf("%w [%s]: %w", ErrPrecisionUnavailable, symbol, err)
	}
	if !info.TickSize.IsPositive() || !info.StepSize.IsPositive() {
		return domain.PrecisionProfile{}, fmt.Errorf("%w [%s]: tickSize=%s stepSize=%s",
			ErrPrecisionUnavailable, symbol, info.TickSize, info.StepSize)
	}

	profile = domain.PrecisionProfile{
		Symbol:   symbol,
		TickSize: info.TickSize,
		StepSize: info.StepSize,
	}

	r.mu.Lock()
	// 동시에 조회한 경우 먼저 저장된 값을 유지합니다
	if existing, ok := r.profiles[symbol]; ok {
		profile = existing
	} else {
		r.profiles[symbol] = profile
	}
	r.mu.Unlock()

	logger.Infof("정밀도 로드: %s (가격 %d자리, 수량 %d자리)",
		symbol, profile.PriceDecimals(), profile.QuantityDecimals())
	return profile, nil
}
