package position

import (
	"errors"
	"fmt"
)

// Error 타입들은 포지션 관리 중 발생할 수 있는 다양한 에러를 정의합니다
var (
	ErrInsufficientFunds      = errors.New("잔고가 최소 잔고 이하입니다")
	ErrQuantityTooSmall       = errors.New("정밀도 적용 후 주문 수량이 0입니다")
	ErrPriceUnavailable       = errors.New("현재 가격을 조회할 수 없습니다")
	ErrPositionExists         = errors.New("이미 포지션이 존재합니다")
	ErrBorrowFailed           = errors.New("숏 진입을 위한 차입에 실패했습니다")
	ErrEntryRejected          = errors.New("진입 주문이 거부되었습니다")
	ErrCriticalReconciliation = errors.New("청산 주문 실패: 거래소와 상태가 불일치할 수 있어 수동 확인이 필요합니다")
)

// PositionError는 포지션 관리 에러를 확장한 구조체입니다
type PositionError struct {
	Symbol string
	Op     string
	Err    error
}

// Error는 error 인터페이스를 구현합니다
func (e *PositionError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("포지션 에러 [%s, 작업: %s]: %v", e.Symbol, e.Op, e.Err)
	}
	return fmt.Sprintf("포지션 에러 [작업: %s]: %v", e.Op, e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *PositionError) Unwrap() error {
	return e.Err
}

// NewPositionError는 새로운 PositionError를 생성합니다
func NewPositionError(symbol, op string, err error) *PositionError {
	return &PositionError{
		Symbol: symbol,
		Op:     op,
		Err:    err,
	}
}
