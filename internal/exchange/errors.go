package exchange

import (
	"errors"
	"fmt"
)

// ErrSymbolNotFound는 거래소에 심볼이 없을 때 반환됩니다
var ErrSymbolNotFound = errors.New("심볼을 찾을 수 없습니다")

// Kind는 거래소 에러의 분류입니다
type Kind int

const (
	// KindTransport는 네트워크/HTTP 계층 실패입니다 (호출자 판단으로 재시도 가능)
	KindTransport Kind = iota + 1
	// KindRejection은 유효한 요청을 거래소가 거부한 경우입니다
	KindRejection
	// KindMalformed는 응답 본문을 해석할 수 없는 경우입니다
	KindMalformed
)

// String은 Kind의 문자열 표현을 반환합니다
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRejection:
		return "rejection"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error는 거래소 호출 실패를 표현합니다. 운영자 진단을 위해 원본 응답을 보존합니다.
type Error struct {
	Op         string // 호출 작업 (예: place_order)
	Kind       Kind
	StatusCode int    // HTTP 상태 코드 (transport 에러면 0)
	Code       int    // 거래소 에러 코드
	Message    string // 거래소 에러 메시지
	Raw        string // 원본 응답 본문
	Err        error
}

// Error는 error 인터페이스를 구현합니다
func (e *Error) Error() string {
	switch e.Kind {
	case KindRejection:
		return fmt.Sprintf("거래소 거부 [%s, HTTP %d, 코드 %d]: %s", e.Op, e.StatusCode, e.Code, e.Message)
	case KindMalformed:
		return fmt.Sprintf("응답 파싱 실패 [%s]: %v (응답: %s)", e.Op, e.Err, e.Raw)
	default:
		return fmt.Sprintf("거래소 통신 실패 [%s]: %v", e.Op, e.Err)
	}
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf는 에러 체인에서 거래소 에러 분류를 찾습니다
func KindOf(err error) (Kind, bool) {
	var exErr *Error
	if errors.As(err, &exErr) {
		return exErr.Kind, true
	}
	return 0, false
}

// IsTransport는 전송 계층 실패인지 확인합니다
func IsTransport(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTransport
}

// IsRejection은 거래소 거부인지 확인합니다
func IsRejection(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindRejection
}
