// internal/exchange/binance/client.go
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/exchange"
	"github.com/assist-by/odyssey/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.binance.com"

// Client는 바이낸스 크로스 마진 API 클라이언트를 구현합니다
type Client struct {
	apiKey           string
	secretKey        string
	baseURL          string
	httpClient       *http.Client
	limiter          *rate.Limiter
	serverTimeOffset int64 // 서버 시간과의 차이를 저장
	mu               sync.RWMutex
}

var _ exchange.Exchange = (*Client)(nil)

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL은 기본 URL을 설정합니다
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithRateLimit은 초당 요청 수를 제한합니다. 0 이하이면 제한하지 않습니다.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient는 새로운 바이낸스 API 클라이언트를 생성합니다
func NewClient(apiKey, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 5),
	}

	// 옵션 적용
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// doRequest는 HTTP 요청을 실행하고 결과를 반환합니다
func (c *Client) doRequest(ctx context.Context, op, method, endpoint string, params url.Values, needSign bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(&exchange.Error{Op: op, Kind: exchange.KindTransport, Err: err})
		}
	}

	// URL 생성
	reqURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, c.fail(&exchange.Error{Op: op, Kind: exchange.KindTransport, Err: fmt.Errorf("URL 파싱 실패: %w", err)})
	}

	// 타임스탬프 추가
	if needSign {
		params.Set("timestamp", strconv.FormatInt(c.getServerTime(), 10))
		params.Set("recvWindow", "5000")
	}

	query := params.Encode()
	reqURL.RawQuery = query

	// 서명 추가
	if needSign {
		reqURL.RawQuery = query + "&signature=" + c.sign(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, c.fail(&exchange.Error{Op: op, Kind: exchange.KindTransport, Err: fmt.Errorf("요청 생성 실패: %w", err)})
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if needSign {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(&exchange.Error{Op: op, Kind: exchange.KindTransport, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&exchange.Error{Op: op, Kind: exchange.KindTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("응답 읽기 실패: %w", err)})
	}

	// 5xx는 처리 여부를 알 수 없는 서버 측 장애로 분류합니다
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, c.fail(&exchange.Error{
			Op:         op,
			Kind:       exchange.KindTransport,
			StatusCode: resp.StatusCode,
			Raw:        string(body),
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || isErrorPayload(body) {
		apiErr := &exchange.Error{
			Op:         op,
			Kind:       exchange.KindRejection,
			StatusCode: resp.StatusCode,
			Raw:        string(body),
			Message:    http.StatusText(resp.StatusCode),
		}
		if gjson.ValidBytes(body) {
			apiErr.Code = int(gjson.GetBytes(body, "code").Int())
			if msg := gjson.GetBytes(body, "msg"); msg.Exists() {
				apiErr.Message = msg.String()
			}
		}
		return nil, c.fail(apiErr)
	}

	return body, nil
}

// isErrorPayload는 200 응답에 담긴 {"code":-xxxx,"msg":...} 형태의 에러를 감지합니다
func isErrorPayload(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	code := gjson.GetBytes(body, "code")
	return code.Exists() && code.Int() < 0 && gjson.GetBytes(body, "msg").Exists()
}

func (c *Client) fail(err *exchange.Error) error {
	metrics.IncExchangeError(err.Op, err.Kind.String())
	return err
}

func (c *Client) malformed(op string, body []byte, err error) error {
	return c.fail(&exchange.Error{Op: op, Kind: exchange.KindMalformed, Raw: string(body), Err: err})
}

// sign은 요청에 대한 서명을 생성합니다
func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// getServerTime은 현재 서버 시간을 반환합니다
func (c *Client) getServerTime() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UnixMilli() + c.serverTimeOffset
}

// SyncTime은 바이낸스 서버와 시간을 동기화합니다
func (c *Client) SyncTime(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "server_time", http.MethodGet, "/api/v3/time", nil, false)
	if err != nil {
		return fmt.Errorf("서버 시간 조회 실패: %w", err)
	}

	serverTime := gjson.GetBytes(resp, "serverTime")
	if !serverTime.Exists() {
		return c.malformed("server_time", resp, fmt.Errorf("serverTime 필드 없음"))
	}

	c.mu.Lock()
	c.serverTimeOffset = serverTime.Int() - time.Now().UnixMilli()
	c.mu.Unlock()
	return nil
}

// GetPrice는 심볼의 최근 체결가를 조회합니다
func (c *Client) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Add("symbol", symbol)

	resp, err := c.doRequest(ctx, "ticker_price", http.MethodGet, "/api/v3/ticker/price", params, false)
	if err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(gjson.GetBytes(resp, "price").String())
	if err != nil {
		return decimal.Zero, c.malformed("ticker_price", resp, err)
	}
	return price, nil
}

// GetSymbolInfo는 특정 심볼의 거래 필터를 조회합니다
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	params := url.Values{}
	params.Add("symbol", symbol)

	resp, err := c.doRequest(ctx, "exchange_info", http.MethodGet, "/api/v3/exchangeInfo", params, false)
	if err != nil {
		return nil, fmt.Errorf("심볼 정보 조회 실패: %w", err)
	}

	var exchangeInfo struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Filters    []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize,omitempty"`
				TickSize   string `json:"tickSize,omitempty"`
			} `json:"filters"`
		} `json:"symbols"`
	}

	if err := json.Unmarshal(resp, &exchangeInfo); err != nil {
		return nil, c.malformed("exchange_info", resp, err)
	}

	for _, s := range exchangeInfo.Symbols {
		if s.Symbol != symbol {
			continue
		}

		info := &domain.SymbolInfo{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}

		// 필터 정보 추출
		for _, filter := range s.Filters {
			switch filter.FilterType {
			case "LOT_SIZE": // 수량 단위 필터
				if v, err := decimal.NewFromString(filter.StepSize); err == nil {
					info.StepSize = v
				}
			case "PRICE_FILTER": // 가격 단위 필터
				if v, err := decimal.NewFromString(filter.TickSize); err == nil {
					info.TickSize = v
				}
			}
		}

		if !info.StepSize.IsPositive() || !info.TickSize.IsPositive() {
			return nil, c.malformed("exchange_info", resp, fmt.Errorf("%s의 LOT_SIZE/PRICE_FILTER 누락", symbol))
		}
		return info, nil
	}

	return nil, exchange.ErrSymbolNotFound
}

// marginAsset은 마진 계정에서 특정 자산 행을 조회합니다
func (c *Client) marginAsset(ctx context.Context, asset string) (gjson.Result, error) {
	resp, err := c.doRequest(ctx, "margin_account", http.MethodGet, "/sapi/v1/margin/account", nil, true)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("마진 계정 조회 실패: %w", err)
	}

	userAssets := gjson.GetBytes(resp, "userAssets")
	if !userAssets.IsArray() {
		return gjson.Result{}, c.malformed("margin_account", resp, fmt.Errorf("userAssets 필드 없음"))
	}

	for _, row := range userAssets.Array() {
		if row.Get("asset").String() == asset {
			return row, nil
		}
	}
	// 자산 행이 없으면 잔고/부채 0으로 취급합니다
	return gjson.Result{}, nil
}

// GetBalance는 마진 계정의 사용 가능 잔고를 조회합니다
func (c *Client) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	row, err := c.marginAsset(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(row.Get("free")), nil
}

// GetDebt는 자산의 미상환 차입금(원금 + 이자)을 조회합니다
func (c *Client) GetDebt(ctx context.Context, asset string) (decimal.Decimal, error) {
	row, err := c.marginAsset(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(row.Get("borrowed")).Add(parseDecimal(row.Get("interest"))), nil
}

// MarketOrder는 시장가 마진 주문을 생성합니다
func (c *Client) MarketOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	order.Type = domain.Market
	order.StopPrice = ""
	return c.placeOrder(ctx, order)
}

// StopOrder는 STOP_LOSS 보호 주문을 생성합니다
func (c *Client) StopOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	if order.StopPrice == "" {
		return nil, c.malformed("place_order", nil, fmt.Errorf("스탑 가격이 비어있습니다"))
	}
	order.Type = domain.StopLoss
	return c.placeOrder(ctx, order)
}

// placeOrder는 새로운 주문을 생성합니다
func (c *Client) placeOrder(ctx context.Context, order domain.OrderRequest) (*domain.OrderResponse, error) {
	params := url.Values{}
	params.Add("symbol", order.Symbol)
	params.Add("side", string(order.Side))
	params.Add("type", string(order.Type))
	params.Add("quantity", order.Quantity)
	params.Add("newOrderRespType", "RESULT")

	if order.Type == domain.StopLoss {
		params.Add("stopPrice", order.StopPrice)
	}
	if order.SideEffect != "" {
		params.Add("sideEffectType", string(order.SideEffect))
	}

	// 클라이언트 주문 ID가 설정되었으면 추가
	if order.ClientOrderID != "" {
		params.Add("newClientOrderId", order.ClientOrderID)
	}

	resp, err := c.doRequest(ctx, "place_order", http.MethodPost, "/sapi/v1/margin/order", params, true)
	if err != nil {
		return nil, fmt.Errorf("주문 실행 실패 [심볼: %s, 타입: %s, 수량: %s]: %w",
			order.Symbol, order.Type, order.Quantity, err)
	}

	result, err := parseOrder(resp)
	if err != nil {
		return nil, c.malformed("place_order", resp, err)
	}
	return result, nil
}

// GetOrder는 주문 상태를 조회합니다
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.OrderResponse, error) {
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("orderId", strconv.FormatInt(orderID, 10))

	resp, err := c.doRequest(ctx, "get_order", http.MethodGet, "/sapi/v1/margin/order", params, true)
	if err != nil {
		return nil, fmt.Errorf("주문 조회 실패 (ID: %d): %w", orderID, err)
	}

	result, err := parseOrder(resp)
	if err != nil {
		return nil, c.malformed("get_order", resp, err)
	}
	return result, nil
}

// CancelOrder는 주문을 취소합니다
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("orderId", strconv.FormatInt(orderID, 10))

	_, err := c.doRequest(ctx, "cancel_order", http.MethodDelete, "/sapi/v1/margin/order", params, true)
	if err != nil {
		return fmt.Errorf("주문 취소 실패 (ID: %d): %w", orderID, err)
	}

	return nil
}

// Borrow는 마진 계정에서 자산을 차입하고 트랜잭션 ID를 반환합니다
func (c *Client) Borrow(ctx context.Context, asset string, amount string) (int64, error) {
	params := url.Values{}
	params.Add("asset", asset)
	params.Add("amount", amount)

	resp, err := c.doRequest(ctx, "borrow", http.MethodPost, "/sapi/v1/margin/loan", params, true)
	if err != nil {
		return 0, fmt.Errorf("차입 실패 [%s %s]: %w", amount, asset, err)
	}

	tranID := gjson.GetBytes(resp, "tranId")
	if !tranID.Exists() {
		return 0, c.malformed("borrow", resp, fmt.Errorf("tranId 필드 없음"))
	}
	return tranID.Int(), nil
}

func parseOrder(body []byte) (*domain.OrderResponse, error) {
	var result struct {
		OrderID             int64  `json:"orderId"`
		Symbol              string `json:"symbol"`
		Status              string `json:"status"`
		ClientOrderID       string `json:"clientOrderId"`
		Side                string `json:"side"`
		Type                string `json:"type"`
		StopPrice           string `json:"stopPrice"`
		OrigQty             string `json:"origQty"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		TransactTime        int64  `json:"transactTime"`
		UpdateTime          int64  `json:"updateTime"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if result.OrderID == 0 {
		return nil, fmt.Errorf("orderId 필드 없음")
	}

	updated := result.UpdateTime
	if updated == 0 {
		updated = result.TransactTime
	}

	return &domain.OrderResponse{
		OrderID:          result.OrderID,
		Symbol:           result.Symbol,
		Status:           domain.OrderStatus(result.Status),
		ClientOrderID:    result.ClientOrderID,
		Side:             domain.OrderSide(result.Side),
		Type:             domain.OrderType(result.Type),
		StopPrice:        decimalOrZero(result.StopPrice),
		OrigQuantity:     decimalOrZero(result.OrigQty),
		ExecutedQuantity: decimalOrZero(result.ExecutedQty),
		CumQuote:         decimalOrZero(result.CummulativeQuoteQty),
		UpdateTime:       time.UnixMilli(updated),
	}, nil
}

func parseDecimal(r gjson.Result) decimal.Decimal {
	return decimalOrZero(r.String())
}

func decimalOrZero(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
