// Package server는 웹훅 수신과 운영용 HTTP 엔드포인트를 제공합니다.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/logger"
	"github.com/assist-by/odyssey/internal/metrics"
	"github.com/assist-by/odyssey/internal/signal"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SignalHandler는 웹훅 신호를 처리합니다
type SignalHandler interface {
	Handle(ctx context.Context, action signal.Action) (signal.Outcome, error)
}

// PositionService는 운영 엔드포인트가 사용하는 컨트롤러 기능입니다
type PositionService interface {
	Current() (*domain.Position, error)
	Close(ctx context.Context, exitPrice decimal.NullDecimal, reason domain.ExitReason) (*domain.TradeRecord, error)
	Reset(ctx context.Context) error
	MonitorRunning() bool
}

// TradeLister는 거래 기록을 조회합니다
type TradeLister interface {
	List(ctx context.Context) ([]domain.TradeRecord, error)
}

// Config는 HTTP 서버 의존성입니다
type Config struct {
	Addr           string
	Passphrase     string // 비어있으면 웹훅 인증 생략
	DashboardUser  string
	DashboardPass  string // 비어있으면 운영 엔드포인트 비활성화
	RequestTimeout time.Duration

	Signals   SignalHandler
	Positions PositionService
	Trades    TradeLister
}

// Server는 gin 기반 HTTP 서버입니다
type Server struct {
	addr    string
	router  *gin.Engine
	cfg     Config
	timeout time.Duration
}

// NewServer는 라우터를 구성합니다
func NewServer(cfg Config) (*Server, error) {
	if cfg.Signals == nil || cfg.Positions == nil || cfg.Trades == nil {
		return nil, errors.New("http 서버에 신호 처리기, 컨트롤러, 거래 기록이 모두 필요합니다")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":5001"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Minute
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		addr:    cfg.Addr,
		router:  router,
		cfg:     cfg,
		timeout: cfg.RequestTimeout,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.POST("/webhook", s.handleWebhook)

	if cfg.DashboardPass != "" {
		admin := router.Group("/", gin.BasicAuth(gin.Accounts{cfg.DashboardUser: cfg.DashboardPass}))
		admin.GET("/status", s.handleStatus)
		admin.GET("/trades", s.handleTrades)
		admin.POST("/close", s.handleClose)
		admin.POST("/reset", s.handleReset)
	} else {
		logger.Warnf("DASHBOARD_PASS 미설정: 운영 엔드포인트가 비활성화됩니다")
	}

	return s, nil
}

// Handler는 HTTP 핸들러를 반환합니다
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr는 수신 주소를 반환합니다
func (s *Server) Addr() string {
	return s.addr
}

// Start는 ctx가 취소되거나 에러가 날 때까지 HTTP 서버를 실행합니다
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP 서버 시작: %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// operationContext는 클라이언트 연결 종료와 무관하게 제한 시간 동안 유지되는 컨텍스트를 만듭니다
func (s *Server) operationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.timeout)
}

// requestLogger는 요청을 디버그 로그로 남깁니다
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
