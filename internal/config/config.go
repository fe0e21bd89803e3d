package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	// 바이낸스 API 설정
	Binance struct {
		APIKey    string        `envconfig:"BINANCE_API_KEY" required:"true"`
		SecretKey string        `envconfig:"BINANCE_SECRET_KEY" required:"true"`
		BaseURL   string        `envconfig:"BINANCE_BASE_URL" default:"https://api.binance.com"`
		Timeout   time.Duration `envconfig:"BINANCE_TIMEOUT" default:"10s"`
		RateLimit float64       `envconfig:"BINANCE_RATE_LIMIT" default:"10"`
		TimeSync  time.Duration `envconfig:"BINANCE_TIME_SYNC_INTERVAL" default:"1h"`
	}

	// 디스코드 웹훅 설정 (비어있으면 해당 채널 알림 생략)
	Discord struct {
		SignalWebhook string `envconfig:"DISCORD_SIGNAL_WEBHOOK"`
		TradeWebhook  string `envconfig:"DISCORD_TRADE_WEBHOOK"`
		ErrorWebhook  string `envconfig:"DISCORD_ERROR_WEBHOOK"`
		InfoWebhook   string `envconfig:"DISCORD_INFO_WEBHOOK"`
	}

	// 거래 설정
	Trading struct {
		Symbol              string              `envconfig:"TRADE_SYMBOL" default:"WLDUSDC"`
		QuoteAsset          string              `envconfig:"QUOTE_ASSET" default:"USDC"`
		BaseAsset           string              `envconfig:"BASE_ASSET"`
		PositionSizePercent decimal.Decimal     `envconfig:"POSITION_SIZE_PERCENT" default:"50"`
		StopLossPercent     decimal.Decimal     `envconfig:"SL_PERCENT" default:"2"`
		MinBalance          decimal.Decimal     `envconfig:"MIN_BALANCE" default:"10"`
		ExitStrategy        domain.ExitStrategy `envconfig:"EXIT_STRATEGY" default:"take_profit"`
		TakeProfitPercent   decimal.Decimal     `envconfig:"TP_PERCENT" default:"5"`
		TrailingActivation  decimal.Decimal     `envconfig:"TS_ACTIVATION_PERCENT" default:"2"`
		TrailingDistance    decimal.Decimal     `envconfig:"TS_DISTANCE_PERCENT" default:"1"`
	}

	// 재진입 설정
	Reentry struct {
		Enabled         bool          `envconfig:"REENTRY_ENABLED" default:"false"`
		MaxCount        int           `envconfig:"REENTRY_MAX_COUNT" default:"0"`
		CooldownSeconds int           `envconfig:"REENTRY_COOLDOWN_SECONDS" default:"5"`
		PollAttempts    int           `envconfig:"REENTRY_POLL_ATTEMPTS" default:"5"`
		PollInterval    time.Duration `envconfig:"REENTRY_POLL_INTERVAL" default:"2s"`
	}

	// 모니터 및 지연 설정
	Timing struct {
		MonitorInterval     time.Duration `envconfig:"MONITOR_INTERVAL" default:"5s"`
		MonitorErrorBackoff time.Duration `envconfig:"MONITOR_ERROR_BACKOFF" default:"30s"`
		MonitorPriceRetry   time.Duration `envconfig:"MONITOR_PRICE_RETRY" default:"10s"`
		EntrySettleDelay    time.Duration `envconfig:"ENTRY_SETTLE_DELAY" default:"2s"`
		SignalSettleDelay   time.Duration `envconfig:"SIGNAL_SETTLE_DELAY" default:"3s"`
	}

	// 저장소 설정
	Storage struct {
		StateFile    string `envconfig:"STATE_FILE" default:"state.json"`
		LedgerDriver string `envconfig:"LEDGER_DRIVER" default:"csv"`
		LedgerPath   string `envconfig:"LEDGER_PATH" default:"trades_history.csv"`
	}

	// HTTP 서버 설정
	HTTP struct {
		Addr              string `envconfig:"HTTP_ADDR" default:":5001"`
		WebhookPassphrase string `envconfig:"WEBHOOK_PASSPHRASE"`
		DashboardUser     string `envconfig:"DASHBOARD_USER" default:"admin"`
		DashboardPass     string `envconfig:"DASHBOARD_PASS" required:"true"`
	}

	// 애플리케이션 설정
	App struct {
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	}
}

// ReentryCooldown은 재진입 대기 시간입니다
func (c *Config) ReentryCooldown() time.Duration {
	return time.Duration(c.Reentry.CooldownSeconds) * time.Second
}

func percentInRange(name string, v decimal.Decimal) error {
	if !v.IsPositive() || v.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s는 0 초과 100 이하이어야 합니다 (현재 %s)", name, v)
	}
	return nil
}

// ValidateConfig는 설정이 유효한지 확인하고 파생값을 채웁니다.
func ValidateConfig(cfg *Config) error {
	t := &cfg.Trading
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	t.QuoteAsset = strings.ToUpper(strings.TrimSpace(t.QuoteAsset))
	t.BaseAsset = strings.ToUpper(strings.TrimSpace(t.BaseAsset))

	if t.Symbol == "" || t.QuoteAsset == "" {
		return fmt.Errorf("TRADE_SYMBOL과 QUOTE_ASSET은 비어있을 수 없습니다")
	}
	if t.BaseAsset == "" {
		base, ok := strings.CutSuffix(t.Symbol, t.QuoteAsset)
		if !ok || base == "" {
			return fmt.Errorf("심볼 %s에서 기준 자산을 추출할 수 없습니다, BASE_ASSET을 지정하세요", t.Symbol)
		}
		t.BaseAsset = base
	}

	if err := errors.Join(
		percentInRange("POSITION_SIZE_PERCENT", t.PositionSizePercent),
		percentInRange("SL_PERCENT", t.StopLossPercent),
		percentInRange("TP_PERCENT", t.TakeProfitPercent),
		percentInRange("TS_ACTIVATION_PERCENT", t.TrailingActivation),
		percentInRange("TS_DISTANCE_PERCENT", t.TrailingDistance),
	); err != nil {
		return err
	}

	if !t.ExitStrategy.Valid() {
		return fmt.Errorf("EXIT_STRATEGY는 take_profit 또는 trailing_stop이어야 합니다 (현재 %q)", t.ExitStrategy)
	}
	if t.MinBalance.IsNegative() {
		return fmt.Errorf("MIN_BALANCE는 음수일 수 없습니다")
	}

	if cfg.Reentry.MaxCount < 0 || cfg.Reentry.CooldownSeconds < 0 {
		return fmt.Errorf("REENTRY_MAX_COUNT와 REENTRY_COOLDOWN_SECONDS는 음수일 수 없습니다")
	}
	if cfg.Reentry.Enabled && cfg.Reentry.PollAttempts < 1 {
		return fmt.Errorf("REENTRY_POLL_ATTEMPTS는 1 이상이어야 합니다")
	}

	if cfg.Timing.MonitorInterval < time.Second {
		return fmt.Errorf("MONITOR_INTERVAL은 1초 이상이어야 합니다")
	}

	switch cfg.Storage.LedgerDriver {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("LEDGER_DRIVER는 csv 또는 sqlite이어야 합니다 (현재 %q)", cfg.Storage.LedgerDriver)
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일이 없으면 환경변수만 사용
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}
