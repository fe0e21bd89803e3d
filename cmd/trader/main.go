package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	osSignal "os/signal"
	"syscall"

	"github.com/assist-by/odyssey/internal/config"
	"github.com/assist-by/odyssey/internal/domain"
	eBinance "github.com/assist-by/odyssey/internal/exchange/binance"
	"github.com/assist-by/odyssey/internal/ledger"
	"github.com/assist-by/odyssey/internal/logger"
	"github.com/assist-by/odyssey/internal/notification/discord"
	"github.com/assist-by/odyssey/internal/position"
	"github.com/assist-by/odyssey/internal/precision"
	"github.com/assist-by/odyssey/internal/scheduler"
	"github.com/assist-by/odyssey/internal/server"
	"github.com/assist-by/odyssey/internal/signal"
	"github.com/assist-by/odyssey/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// options는 단발성 명령 플래그입니다
type options struct {
	open  string
	close bool
	reset bool
}

func parseFlags(args []string) (options, *flag.FlagSet, error) {
	var opts options
	fs := flag.NewFlagSet("trader", flag.ContinueOnError)
	fs.StringVar(&opts.open, "open", "", "포지션 진입 후 종료 (long 또는 short)")
	fs.BoolVar(&opts.close, "close", false, "현재 포지션 수동 청산 후 종료")
	fs.BoolVar(&opts.reset, "reset", false, "거래소 주문은 그대로 두고 로컬 포지션 상태만 초기화 후 종료")
	err := fs.Parse(args)
	return opts, fs, err
}

func main() {
	opts, _, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	if err := run(opts.open, opts.close, opts.reset); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(openSide string, closeOnly, resetOnly bool) error {
	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("마진 트레이딩 봇 시작 (%s, 청산 전략: %s)", cfg.Trading.Symbol, cfg.Trading.ExitStrategy)

	ctx, stop := osSignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Discord 클라이언트 생성
	discordClient := discord.NewClient(
		cfg.Discord.SignalWebhook,
		cfg.Discord.TradeWebhook,
		cfg.Discord.ErrorWebhook,
		cfg.Discord.InfoWebhook,
		discord.WithTimeout(cfg.Binance.Timeout),
	)

	// 바이낸스 클라이언트 생성
	binanceClient := eBinance.NewClient(
		cfg.Binance.APIKey,
		cfg.Binance.SecretKey,
		eBinance.WithBaseURL(cfg.Binance.BaseURL),
		eBinance.WithTimeout(cfg.Binance.Timeout),
		eBinance.WithRateLimit(cfg.Binance.RateLimit, 5),
	)
	// 바이낸스 서버와 시간 동기화
	if err := binanceClient.SyncTime(ctx); err != nil {
		if nErr := discordClient.SendError(fmt.Errorf("바이낸스 서버 시간 동기화 실패: %w", err)); nErr != nil {
			logger.Warnf("에러 알림 전송 실패: %v", nErr)
		}
		return fmt.Errorf("바이낸스 서버 시간 동기화 실패: %w", err)
	}

	trades, err := ledger.Open(cfg.Storage.LedgerDriver, cfg.Storage.LedgerPath)
	if err != nil {
		return fmt.Errorf("거래 기록 저장소 열기 실패: %w", err)
	}
	defer trades.Close()

	ctrl := position.NewController(
		position.Config{
			Symbol:                    cfg.Trading.Symbol,
			BaseAsset:                 cfg.Trading.BaseAsset,
			QuoteAsset:                cfg.Trading.QuoteAsset,
			PositionSizePercent:       cfg.Trading.PositionSizePercent,
			StopLossPercent:           cfg.Trading.StopLossPercent,
			MinBalance:                cfg.Trading.MinBalance,
			ExitStrategy:              cfg.Trading.ExitStrategy,
			TakeProfitPercent:         cfg.Trading.TakeProfitPercent,
			TrailingActivationPercent: cfg.Trading.TrailingActivation,
			TrailingDistancePercent:   cfg.Trading.TrailingDistance,
			ReentryEnabled:            cfg.Reentry.Enabled,
			MaxReentries:              cfg.Reentry.MaxCount,
			ReentryCooldown:           cfg.ReentryCooldown(),
			ReentryPollAttempts:       cfg.Reentry.PollAttempts,
			ReentryPollInterval:       cfg.Reentry.PollInterval,
			EntrySettleDelay:          cfg.Timing.EntrySettleDelay,
			Monitor: position.MonitorConfig{
				Interval:     cfg.Timing.MonitorInterval,
				ErrorBackoff: cfg.Timing.MonitorErrorBackoff,
				PriceRetry:   cfg.Timing.MonitorPriceRetry,
			},
		},
		binanceClient,
		precision.NewResolver(binanceClient),
		store.NewFileStore(cfg.Storage.StateFile),
		trades,
		position.WithNotifier(discordClient),
	)

	// 단발성 명령 처리
	switch {
	case resetOnly:
		return ctrl.Reset(ctx)
	case closeOnly:
		rec, err := ctrl.Close(ctx, decimal.NullDecimal{}, domain.ReasonManualClose)
		if err != nil {
			return fmt.Errorf("수동 청산 실패: %w", err)
		}
		if rec == nil {
			logger.Infof("열린 포지션이 없습니다")
		}
		return nil
	case openSide != "":
		side := domain.Side(openSide)
		if side != domain.Long && side != domain.Short {
			return fmt.Errorf("-open은 long 또는 short이어야 합니다: %q", openSide)
		}
		if _, err := ctrl.Open(ctx, side); err != nil {
			return fmt.Errorf("포지션 진입 실패: %w", err)
		}
		// 단발성 실행에서는 모니터를 유지하지 않음
		return nil
	}

	if _, err := ctrl.Resume(ctx); err != nil {
		return fmt.Errorf("상태 복구 실패: %w", err)
	}

	dispatcher := signal.NewDispatcher(ctrl, discordClient, cfg.Timing.SignalSettleDelay)
	srv, err := server.NewServer(server.Config{
		Addr:          cfg.HTTP.Addr,
		Passphrase:    cfg.HTTP.WebhookPassphrase,
		DashboardUser: cfg.HTTP.DashboardUser,
		DashboardPass: cfg.HTTP.DashboardPass,
		Signals:       dispatcher,
		Positions:     ctrl,
		Trades:        trades,
	})
	if err != nil {
		return err
	}

	if err := discordClient.SendInfo(fmt.Sprintf("🚀 마진 트레이딩 봇이 시작되었습니다 (%s)", cfg.Trading.Symbol)); err != nil {
		logger.Warnf("시작 알림 전송 실패: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if cfg.Binance.TimeSync > 0 {
		// 서버 시간 주기적 재동기화
		timeSync := scheduler.NewScheduler("시간 동기화", cfg.Binance.TimeSync, scheduler.TaskFunc(binanceClient.SyncTime))
		g.Go(func() error {
			return timeSync.Start(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("시스템 종료 신호 수신")
		return nil
	})

	err = g.Wait()

	// 종료 알림 전송
	if nErr := discordClient.SendInfo("👋 마진 트레이딩 봇이 종료되었습니다."); nErr != nil {
		logger.Warnf("종료 알림 전송 실패: %v", nErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("서버 실행 중 에러 발생: %w", err)
	}
	logger.Infof("프로그램을 종료합니다.")
	return nil
}
