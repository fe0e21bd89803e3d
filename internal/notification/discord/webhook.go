package discord

import (
	"fmt"
	"time"

	"github.com/assist-by/odyssey/internal/domain"
	"github.com/assist-by/odyssey/internal/notification"
)

var _ notification.Notifier = (*Client)(nil)

// SendSignal은 신호 처리 결과를 전송합니다
func (c *Client) SendSignal(info notification.SignalInfo) error {
	desc := fmt.Sprintf("**액션**: %s\n**결과**: %s", info.Action, info.Outcome)
	if info.Side != "" {
		desc += fmt.Sprintf("\n**방향**: %s", info.Side)
	}
	color := notification.GetColorForSide(info.Side)
	if info.Err != nil {
		desc += fmt.Sprintf("\n```%v```", info.Err)
		color = ColorWarning
	}

	return c.sendToWebhook(c.signalWebhook, newEmbed("웹훅 신호 수신", desc, color, time.Now()).message())
}

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := newEmbed("에러 발생", fmt.Sprintf("```%v```", err), ColorError, time.Now())
	return c.sendToWebhook(c.errorWebhook, embed.message())
}

// SendCritical은 수동 조치가 필요한 실패를 전송합니다
func (c *Client) SendCritical(op string, err error) error {
	embed := newEmbed("🚨 CRITICAL: 수동 확인 필요", fmt.Sprintf("**작업**: %s\n```%v```", op, err), ColorError, time.Now())

	msg := embed.message()
	msg.Content = "@here"
	return c.sendToWebhook(c.errorWebhook, msg)
}

// SendInfo는 일반 정보 알림을 전송합니다
func (c *Client) SendInfo(message string) error {
	return c.sendToWebhook(c.infoWebhook, newEmbed("", message, ColorInfo, time.Now()).message())
}

// SendTradeInfo는 포지션 진입 정보를 전송합니다
func (c *Client) SendTradeInfo(info notification.TradeInfo) error {
	embed := newEmbed(
		fmt.Sprintf("포지션 진입: %s %s", info.Symbol, info.Side),
		fmt.Sprintf("**수량**: %s\n**진입가**: %s\n**투입 금액**: %s\n**손절가**: %s",
			info.Quantity, info.EntryPrice, info.Investment.StringFixed(2), info.StopLoss),
		notification.GetColorForSide(info.Side),
		time.Now(),
	)

	switch info.ExitStrategy {
	case domain.TrailingStopStrategy:
		embed.AddField("청산 전략", "트레일링 스탑", true).
			AddField("활성화 가격", info.Activation.String(), true)
	default:
		embed.AddField("청산 전략", "고정 익절", true).
			AddField("목표가", info.TakeProfit.String(), true)
	}
	if !info.Protected {
		embed.AddField("⚠️ 보호 주문", "손절 주문 생성 실패", false)
	}
	if info.ReentryCount > 0 {
		embed.AddField("재진입", fmt.Sprintf("%d회차", info.ReentryCount), true)
	}

	return c.sendToWebhook(c.tradeWebhook, embed.message())
}

// SendTradeResult는 포지션 청산 결과를 전송합니다
func (c *Client) SendTradeResult(record domain.TradeRecord) error {
	emoji, color := "🔴", ColorError
	if record.IsWin() {
		emoji, color = "🟢", ColorSuccess
	}

	embed := newEmbed(
		fmt.Sprintf("%s 포지션 청산: %s %s", emoji, record.Symbol, record.Side),
		fmt.Sprintf("**사유**: %s\n**수량**: %s\n**진입가**: %s\n**청산가**: %s\n**손익**: %s",
			record.ExitReason, record.Quantity, record.EntryPrice, record.ExitPrice, record.PnL.StringFixed(4)),
		color,
		record.ExitTime,
	)

	return c.sendToWebhook(c.tradeWebhook, embed.message())
}
