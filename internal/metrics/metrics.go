// Package metrics는 컨트롤러 동작을 Prometheus 지표로 노출합니다.
//
//   - odyssey_orders_total{type,side}         발행된 주문 수
//   - odyssey_exits_total{reason,side}        청산 사유별 종료 수
//   - odyssey_position_open                   포지션 보유 여부 (0/1)
//   - odyssey_realized_pnl                    누적 실현 손익 (호가 자산)
//   - odyssey_critical_failures_total{op}     수동 조치가 필요한 실패 수
//   - odyssey_exchange_errors_total{op,kind}  거래소 호출 실패 수
//   - odyssey_signals_total{action,outcome}   웹훅 신호 처리 결과
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odyssey_orders_total",
			Help: "Orders placed",
		},
		[]string{"type", "side"},
	)

	// side는 닫힌 포지션의 방향 (long|short)
	mtxExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odyssey_exits_total",
			Help: "Position exits split by reason and side",
		},
		[]string{"reason", "side"},
	)

	mtxPositionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "odyssey_position_open",
			Help: "1 while a position is open",
		},
	)

	mtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "odyssey_realized_pnl",
			Help: "Cumulative realized PnL in quote asset since process start",
		},
	)

	mtxCritical = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odyssey_critical_failures_total",
			Help: "Failures that require operator reconciliation",
		},
		[]string{"op"},
	)

	mtxExchangeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odyssey_exchange_errors_total",
			Help: "Exchange call failures by operation and kind",
		},
		[]string{"op", "kind"},
	)

	mtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odyssey_signals_total",
			Help: "Webhook signals by action and outcome",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		mtxOrders,
		mtxExits,
		mtxPositionOpen,
		mtxRealizedPnL,
		mtxCritical,
		mtxExchangeErrors,
		mtxSignals,
	)
}

// IncOrder는 발행된 주문을 기록합니다
func IncOrder(orderType, side string) {
	mtxOrders.WithLabelValues(orderType, side).Inc()
}

// RecordExit은 포지션 종료와 실현 손익을 기록합니다
func RecordExit(reason, side string, pnl float64) {
	mtxExits.WithLabelValues(reason, side).Inc()
	mtxRealizedPnL.Add(pnl)
}

// SetPositionOpen은 포지션 보유 게이지를 갱신합니다
func SetPositionOpen(open bool) {
	if open {
		mtxPositionOpen.Set(1)
		return
	}
	mtxPositionOpen.Set(0)
}

func IncCritical(op string) {
	mtxCritical.WithLabelValues(op).Inc()
}

func IncExchangeError(op, kind string) {
	mtxExchangeErrors.WithLabelValues(op, kind).Inc()
}

func IncSignal(action, outcome string) {
	mtxSignals.WithLabelValues(action, outcome).Inc()
}

// Handler는 /metrics 엔드포인트 핸들러를 반환합니다
func Handler() http.Handler {
	return promhttp.Handler()
}
