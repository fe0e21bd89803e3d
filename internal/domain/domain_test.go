package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRealizedPnL(t *testing.T) {
	tests := []struct {
		name  string
		side  Side
		entry string
		exit  string
		qty   string
		want  string
	}{
		{"롱 수익", Long, "100", "110", "2", "20"},
		{"숏 수익", Short, "100", "90", "2", "20"},
		{"롱 손실", Long, "100", "90", "2", "-20"},
		{"숏 손실", Short, "100", "105", "2", "-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RealizedPnL(tt.side, d(tt.entry), d(tt.exit), d(tt.qty))
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestDecimals(t *testing.T) {
	assert.Equal(t, int32(1), Decimals(d("0.10000000")))
	assert.Equal(t, int32(2), Decimals(d("0.01")))
	assert.Equal(t, int32(8), Decimals(d("0.00000001")))
	assert.Equal(t, int32(0), Decimals(d("1.00000000")))
	assert.Equal(t, int32(0), Decimals(decimal.Zero))
}

func TestPrecisionProfile_Quantize(t *testing.T) {
	p := PrecisionProfile{Symbol: "WLDUSDC", TickSize: d("0.00100000"), StepSize: d("0.10000000")}

	tests := []struct {
		name    string
		qty     string
		wantQty string
		price   string
		wantPx  string
	}{
		{"정확히 단위에 맞음", "5", "5.0", "9.8", "9.800"},
		{"내림", "5.09", "5.0", "9.8049", "9.804"},
		{"경계 바로 아래", "4.9999999", "4.9", "1.0009999", "1.000"},
		{"작은 값", "0.05", "0.0", "0.0004", "0.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantQty, p.FormatQuantity(d(tt.qty)))
			assert.Equal(t, tt.wantPx, p.FormatPrice(d(tt.price)))
			assert.True(t, p.QuantizeQuantity(d(tt.qty)).LessThanOrEqual(d(tt.qty)))
		})
	}
}

func TestPrecisionProfile_CeilQuantity(t *testing.T) {
	p := PrecisionProfile{TickSize: d("0.01"), StepSize: d("0.1")}

	assert.Equal(t, "5.1", p.CeilQuantity(d("5.0003")).StringFixed(1))
	assert.Equal(t, "5.0", p.CeilQuantity(d("5")).StringFixed(1))
}

func TestSide(t *testing.T) {
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Buy, Long.EntryOrderSide())
	assert.Equal(t, Sell, Long.ExitOrderSide())
	assert.Equal(t, Sell, Short.EntryOrderSide())
	assert.Equal(t, Buy, Short.ExitOrderSide())

	_, err := ParseSide("flat")
	assert.Error(t, err)
}

func TestOrderResponse_AvgFillPrice(t *testing.T) {
	resp := &OrderResponse{ExecutedQuantity: d("5"), CumQuote: d("50.5")}
	px, ok := resp.AvgFillPrice()
	assert.True(t, ok)
	assert.True(t, px.Equal(d("10.1")))

	_, ok = (&OrderResponse{}).AvgFillPrice()
	assert.False(t, ok)
}
