package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityCalculator() *Calculator {
	return NewCalculator(NewConverter(decimal.NewFromInt(1)))
}

func TestQuote(t *testing.T) {
	calc := identityCalculator()

	tests := []struct {
		name         string
		lines        []Line
		discount     int64
		wantSubtotal int64
		wantDiscount int64
		wantTotal    int64
	}{
		{
			name: "no discount",
			lines: []Line{
				{ProductID: "p1", UnitPriceCents: 1000, Quantity: 2},
				{ProductID: "p2", UnitPriceCents: 2500, Quantity: 1},
			},
			wantSubtotal: 4500,
			wantTotal:    4500,
		},
		{
			name: "discount subtracted",
			lines: []Line{
				{ProductID: "p1", UnitPriceCents: 6000, Quantity: 2},
			},
			discount:     2400,
			wantSubtotal: 12000,
			wantDiscount: 2400,
			wantTotal:    9600,
		},
		{
			name: "discount exceeding subtotal clamps total at zero",
			lines: []Line{
				{ProductID: "p1", UnitPriceCents: 500, Quantity: 1},
			},
			discount:     1000,
			wantSubtotal: 500,
			wantDiscount: 500,
			wantTotal:    0,
		},
		{
			name: "negative discount treated as zero",
			lines: []Line{
				{ProductID: "p1", UnitPriceCents: 500, Quantity: 1},
			},
			discount:     -100,
			wantSubtotal: 500,
			wantTotal:    500,
		},
		{
			name:         "empty cart quotes to zero",
			lines:        nil,
			wantSubtotal: 0,
			wantTotal:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := calc.Quote(tt.lines, tt.discount)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubtotal, q.SubtotalCents)
			assert.Equal(t, tt.wantDiscount, q.DiscountCents)
			assert.Equal(t, tt.wantTotal, q.TotalCents)
			assert.Equal(t, q.TotalCents, q.SettlementCents)
		})
	}
}

func TestQuote_InvalidLines(t *testing.T) {
	calc := identityCalculator()

	_, err := calc.Quote([]Line{{ProductID: "p1", UnitPriceCents: 100, Quantity: 0}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity")

	_, err = calc.Quote([]Line{{ProductID: "p1", UnitPriceCents: -5, Quantity: 1}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative unit price")
}

func TestQuote_SettlementConversion(t *testing.T) {
	// 1 display unit = 0.0036 settlement units.
	calc := NewCalculator(NewConverter(decimal.RequireFromString("0.0036")))

	q, err := calc.Quote([]Line{
		{ProductID: "p1", UnitPriceCents: 500000, Quantity: 1},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(500000), q.TotalCents)
	assert.Equal(t, int64(1800), q.SettlementCents)
	assert.True(t, decimal.RequireFromString("0.0036").Equal(q.ExchangeRate))
	assert.False(t, q.BelowMinimum())
}

func TestQuote_SettlementRounding(t *testing.T) {
	conv := NewConverter(decimal.RequireFromString("0.0036"))

	// 139 * 0.0036 = 0.5004 rounds to 1; 138 * 0.0036 = 0.4968 rounds to 0.
	assert.Equal(t, int64(1), conv.ToSettlementCents(139))
	assert.Equal(t, int64(0), conv.ToSettlementCents(138))
}

func TestQuote_BelowMinimum(t *testing.T) {
	calc := identityCalculator()

	q, err := calc.Quote([]Line{{ProductID: "p1", UnitPriceCents: 30, Quantity: 1}}, 0)
	require.NoError(t, err)
	assert.True(t, q.BelowMinimum())

	q, err = calc.Quote([]Line{{ProductID: "p1", UnitPriceCents: 50, Quantity: 1}}, 0)
	require.NoError(t, err)
	assert.False(t, q.BelowMinimum())
}

func TestLineTotalCents(t *testing.T) {
	l := Line{UnitPriceCents: 750, Quantity: 4}
	assert.Equal(t, int64(3000), l.LineTotalCents())
}
