package commissions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/instrument"
	"github.com/ksred/klear-exec/internal/orders"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculators(t *testing.T) {
	tests := []struct {
		name  string
		calc  Calculator
		size  int64
		price string
		want  string
	}{
		{"per share", PerShare{Rate: dec("0.005")}, 200, "13.37", "1"},
		{"zero", Zero{}, 200, "13.37", "0"},
		{"percentage", Percentage{Rate: dec("0.001")}, 100, "50", "5"},
		{"percentage keeps precision", Percentage{Rate: dec("0.0003")}, 7, "10.01", "0.021021"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.calc.Calculate(tt.size, dec(tt.price))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestForReport(t *testing.T) {
	stock, err := instrument.NewStock("ABC", instrument.NYSE(), instrument.USD())
	require.NoError(t, err)
	o, err := orders.NewMarketOrder(1, stock, orders.Long, 500)
	require.NoError(t, err)
	r, err := execution.NewReport(o, nil)
	require.NoError(t, err)

	for _, size := range []int64{100, 250} {
		f, err := execution.NewFill(orders.Long, size, dec("20"), time.Now())
		require.NoError(t, err)
		r.AddFill(f)
	}

	total := ForReport(PerShare{Rate: dec("0.01")}, r)
	assert.True(t, dec("3.5").Equal(total), "got %s", total)
	assert.True(t, ForReport(Zero{}, r).IsZero())
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig("", decimal.Zero)
	require.NoError(t, err)
	assert.IsType(t, Zero{}, c)

	c, err = FromConfig("PER_SHARE", dec("0.01"))
	require.NoError(t, err)
	assert.IsType(t, PerShare{}, c)

	c, err = FromConfig("percentage", dec("0.01"))
	require.NoError(t, err)
	assert.IsType(t, Percentage{}, c)

	_, err = FromConfig("tiered", dec("0.01"))
	assert.ErrorIs(t, err, ErrUnknownModel)
}
