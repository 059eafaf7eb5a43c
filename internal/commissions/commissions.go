package commissions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ksred/klear-exec/internal/execution"
)

var ErrUnknownModel = errors.New("commissions: unknown model")

// Model names accepted by FromConfig
const (
	ModelZero       = "zero"
	ModelPerShare   = "per_share"
	ModelPercentage = "percentage"
)

// Calculator prices the commission charged on one fill
type Calculator interface {
	Calculate(size int64, price decimal.Decimal) decimal.Decimal
}

// PerShare charges a flat rate per unit traded
type PerShare struct {
	Rate decimal.Decimal
}

func (c PerShare) Calculate(size int64, _ decimal.Decimal) decimal.Decimal {
	return c.Rate.Mul(decimal.NewFromInt(size))
}

// Zero never charges
type Zero struct{}

func (Zero) Calculate(int64, decimal.Decimal) decimal.Decimal { return decimal.Zero }

// Percentage charges a fraction of the traded value, e.g. 0.001 for 0.1%
type Percentage struct {
	Rate decimal.Decimal
}

func (c Percentage) Calculate(size int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(size)).Mul(c.Rate)
}

// ForFill applies calc to a single fill
func ForFill(calc Calculator, f execution.Fill) decimal.Decimal {
	return calc.Calculate(f.Size(), f.Price())
}

// ForReport sums the commission over every fill in the report
func ForReport(calc Calculator, r *execution.Report) decimal.Decimal {
	total := decimal.Zero
	for _, f := range r.Fills() {
		total = total.Add(ForFill(calc, f))
	}
	return total
}

// FromConfig builds a calculator from a model name and rate
func FromConfig(model string, rate decimal.Decimal) (Calculator, error) {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case "", ModelZero:
		return Zero{}, nil
	case ModelPerShare:
		return PerShare{Rate: rate}, nil
	case ModelPercentage:
		return Percentage{Rate: rate}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
}
