package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ksred/klear-exec/internal/orders"
)

var ErrNonPositiveSize = errors.New("execution: fill size must be positive")

// Fill is one immutable partial or complete execution of an order
type Fill struct {
	direction orders.Direction
	size      int64
	price     decimal.Decimal
	time      time.Time
}

// NewFill builds a fill. Price is accepted as given.
func NewFill(direction orders.Direction, size int64, price decimal.Decimal, at time.Time) (Fill, error) {
	if size <= 0 {
		return Fill{}, fmt.Errorf("%w: got %d", ErrNonPositiveSize, size)
	}
	return Fill{direction: direction, size: size, price: price, time: at}, nil
}

func (f Fill) Direction() orders.Direction { return f.direction }
func (f Fill) Size() int64                 { return f.size }
func (f Fill) Price() decimal.Decimal      { return f.price }
func (f Fill) Time() time.Time             { return f.time }

// Value is price multiplied by size, unrounded
func (f Fill) Value() decimal.Decimal {
	return f.price.Mul(decimal.NewFromInt(f.size))
}

// AveragePrice of a single fill is its price
func (f Fill) AveragePrice() decimal.Decimal { return f.price }

func (f Fill) String() string {
	return fmt.Sprintf("%s %d @ %s", f.direction.Label(), f.size, f.price.String())
}
