package orders

import (
	"github.com/shopspring/decimal"

	"github.com/ksred/klear-exec/internal/instrument"
)

const (
	TypeMarket    = "market"
	TypeLimit     = "limit"
	TypeStop      = "stop"
	TypeStopLimit = "stop limit"
)

// MarketOrder executes at whatever price is available
type MarketOrder struct {
	*Base
}

func NewMarketOrder(id int64, contract instrument.Contract, direction Direction, size int64) (*MarketOrder, error) {
	b, err := New(id, contract, TypeMarket, direction, size)
	if err != nil {
		return nil, err
	}
	return &MarketOrder{Base: b}, nil
}

func (o *MarketOrder) String() string { return Describe(o) }

// LimitOrder executes at LimitPrice or better
type LimitOrder struct {
	*Base
	limitPrice decimal.Decimal
}

func NewLimitOrder(id int64, contract instrument.Contract, direction Direction, size int64, limitPrice decimal.Decimal) (*LimitOrder, error) {
	b, err := New(id, contract, TypeLimit, direction, size)
	if err != nil {
		return nil, err
	}
	return &LimitOrder{Base: b, limitPrice: limitPrice}, nil
}

func (o *LimitOrder) LimitPrice() decimal.Decimal { return o.limitPrice }

func (o *LimitOrder) String() string {
	return Describe(o) + " at " + o.limitPrice.String()
}

// StopOrder becomes a market order once StopPrice trades
type StopOrder struct {
	*Base
	stopPrice decimal.Decimal
}

func NewStopOrder(id int64, contract instrument.Contract, direction Direction, size int64, stopPrice decimal.Decimal) (*StopOrder, error) {
	b, err := New(id, contract, TypeStop, direction, size)
	if err != nil {
		return nil, err
	}
	return &StopOrder{Base: b, stopPrice: stopPrice}, nil
}

func (o *StopOrder) StopPrice() decimal.Decimal { return o.stopPrice }

func (o *StopOrder) String() string {
	return Describe(o) + " at " + o.stopPrice.String()
}

// StopLimitOrder becomes a limit order once StopPrice trades
type StopLimitOrder struct {
	*Base
	stopPrice  decimal.Decimal
	limitPrice decimal.Decimal
}

func NewStopLimitOrder(id int64, contract instrument.Contract, direction Direction, size int64, stopPrice, limitPrice decimal.Decimal) (*StopLimitOrder, error) {
	b, err := New(id, contract, TypeStopLimit, direction, size)
	if err != nil {
		return nil, err
	}
	return &StopLimitOrder{Base: b, stopPrice: stopPrice, limitPrice: limitPrice}, nil
}

func (o *StopLimitOrder) StopPrice() decimal.Decimal  { return o.stopPrice }
func (o *StopLimitOrder) LimitPrice() decimal.Decimal { return o.limitPrice }

func (o *StopLimitOrder) String() string {
	return Describe(o) + " at " + o.limitPrice.String() + " when " + o.stopPrice.String() + " is reached"
}

// Prices returns the stop and limit price an order carries, if any
func Prices(o Order) (stop, limit *decimal.Decimal) {
	switch v := o.(type) {
	case *StopOrder:
		p := v.StopPrice()
		return &p, nil
	case *LimitOrder:
		p := v.LimitPrice()
		return nil, &p
	case *StopLimitOrder:
		s, l := v.StopPrice(), v.LimitPrice()
		return &s, &l
	}
	return nil, nil
}
