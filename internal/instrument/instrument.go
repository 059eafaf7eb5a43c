package instrument

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidContract = errors.New("instrument: invalid contract")

// Contract identifies a tradable instrument. Implementations must be
// comparable so that == answers whether two contracts are the same.
type Contract interface {
	Symbol() string
}

// Currency is an ISO 4217 currency code
type Currency struct {
	Code string `json:"code"`
}

func USD() Currency { return Currency{Code: "USD"} }
func EUR() Currency { return Currency{Code: "EUR"} }
func JPY() Currency { return Currency{Code: "JPY"} }

// Exchange is the venue a contract is listed on
type Exchange struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func Nasdaq() Exchange { return Exchange{Code: "XNAS", Name: "NASDAQ"} }
func NYSE() Exchange   { return Exchange{Code: "XNYS", Name: "New York Stock Exchange"} }
func LSE() Exchange    { return Exchange{Code: "XLON", Name: "London Stock Exchange"} }

// ExchangeByCode resolves a known venue from its MIC
func ExchangeByCode(code string) (Exchange, bool) {
	for _, e := range []Exchange{Nasdaq(), NYSE(), LSE()} {
		if strings.EqualFold(e.Code, code) {
			return e, true
		}
	}
	return Exchange{}, false
}

// Stock is an equity contract
type Stock struct {
	symbol   string
	exchange Exchange
	currency Currency
}

// NewStock validates and builds a stock contract
func NewStock(symbol string, exchange Exchange, currency Currency) (Stock, error) {
	symbol = strings.TrimSpace(symbol)
	switch {
	case symbol == "":
		return Stock{}, fmt.Errorf("%w: empty symbol", ErrInvalidContract)
	case exchange.Code == "":
		return Stock{}, fmt.Errorf("%w: missing exchange for %s", ErrInvalidContract, symbol)
	case currency.Code == "":
		return Stock{}, fmt.Errorf("%w: missing currency for %s", ErrInvalidContract, symbol)
	}
	return Stock{symbol: symbol, exchange: exchange, currency: currency}, nil
}

func (s Stock) Symbol() string     { return s.symbol }
func (s Stock) Exchange() Exchange { return s.exchange }
func (s Stock) Currency() Currency { return s.currency }

func (s Stock) String() string {
	return s.symbol + "@" + s.exchange.Code + " (" + s.currency.Code + ")"
}
