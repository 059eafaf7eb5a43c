package settings

import "sync/atomic"

// DefaultPricePrecision is the number of fractional digits kept when a
// report divides total value by total size.
const DefaultPricePrecision int32 = 8

var pricePrecision atomic.Int32

func init() {
	pricePrecision.Store(DefaultPricePrecision)
}

// Provider supplies the decimal precision used for derived prices
type Provider interface {
	PricePrecision() int32
}

// PricePrecision returns the process-wide price precision
func PricePrecision() int32 {
	return pricePrecision.Load()
}

// SetPricePrecision replaces the process-wide price precision.
// Negative values are clamped to zero.
func SetPricePrecision(p int32) {
	if p < 0 {
		p = 0
	}
	pricePrecision.Store(p)
}

type global struct{}

func (global) PricePrecision() int32 { return PricePrecision() }

// Global reads the process-wide precision on every call
var Global Provider = global{}

// Static is a fixed precision, independent of process configuration
type Static struct {
	Precision int32
}

// PricePrecision implements Provider
func (s Static) PricePrecision() int32 { return s.Precision }
