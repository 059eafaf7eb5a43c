package orders

import (
	"fmt"
	"strings"
)

// Direction is the side of an order. The zero value means no direction
// was given and is rejected by order construction.
type Direction int8

const (
	Long Direction = iota + 1
	Short
)

func (d Direction) IsValid() bool {
	return d == Long || d == Short
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Label is the human wording used when rendering an order
func (d Direction) Label() string {
	switch d {
	case Long:
		return "buy"
	case Short:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseDirection accepts LONG/SHORT and BUY/SELL in any case
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", ErrInvalidConfiguration, s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("%w: direction %d", ErrInvalidConfiguration, int8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
