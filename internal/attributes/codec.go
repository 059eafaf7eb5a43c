package attributes

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedKind = errors.New("attributes: unsupported kind")

// Encode renders a built-in property as its kind and a text value.
// Custom property types cannot be encoded.
func Encode(p Property) (Kind, string, error) {
	switch v := p.(type) {
	case Value[string]:
		return KindString, v.Get(), nil
	case Value[int64]:
		return KindInt, strconv.FormatInt(v.Get(), 10), nil
	case Value[decimal.Decimal]:
		return KindDecimal, v.Get().String(), nil
	case Value[bool]:
		return KindBool, strconv.FormatBool(v.Get()), nil
	case Value[time.Time]:
		return KindTime, v.Get().UTC().Format(time.RFC3339Nano), nil
	case nil:
		return "", "", ErrNilProperty
	default:
		return "", "", fmt.Errorf("%w: %s (%T)", ErrUnsupportedKind, p.Type(), p)
	}
}

// Decode parses a text value of the given kind back into a property
func Decode(name string, kind Kind, text string) (Property, error) {
	switch kind {
	case KindString:
		return String(name, text), nil
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("attributes: decode %s: %w", name, err)
		}
		return Int(name, n), nil
	case KindDecimal:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("attributes: decode %s: %w", name, err)
		}
		return Decimal(name, d), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("attributes: decode %s: %w", name, err)
		}
		return Bool(name, b), nil
	case KindTime:
		ts, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return nil, fmt.Errorf("attributes: decode %s: %w", name, err)
		}
		return Time(name, ts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}
