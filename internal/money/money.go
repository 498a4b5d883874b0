// Package money provides an exact-arithmetic currency amount.
//
// Amounts are stored as decimals rounded to two places so that price
// comparisons never suffer floating-point drift. The zero value is a valid
// zero amount.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

const precision int32 = 2

// Amount is a non-negative currency value.
type Amount struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Amount { return Amount{} }

// Parse converts a decimal string such as "1250.50" into an Amount.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("amount %q is negative", s)
	}
	return Amount{d: d.Round(precision)}, nil
}

// MustParse is Parse that panics on error. For tests and constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromInt converts a whole number of currency units into an Amount.
func FromInt(n int64) Amount {
	if n < 0 {
		n = 0
	}
	return Amount{d: decimal.NewFromInt(n)}
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b, floored at zero.
func (a Amount) Sub(b Amount) Amount {
	r := a.d.Sub(b.d)
	if r.IsNegative() {
		return Amount{}
	}
	return Amount{d: r}
}

// MulInt returns a * n for a non-negative multiplier.
func (a Amount) MulInt(n int64) Amount {
	if n <= 0 {
		return Amount{}
	}
	return Amount{d: a.d.Mul(decimal.NewFromInt(n))}
}

// Cmp returns -1, 0 or 1 comparing a to b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.d.LessThan(b.d) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.d.GreaterThan(b.d) {
		return a
	}
	return b
}

// String renders the amount with fixed two-decimal precision.
func (a Amount) String() string { return a.d.StringFixed(precision) }

// MarshalJSON encodes the amount as a JSON string, e.g. "1250.50".
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a JSON string or bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText encodes the amount for text-based formats such as YAML.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a decimal string.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer, storing the amount as NUMERIC text.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = FromInt(v)
		return nil
	case float64:
		*a = Amount{d: decimal.NewFromFloat(v).Round(precision)}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}
