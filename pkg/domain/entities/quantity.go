package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity represents a stock quantity in a product's unit of measure
type Quantity = decimal.Decimal

// Qty builds a Quantity from an integer value
func Qty(v int64) Quantity {
	return decimal.NewFromInt(v)
}

// ParseQuantity parses a decimal string such as "12.5" into a Quantity
func ParseQuantity(s string) (Quantity, error) {
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return q, nil
}

// MustQuantity parses a decimal string and panics on failure. Intended for fixtures.
func MustQuantity(s string) Quantity {
	return decimal.RequireFromString(s)
}

// SumQuantities adds quantities together
func SumQuantities(values ...Quantity) Quantity {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Rounding is the precision every quantity comparison is made against.
// Two quantities are equal when their difference rounds to zero at this precision.
type Rounding struct {
	Precision decimal.Decimal
}

// DefaultRounding is the precision used when a unit of measure does not define one
var DefaultRounding = NewRounding(decimal.New(1, -2))

// NewRounding creates a Rounding for the given precision (e.g. 0.01)
func NewRounding(precision decimal.Decimal) Rounding {
	return Rounding{Precision: precision}
}

// Round rounds v half away from zero to a multiple of the precision.
// A non-positive precision leaves v untouched.
func (r Rounding) Round(v Quantity) Quantity {
	if !r.Precision.IsPositive() {
		return v
	}
	return v.Div(r.Precision).Round(0).Mul(r.Precision)
}

// IsZero reports whether v is zero at this precision
func (r Rounding) IsZero(v Quantity) bool {
	return r.Round(v).IsZero()
}

// Compare returns 0 when a and b are equal at this precision, -1 when a < b, 1 when a > b
func (r Rounding) Compare(a, b Quantity) int {
	diff := a.Sub(b)
	if r.IsZero(diff) {
		return 0
	}
	return diff.Sign()
}

// Equal reports whether a and b are equal at this precision
func (r Rounding) Equal(a, b Quantity) bool {
	return r.Compare(a, b) == 0
}

// IsPositive reports whether v is strictly greater than zero at this precision
func (r Rounding) IsPositive(v Quantity) bool {
	return r.Compare(v, decimal.Zero) > 0
}

// String returns the precision as text
func (r Rounding) String() string {
	return r.Precision.String()
}
