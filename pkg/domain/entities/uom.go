package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UnitOfMeasure represents a unit quantities are expressed in.
// Factor is the number of this unit per reference unit of its category.
type UnitOfMeasure struct {
	Name     string
	Rounding Rounding
	Factor   decimal.Decimal
}

// NewUnitOfMeasure creates a validated UnitOfMeasure
func NewUnitOfMeasure(name string, rounding, factor decimal.Decimal) (UnitOfMeasure, error) {
	if name == "" {
		return UnitOfMeasure{}, fmt.Errorf("unit of measure name cannot be empty")
	}
	if rounding.IsNegative() {
		return UnitOfMeasure{}, fmt.Errorf("rounding cannot be negative, got %s", rounding)
	}
	if !factor.IsPositive() {
		return UnitOfMeasure{}, fmt.Errorf("factor must be positive, got %s", factor)
	}
	return UnitOfMeasure{Name: name, Rounding: NewRounding(rounding), Factor: factor}, nil
}

// ReferenceUnit creates a unit with factor 1 and the given rounding
func ReferenceUnit(name string, rounding decimal.Decimal) UnitOfMeasure {
	return UnitOfMeasure{Name: name, Rounding: NewRounding(rounding), Factor: decimal.NewFromInt(1)}
}

// IsZero reports whether the unit is unset
func (u UnitOfMeasure) IsZero() bool {
	return u.Name == ""
}

// Convert expresses qty, given in u, in the target unit.
// The result is rounded half-up to the target unit's precision.
func (u UnitOfMeasure) Convert(qty Quantity, to UnitOfMeasure) (Quantity, error) {
	if u.Name == to.Name {
		return qty, nil
	}
	if !u.Factor.IsPositive() || !to.Factor.IsPositive() {
		return decimal.Zero, fmt.Errorf("cannot convert %s to %s: factors must be positive", u.Name, to.Name)
	}
	amount := qty.Div(u.Factor).Mul(to.Factor)
	return to.Rounding.Round(amount), nil
}
