package entities

import (
	"fmt"
	"strings"
)

// ReservationState represents how much of a demand is reserved
type ReservationState int

const (
	Unfulfilled ReservationState = iota
	Waiting
	PartiallyReserved
	FullyReserved
	Done
)

// String method for ReservationState enum
func (s ReservationState) String() string {
	switch s {
	case Unfulfilled:
		return "unfulfilled"
	case Waiting:
		return "waiting"
	case PartiallyReserved:
		return "partially_reserved"
	case FullyReserved:
		return "fully_reserved"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name
func (s ReservationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseReservationState parses the textual form of a ReservationState
func ParseReservationState(s string) (ReservationState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unfulfilled":
		return Unfulfilled, nil
	case "waiting":
		return Waiting, nil
	case "partially_reserved":
		return PartiallyReserved, nil
	case "fully_reserved":
		return FullyReserved, nil
	case "done":
		return Done, nil
	default:
		return Unfulfilled, fmt.Errorf("unknown reservation state: %s", s)
	}
}

// Transition represents what a single allocation call did to a demand's state
type Transition int

const (
	NoProgress Transition = iota
	ReservedPartially
	ReservedFully
)

// String method for Transition enum
func (t Transition) String() string {
	switch t {
	case NoProgress:
		return "no_progress"
	case ReservedPartially:
		return "reserved_partially"
	case ReservedFully:
		return "reserved_fully"
	default:
		return "unknown"
	}
}

// MarshalText renders the transition by name
func (t Transition) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Demand represents an outstanding need for a product at a location.
// Quantity is expressed in UnitOfMeasure, or in the product unit when it is unset.
type Demand struct {
	ID             string
	ProductID      ProductID
	Location       string
	Quantity       Quantity
	UnitOfMeasure  UnitOfMeasure
	State          ReservationState
	OriginIDs      []string
	DestinationIDs []string
}

// NewDemand creates a validated Demand in the Unfulfilled state
func NewDemand(id string, productID ProductID, location string, quantity Quantity) (*Demand, error) {
	if id == "" {
		return nil, fmt.Errorf("demand id cannot be empty")
	}
	if productID == "" {
		return nil, fmt.Errorf("product id cannot be empty")
	}
	if location == "" {
		return nil, fmt.Errorf("location cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("quantity cannot be negative, got %s", quantity)
	}

	return &Demand{
		ID:        id,
		ProductID: productID,
		Location:  location,
		Quantity:  quantity,
		State:     Unfulfilled,
	}, nil
}

// IsAssignable reports whether the demand may still receive reservations
func (d Demand) IsAssignable() bool {
	switch d.State {
	case Unfulfilled, Waiting, PartiallyReserved:
		return true
	default:
		return false
	}
}

// HasOrigins reports whether the demand is fed by upstream demands
func (d Demand) HasOrigins() bool {
	return len(d.OriginIDs) > 0
}

// QuantityIn returns the demanded quantity expressed in the given product unit
func (d Demand) QuantityIn(productUnit UnitOfMeasure) (Quantity, error) {
	if d.UnitOfMeasure.IsZero() {
		return d.Quantity, nil
	}
	return d.UnitOfMeasure.Convert(d.Quantity, productUnit)
}
