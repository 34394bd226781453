package entities

import (
	"fmt"
	"strings"
)

// ProductID represents a unique product identifier
type ProductID string

// TrackingMode represents how a product's stock is identified
type TrackingMode int

const (
	TrackingNone TrackingMode = iota
	TrackingLot
	TrackingSerial
)

// String method for TrackingMode enum
func (t TrackingMode) String() string {
	switch t {
	case TrackingNone:
		return "none"
	case TrackingLot:
		return "lot"
	case TrackingSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// ParseTrackingMode parses the textual form of a TrackingMode
func ParseTrackingMode(s string) (TrackingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TrackingNone, nil
	case "lot":
		return TrackingLot, nil
	case "serial":
		return TrackingSerial, nil
	default:
		return TrackingNone, fmt.Errorf("unknown tracking mode: %s", s)
	}
}

// RemovalStrategy tags the rule used to pick stock for a demand
type RemovalStrategy string

const (
	StrategyUnset    RemovalStrategy = ""
	StrategyFIFO     RemovalStrategy = "fifo"
	StrategyWholeLot RemovalStrategy = "whole_lot"
)

// ParseRemovalStrategy parses the textual form of a RemovalStrategy
func ParseRemovalStrategy(s string) (RemovalStrategy, error) {
	switch RemovalStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyUnset:
		return StrategyUnset, nil
	case StrategyFIFO:
		return StrategyFIFO, nil
	case StrategyWholeLot:
		return StrategyWholeLot, nil
	default:
		return StrategyUnset, fmt.Errorf("unknown removal strategy: %s", s)
	}
}

// Product represents a stocked product with its tracking and unit
type Product struct {
	ID            ProductID
	Description   string
	Tracking      TrackingMode
	CategoryID    string
	UnitOfMeasure UnitOfMeasure
}

// NewProduct creates a validated Product
func NewProduct(id ProductID, description string, tracking TrackingMode, categoryID string, uom UnitOfMeasure) (*Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product id cannot be empty")
	}
	if uom.IsZero() {
		return nil, fmt.Errorf("unit of measure cannot be empty for product %s", id)
	}
	return &Product{
		ID:            id,
		Description:   description,
		Tracking:      tracking,
		CategoryID:    categoryID,
		UnitOfMeasure: uom,
	}, nil
}

// IsTracked reports whether stock of the product is identified by lot or serial
func (p Product) IsTracked() bool {
	return p.Tracking == TrackingLot || p.Tracking == TrackingSerial
}

// Category groups products sharing a removal strategy
type Category struct {
	ID              string
	RemovalStrategy RemovalStrategy
}

// Location represents a stock location. Locations form a tree through ParentID.
type Location struct {
	ID              string
	ParentID        string
	RemovalStrategy RemovalStrategy
}
