package events

import (
	"github.com/vsinha/wholelot/pkg/domain/entities"
)

const (
	LotReservedEvent        = "lot.reserved"
	LotClaimShortEvent      = "lot.claim_short"
	LotUnrecordedEvent      = "lot.unrecorded"
	DemandStateChangedEvent = "demand.state_changed"
	DemandDeferredEvent     = "demand.deferred"
	ShortageIdentifiedEvent = "shortage.identified"
)

// AllocationEventTypes lists every event the allocators publish
var AllocationEventTypes = []string{
	LotReservedEvent,
	LotClaimShortEvent,
	LotUnrecordedEvent,
	DemandStateChangedEvent,
	DemandDeferredEvent,
	ShortageIdentifiedEvent,
}

// LotReserved is published for every allocation record created against a lot
type LotReserved struct {
	Record entities.AllocationRecord `json:"record"`
}

// LotClaimShort is published when a claim returned less than the whole lot
type LotClaimShort struct {
	DemandID  string             `json:"demand_id"`
	ProductID entities.ProductID `json:"product_id"`
	Location  string             `json:"location"`
	LotID     entities.LotID     `json:"lot_id"`
	Requested entities.Quantity  `json:"requested"`
	Reserved  entities.Quantity  `json:"reserved"`
}

// LotUnrecorded is published when stock was claimed for a demand but no
// allocation record could be stored for it. The quantity stays held in
// inventory and must be released or recorded by hand.
type LotUnrecorded struct {
	DemandID  string             `json:"demand_id"`
	ProductID entities.ProductID `json:"product_id"`
	Location  string             `json:"location"`
	LotID     entities.LotID     `json:"lot_id"`
	Reserved  entities.Quantity  `json:"reserved"`
	Error     string             `json:"error"`
}

type DemandStateChanged struct {
	DemandID   string                    `json:"demand_id"`
	From       entities.ReservationState `json:"from"`
	To         entities.ReservationState `json:"to"`
	Transition entities.Transition       `json:"transition"`
}

type DemandDeferred struct {
	DemandID  string   `json:"demand_id"`
	OriginIDs []string `json:"origin_ids"`
}

// ShortageIdentified reports a demand left below its need after allocation,
// pending a manual lot selection.
type ShortageIdentified struct {
	DemandID  string             `json:"demand_id"`
	ProductID entities.ProductID `json:"product_id"`
	Location  string             `json:"location"`
	Need      entities.Quantity  `json:"need"`
	Reserved  entities.Quantity  `json:"reserved"`
	Shortfall entities.Quantity  `json:"shortfall"`
}
