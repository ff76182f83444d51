package domain

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType identifies a marketplace fact.
type EventType string

const (
	EventListed EventType = "LISTED"
	EventSold   EventType = "SOLD"
)

// Event is an outbox record. Seq is assigned by the outbox on append and is
// strictly increasing, which gives per-listing ordering for free.
type Event struct {
	Seq         uint64
	ID          uuid.UUID
	Type        EventType
	ListingID   uint64
	Registry    common.Address
	AssetID     uint64
	Price       *big.Int
	Seller      common.Address
	Buyer       *common.Address
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// NewListedEvent records that l was offered.
func NewListedEvent(l *Listing, at time.Time) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      EventListed,
		ListingID: l.ID,
		Registry:  l.Registry,
		AssetID:   l.AssetID,
		Price:     new(big.Int).Set(l.Price),
		Seller:    l.Seller,
		CreatedAt: at,
	}
}

// NewSoldEvent records that l was bought. l must already be marked sold.
func NewSoldEvent(l *Listing, at time.Time) *Event {
	e := NewListedEvent(l, at)
	e.Type = EventSold
	if l.Buyer != nil {
		b := *l.Buyer
		e.Buyer = &b
	}
	return e
}

// EventPayload is the wire form of an Event shared by every publisher.
type EventPayload struct {
	Seq       uint64    `json:"seq"`
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ListingID uint64    `json:"listing_id"`
	Registry  string    `json:"registry"`
	AssetID   uint64    `json:"asset_id"`
	Price     string    `json:"price"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload renders e for publishing.
func (e *Event) Payload() EventPayload {
	p := EventPayload{
		Seq:       e.Seq,
		ID:        e.ID.String(),
		Type:      e.Type,
		ListingID: e.ListingID,
		Registry:  e.Registry.Hex(),
		AssetID:   e.AssetID,
		Price:     e.Price.String(),
		Seller:    e.Seller.Hex(),
		CreatedAt: e.CreatedAt.UTC(),
	}
	if e.Buyer != nil {
		p.Buyer = e.Buyer.Hex()
	}
	return p
}

// Fields flattens the payload into string pairs for stream transports.
func (p EventPayload) Fields() map[string]interface{} {
	f := map[string]interface{}{
		"seq":        strconv.FormatUint(p.Seq, 10),
		"id":         p.ID,
		"type":       string(p.Type),
		"listing_id": strconv.FormatUint(p.ListingID, 10),
		"registry":   p.Registry,
		"asset_id":   strconv.FormatUint(p.AssetID, 10),
		"price":      p.Price,
		"seller":     p.Seller,
		"created_at": p.CreatedAt.Format(time.RFC3339Nano),
	}
	if p.Buyer != "" {
		f["buyer"] = p.Buyer
	}
	return f
}
