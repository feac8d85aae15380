package market

import (
	"encoding/hex"
	"strconv"

	"curio/core/types"
)

const (
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypePointerHealed    = "market.pointer.healed"
	EventTypeSold             = "market.sold"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(l *Listing) marketEvent {
	return marketEvent{evt: newListingEvent(EventTypeListingCreated, l)}
}

// NewListingCancelledEvent returns the canonical payload for a cancelled or
// retired listing.
func NewListingCancelledEvent(l *Listing) marketEvent {
	return marketEvent{evt: newListingEvent(EventTypeListingCancelled, l)}
}

// NewPointerHealedEvent reports the unlinking of a stale active pointer.
func NewPointerHealedEvent(collection [20]byte, assetID uint64, staleID [32]byte) marketEvent {
	attrs := map[string]string{
		"collection": hex.EncodeToString(collection[:]),
		"assetId":    strconv.FormatUint(assetID, 10),
		"staleId":    hex.EncodeToString(staleID[:]),
	}
	return marketEvent{evt: &types.Event{Type: EventTypePointerHealed, Attributes: attrs}}
}

// NewSoldEvent reports a completed sale with its exact value split.
func NewSoldEvent(r *SaleReceipt) marketEvent {
	attrs := make(map[string]string)
	if r != nil {
		attrs["listingId"] = hex.EncodeToString(r.ListingID[:])
		attrs["collection"] = hex.EncodeToString(r.Collection[:])
		attrs["assetId"] = strconv.FormatUint(r.AssetID, 10)
		attrs["seller"] = hex.EncodeToString(r.Seller[:])
		attrs["buyer"] = hex.EncodeToString(r.Buyer[:])
		attrs["payToken"] = hex.EncodeToString(r.PayToken[:])
		attrs["price"] = r.Price.String()
		attrs["platformFee"] = r.PlatformFee.String()
		attrs["royaltyFee"] = r.RoyaltyFee.String()
		attrs["pool"] = r.Pool.String()
		attrs["proceeds"] = r.Proceeds.String()
	}
	return marketEvent{evt: &types.Event{Type: EventTypeSold, Attributes: attrs}}
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(sanitized.ID[:])
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["collection"] = hex.EncodeToString(sanitized.Collection[:])
	attrs["assetId"] = strconv.FormatUint(sanitized.AssetID, 10)
	attrs["payToken"] = hex.EncodeToString(sanitized.PayToken[:])
	attrs["price"] = sanitized.Price.String()
	attrs["deadline"] = strconv.FormatInt(sanitized.Deadline, 10)
	attrs["active"] = strconv.FormatBool(sanitized.Active)
	return &types.Event{Type: eventType, Attributes: attrs}
}
