package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"curio/assets"
	"curio/core/events"
	nativecommon "curio/native/common"
)

const moduleName = "market"

var errNilState = errors.New("market: state not configured")

// registryState is the persistence surface the listing registry requires. The
// active index is an ordered, gap-free sequence of listing IDs with a reverse
// lookup from ID to position; the (collection, asset) pointer enforces the
// one-active-listing invariant.
type registryState interface {
	ListingPut(*Listing) error
	ListingGet(id [32]byte) (*Listing, bool, error)
	ActivePointerSet(collection [20]byte, assetID uint64, id [32]byte) error
	ActivePointerGet(collection [20]byte, assetID uint64) ([32]byte, bool, error)
	ActivePointerClear(collection [20]byte, assetID uint64) error
	ActiveIndexLen() (uint64, error)
	ActiveIndexGet(pos uint64) ([32]byte, error)
	ActiveIndexSet(pos uint64, id [32]byte) error
	ActiveIndexAppend(id [32]byte) error
	ActiveIndexTruncate(n uint64) error
	ActivePositionGet(id [32]byte) (uint64, bool, error)
	ActivePositionSet(id [32]byte, pos uint64) error
	ActivePositionClear(id [32]byte) error
	PaymentTokenEnabled(token [20]byte) bool
}

// Registry owns the catalogue of sale offers and the active-listing index.
type Registry struct {
	state   registryState
	source  assets.Source
	vault   [20]byte
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewRegistry constructs a registry. The vault is the operator address sellers
// must approve so the settlement engine can move sold assets.
func NewRegistry(source assets.Source, vault [20]byte) *Registry {
	return &Registry{
		source:  source,
		vault:   vault,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses configures the pause view gating mutating entry points.
func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

// SetNowFunc overrides the time source, primarily used in tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(evt)
}

func (r *Registry) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

// Create registers a new active listing for the (collection, asset) pair.
func (r *Registry) Create(seller [20]byte, collection [20]byte, assetID uint64, payToken [20]byte, price *big.Int, duration int64) (*Listing, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !assets.IsNative(payToken) && !r.state.PaymentTokenEnabled(payToken) {
		return nil, ErrUnsupportedPayment
	}
	col, ok := r.source.Collection(collection)
	if !ok {
		return nil, ErrUnknownCollection
	}
	owner, err := col.OwnerOf(assetID)
	if err != nil {
		return nil, fmt.Errorf("market: resolve owner: %w", err)
	}
	if owner != seller {
		return nil, ErrNotOwner
	}
	if !col.IsApproved(seller, r.vault, assetID) {
		return nil, ErrNotApproved
	}
	if _, exists, err := r.state.ActivePointerGet(collection, assetID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyListed
	}
	now := r.now()
	listing := &Listing{
		ID:         ComputeListingID(seller, collection, assetID, now),
		Seller:     seller,
		Collection: collection,
		AssetID:    assetID,
		PayToken:   payToken,
		Price:      new(big.Int).Set(price),
		Deadline:   now + duration,
		CreatedAt:  now,
		Active:     true,
	}
	if err := r.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if err := r.state.ActivePointerSet(collection, assetID, listing.ID); err != nil {
		return nil, err
	}
	pos, err := r.state.ActiveIndexLen()
	if err != nil {
		return nil, err
	}
	if err := r.state.ActiveIndexAppend(listing.ID); err != nil {
		return nil, err
	}
	if err := r.state.ActivePositionSet(listing.ID, pos); err != nil {
		return nil, err
	}
	r.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// Cancel deactivates the listing on behalf of its stored seller.
func (r *Registry) Cancel(listingID [32]byte, caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	listing, err := r.loadListing(listingID)
	if err != nil {
		return err
	}
	if !listing.Active {
		return ErrNotActive
	}
	if listing.Seller != caller {
		return ErrNotSeller
	}
	if err := r.retire(listing); err != nil {
		return err
	}
	r.emit(NewListingCancelledEvent(listing))
	return nil
}

// CancelAsCurrentOwner deactivates whatever listing the (collection, asset)
// pointer targets, authorized by current ownership of the underlying asset.
// It covers out-of-band transfers that leave the stored seller stale. When the
// pointer targets a listing that no longer matches the pair or is already
// inactive, only the pointer is unlinked; the target listing is untouched so
// this path can never remove a different active listing by accident.
func (r *Registry) CancelAsCurrentOwner(collection [20]byte, assetID uint64, caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	col, ok := r.source.Collection(collection)
	if !ok {
		return ErrUnknownCollection
	}
	owner, err := col.OwnerOf(assetID)
	if err != nil {
		return fmt.Errorf("market: resolve owner: %w", err)
	}
	if owner != caller {
		return ErrNotTokenOwner
	}
	id, exists, err := r.state.ActivePointerGet(collection, assetID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoActivePointer
	}
	listing, found, err := r.state.ListingGet(id)
	if err != nil {
		return err
	}
	if !found || !listing.Active || listing.Collection != collection || listing.AssetID != assetID {
		// Stale pointer: unlink it without touching the target listing.
		if err := r.state.ActivePointerClear(collection, assetID); err != nil {
			return err
		}
		r.emit(NewPointerHealedEvent(collection, assetID, id))
		return nil
	}
	if err := r.retire(listing); err != nil {
		return err
	}
	r.emit(NewListingCancelledEvent(listing))
	return nil
}

// retire runs the swap-remove algorithm shared by every removal path: flag
// the listing inactive, clear the pair pointer, overwrite the listing's index
// slot with the last element, fix that element's reverse lookup, shrink the
// index. O(1) at the cost of not preserving insertion order.
func (r *Registry) retire(listing *Listing) error {
	listing.Active = false
	if err := r.state.ListingPut(listing); err != nil {
		return err
	}
	if err := r.state.ActivePointerClear(listing.Collection, listing.AssetID); err != nil {
		return err
	}
	pos, ok, err := r.state.ActivePositionGet(listing.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("market: active position missing for listing %x", listing.ID)
	}
	length, err := r.state.ActiveIndexLen()
	if err != nil {
		return err
	}
	if length == 0 {
		return fmt.Errorf("market: active index empty during removal")
	}
	lastID, err := r.state.ActiveIndexGet(length - 1)
	if err != nil {
		return err
	}
	if lastID != listing.ID {
		if err := r.state.ActiveIndexSet(pos, lastID); err != nil {
			return err
		}
		if err := r.state.ActivePositionSet(lastID, pos); err != nil {
			return err
		}
	}
	if err := r.state.ActiveIndexTruncate(length - 1); err != nil {
		return err
	}
	return r.state.ActivePositionClear(listing.ID)
}

// ActiveCount reports the number of currently active listings.
func (r *Registry) ActiveCount() (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	return r.state.ActiveIndexLen()
}

// ActiveSlice returns a page of active listing IDs. Offset and limit are
// clamped to the available range; out-of-range requests return an empty slice
// rather than an error.
func (r *Registry) ActiveSlice(offset, limit uint64) ([][32]byte, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	total, err := r.state.ActiveIndexLen()
	if err != nil {
		return nil, err
	}
	if offset > total {
		offset = total
	}
	if remaining := total - offset; limit > remaining {
		limit = remaining
	}
	ids := make([][32]byte, 0, limit)
	for i := uint64(0); i < limit; i++ {
		id, err := r.state.ActiveIndexGet(offset + i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListByCollection returns the active listings for a collection. The scan is
// linear over the active index, which is bounded by the active-listing count
// rather than historical volume.
func (r *Registry) ListByCollection(collection [20]byte) ([]*Listing, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	total, err := r.state.ActiveIndexLen()
	if err != nil {
		return nil, err
	}
	var out []*Listing
	for i := uint64(0); i < total; i++ {
		id, err := r.state.ActiveIndexGet(i)
		if err != nil {
			return nil, err
		}
		listing, found, err := r.state.ListingGet(id)
		if err != nil {
			return nil, err
		}
		if !found || listing.Collection != collection {
			continue
		}
		out = append(out, listing.Clone())
	}
	return out, nil
}

// Get performs a point lookup by listing ID.
func (r *Registry) Get(listingID [32]byte) (*Listing, bool, error) {
	if r == nil || r.state == nil {
		return nil, false, errNilState
	}
	listing, found, err := r.state.ListingGet(listingID)
	if err != nil || !found {
		return nil, false, err
	}
	return listing.Clone(), true, nil
}

// IsValid reports whether a listing is active, unexpired and still backed by
// the seller's ownership of the asset.
func (r *Registry) IsValid(listingID [32]byte) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNilState
	}
	listing, found, err := r.state.ListingGet(listingID)
	if err != nil {
		return false, err
	}
	if !found || !listing.Active {
		return false, nil
	}
	if r.now() >= listing.Deadline {
		return false, nil
	}
	col, ok := r.source.Collection(listing.Collection)
	if !ok {
		return false, nil
	}
	owner, err := col.OwnerOf(listing.AssetID)
	if err != nil {
		return false, nil
	}
	return owner == listing.Seller, nil
}

func (r *Registry) loadListing(id [32]byte) (*Listing, error) {
	listing, found, err := r.state.ListingGet(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrListingNotFound
	}
	return listing, nil
}
