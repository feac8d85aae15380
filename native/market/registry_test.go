package market

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"curio/assets"
	"curio/core/events"
)

type pairRef struct {
	collection [20]byte
	assetID    uint64
}

type mockState struct {
	listings  map[[32]byte]*Listing
	pointers  map[pairRef][32]byte
	index     [][32]byte
	positions map[[32]byte]uint64
	payTokens map[[20]byte]bool
}

func newMockState() *mockState {
	return &mockState{
		listings:  make(map[[32]byte]*Listing),
		pointers:  make(map[pairRef][32]byte),
		positions: make(map[[32]byte]uint64),
		payTokens: make(map[[20]byte]bool),
	}
}

func (m *mockState) ListingPut(l *Listing) error {
	m.listings[l.ID] = l.Clone()
	return nil
}

func (m *mockState) ListingGet(id [32]byte) (*Listing, bool, error) {
	listing, ok := m.listings[id]
	if !ok {
		return nil, false, nil
	}
	return listing.Clone(), true, nil
}

func (m *mockState) ActivePointerSet(collection [20]byte, assetID uint64, id [32]byte) error {
	m.pointers[pairRef{collection, assetID}] = id
	return nil
}

func (m *mockState) ActivePointerGet(collection [20]byte, assetID uint64) ([32]byte, bool, error) {
	id, ok := m.pointers[pairRef{collection, assetID}]
	return id, ok, nil
}

func (m *mockState) ActivePointerClear(collection [20]byte, assetID uint64) error {
	delete(m.pointers, pairRef{collection, assetID})
	return nil
}

func (m *mockState) ActiveIndexLen() (uint64, error) {
	return uint64(len(m.index)), nil
}

func (m *mockState) ActiveIndexGet(pos uint64) ([32]byte, error) {
	if pos >= uint64(len(m.index)) {
		return [32]byte{}, fmt.Errorf("index out of range: %d", pos)
	}
	return m.index[pos], nil
}

func (m *mockState) ActiveIndexSet(pos uint64, id [32]byte) error {
	if pos >= uint64(len(m.index)) {
		return fmt.Errorf("index out of range: %d", pos)
	}
	m.index[pos] = id
	return nil
}

func (m *mockState) ActiveIndexAppend(id [32]byte) error {
	m.index = append(m.index, id)
	return nil
}

func (m *mockState) ActiveIndexTruncate(n uint64) error {
	if n > uint64(len(m.index)) {
		return fmt.Errorf("truncate beyond length: %d", n)
	}
	m.index = m.index[:n]
	return nil
}

func (m *mockState) ActivePositionGet(id [32]byte) (uint64, bool, error) {
	pos, ok := m.positions[id]
	return pos, ok, nil
}

func (m *mockState) ActivePositionSet(id [32]byte, pos uint64) error {
	m.positions[id] = pos
	return nil
}

func (m *mockState) ActivePositionClear(id [32]byte) error {
	delete(m.positions, id)
	return nil
}

func (m *mockState) PaymentTokenEnabled(token [20]byte) bool {
	return m.payTokens[token]
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) lastType() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].EventType()
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

const testCollectionAddr = 0xC0

type registryFixture struct {
	state    *mockState
	hub      *assets.Hub
	col      *assets.Collection
	registry *Registry
	vault    [20]byte
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	hub := assets.NewHub("TEST")
	col := assets.NewCollection("relics")
	hub.RegisterCollection(addr(testCollectionAddr), col)

	state := newMockState()
	vault := addr(0xEE)
	registry := NewRegistry(hub, vault)
	registry.SetState(state)
	registry.SetNowFunc(func() int64 { return 1_000 })
	return &registryFixture{state: state, hub: hub, col: col, registry: registry, vault: vault}
}

func (f *registryFixture) mintAndApprove(t *testing.T, owner [20]byte, assetID uint64) {
	t.Helper()
	if err := f.col.Mint(owner, assetID); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.col.Approve(owner, f.vault, assetID); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)

	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, nil, 100); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("nil price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(0), 100); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero price: expected ErrInvalidPrice, got %v", err)
	}
	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("zero duration: expected ErrInvalidDuration, got %v", err)
	}
	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, addr(0xAB), big.NewInt(10), 100); !errors.Is(err, ErrUnsupportedPayment) {
		t.Fatalf("disabled token: expected ErrUnsupportedPayment, got %v", err)
	}
	if _, err := f.registry.Create(seller, addr(0xFF), 7, assets.NativeToken, big.NewInt(10), 100); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("unknown collection: expected ErrUnknownCollection, got %v", err)
	}
	if _, err := f.registry.Create(addr(2), addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner: expected ErrNotOwner, got %v", err)
	}
}

func TestCreateRequiresVaultApproval(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	if err := f.col.Mint(seller, 7); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
}

func TestCreateSetsDeadlineAndIndex(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)
	emitter := &captureEmitter{}
	f.registry.SetEmitter(emitter)

	listing, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(500), 3_600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if listing.Deadline != 4_600 {
		t.Fatalf("unexpected deadline: %d", listing.Deadline)
	}
	if listing.CreatedAt != 1_000 {
		t.Fatalf("unexpected createdAt: %d", listing.CreatedAt)
	}
	if !listing.Active {
		t.Fatalf("listing should start active")
	}
	count, err := f.registry.ActiveCount()
	if err != nil || count != 1 {
		t.Fatalf("expected 1 active listing, got %d (%v)", count, err)
	}
	if emitter.lastType() != EventTypeListingCreated {
		t.Fatalf("unexpected event: %s", emitter.lastType())
	}
}

func TestCreateRejectsSecondListingForPair(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)

	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(20), 100); !errors.Is(err, ErrAlreadyListed) {
		t.Fatalf("expected ErrAlreadyListed, got %v", err)
	}
}

func TestCancelRestrictedToSeller(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)

	listing, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.registry.Cancel(listing.ID, addr(2)); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("expected ErrNotSeller, got %v", err)
	}
	if err := f.registry.Cancel(listing.ID, seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.registry.Cancel(listing.ID, seller); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double cancel: expected ErrNotActive, got %v", err)
	}
}

func TestSwapRemoveKeepsIndexConsistent(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	ids := make([][32]byte, 0, 3)
	for assetID := uint64(1); assetID <= 3; assetID++ {
		f.mintAndApprove(t, seller, assetID)
		listing, err := f.registry.Create(seller, addr(testCollectionAddr), assetID, assets.NativeToken, big.NewInt(10), 100)
		if err != nil {
			t.Fatalf("create %d: %v", assetID, err)
		}
		ids = append(ids, listing.ID)
	}

	// Remove the middle element: the last element must take its slot.
	if err := f.registry.Cancel(ids[1], seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	slice, err := f.registry.ActiveSlice(0, 10)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(slice) != 2 || slice[0] != ids[0] || slice[1] != ids[2] {
		t.Fatalf("unexpected index after swap-remove: %x", slice)
	}
	pos, ok, err := f.state.ActivePositionGet(ids[2])
	if err != nil || !ok || pos != 1 {
		t.Fatalf("reverse lookup not fixed: pos=%d ok=%v err=%v", pos, ok, err)
	}
	if _, ok, _ := f.state.ActivePositionGet(ids[1]); ok {
		t.Fatalf("cancelled listing kept its position entry")
	}

	// Remove the tail: no swap occurs.
	if err := f.registry.Cancel(ids[2], seller); err != nil {
		t.Fatalf("cancel tail: %v", err)
	}
	slice, err = f.registry.ActiveSlice(0, 10)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(slice) != 1 || slice[0] != ids[0] {
		t.Fatalf("unexpected index after tail removal: %x", slice)
	}
}

func TestActiveSliceClampsRange(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	for assetID := uint64(1); assetID <= 3; assetID++ {
		f.mintAndApprove(t, seller, assetID)
		if _, err := f.registry.Create(seller, addr(testCollectionAddr), assetID, assets.NativeToken, big.NewInt(10), 100); err != nil {
			t.Fatalf("create %d: %v", assetID, err)
		}
	}
	if slice, err := f.registry.ActiveSlice(10, 5); err != nil || len(slice) != 0 {
		t.Fatalf("out-of-range offset should clamp to empty, got %d (%v)", len(slice), err)
	}
	if slice, err := f.registry.ActiveSlice(2, 5); err != nil || len(slice) != 1 {
		t.Fatalf("limit should clamp to remainder, got %d (%v)", len(slice), err)
	}
}

func TestRelistAfterCancel(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)

	listing, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.registry.Cancel(listing.ID, seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// New listing at a later time yields a distinct ID for the same pair.
	f.registry.SetNowFunc(func() int64 { return 2_000 })
	relisted, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(20), 100)
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if relisted.ID == listing.ID {
		t.Fatalf("relisted ID should differ from the cancelled one")
	}
}

func TestCancelAsCurrentOwnerRetiresMatchingListing(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	newOwner := addr(2)
	f.mintAndApprove(t, seller, 7)

	listing, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Out-of-band transfer leaves the stored seller stale.
	if err := f.col.Transfer(seller, newOwner, 7); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := f.registry.CancelAsCurrentOwner(addr(testCollectionAddr), 7, seller); !errors.Is(err, ErrNotTokenOwner) {
		t.Fatalf("old owner should be rejected, got %v", err)
	}
	if err := f.registry.CancelAsCurrentOwner(addr(testCollectionAddr), 7, newOwner); err != nil {
		t.Fatalf("cancel as owner: %v", err)
	}
	got, _, err := f.registry.Get(listing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Fatalf("listing should be retired")
	}
	count, _ := f.registry.ActiveCount()
	if count != 0 {
		t.Fatalf("active count should be 0, got %d", count)
	}
}

func TestCancelAsCurrentOwnerHealsStalePointer(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)
	emitter := &captureEmitter{}
	f.registry.SetEmitter(emitter)

	listing, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Corrupt the pointer target: flag the listing inactive behind the
	// registry's back so the pointer goes stale.
	stored := f.state.listings[listing.ID]
	stored.Active = false

	if err := f.registry.CancelAsCurrentOwner(addr(testCollectionAddr), 7, seller); err != nil {
		t.Fatalf("heal: %v", err)
	}
	if emitter.lastType() != EventTypePointerHealed {
		t.Fatalf("expected pointer-healed event, got %s", emitter.lastType())
	}
	if _, exists, _ := f.state.ActivePointerGet(addr(testCollectionAddr), 7); exists {
		t.Fatalf("stale pointer should be cleared")
	}
	// The pair is free again: a fresh listing must succeed.
	f.registry.SetNowFunc(func() int64 { return 2_000 })
	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100); err != nil {
		t.Fatalf("relist after heal: %v", err)
	}
}

func TestCancelAsCurrentOwnerWithoutPointer(t *testing.T) {
	f := newRegistryFixture(t)
	owner := addr(1)
	if err := f.col.Mint(owner, 7); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.registry.CancelAsCurrentOwner(addr(testCollectionAddr), 7, owner); !errors.Is(err, ErrNoActivePointer) {
		t.Fatalf("expected ErrNoActivePointer, got %v", err)
	}
}

func TestIsValid(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)

	listing, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if valid, _ := f.registry.IsValid(listing.ID); !valid {
		t.Fatalf("fresh listing should be valid")
	}
	// Deadline reached.
	f.registry.SetNowFunc(func() int64 { return listing.Deadline })
	if valid, _ := f.registry.IsValid(listing.ID); valid {
		t.Fatalf("listing at deadline should be invalid")
	}
	// Seller no longer owns the asset.
	f.registry.SetNowFunc(func() int64 { return 1_001 })
	if err := f.col.Transfer(seller, addr(2), 7); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if valid, _ := f.registry.IsValid(listing.ID); valid {
		t.Fatalf("listing without seller ownership should be invalid")
	}
}

type staticPauses struct {
	paused map[string]bool
}

func (p staticPauses) IsPaused(module string) bool { return p.paused[module] }

func TestCreateRespectsPause(t *testing.T) {
	f := newRegistryFixture(t)
	seller := addr(1)
	f.mintAndApprove(t, seller, 7)
	f.registry.SetPauses(staticPauses{paused: map[string]bool{moduleName: true}})

	if _, err := f.registry.Create(seller, addr(testCollectionAddr), 7, assets.NativeToken, big.NewInt(10), 100); err == nil {
		t.Fatalf("expected pause rejection")
	}
}
