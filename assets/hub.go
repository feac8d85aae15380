package assets

// stateCopier is satisfied by the in-memory ledgers so the hub can journal
// them around an operation. Gateways registered from outside the package that
// do not implement it are skipped; a host that provides its own gateways is
// expected to provide its own atomicity as well.
type stateCopier interface {
	copyState() any
	setState(any)
}

// Hub is the default Source implementation: a registry of in-memory gateways
// keyed by address, with snapshot/restore support so the node can revert
// gateway effects when an operation aborts midway.
type Hub struct {
	native      *TokenLedger
	tokens      map[[20]byte]Fungible
	collections map[[20]byte]Unique
}

// NewHub constructs a hub with a native coin ledger already in place.
func NewHub(nativeSymbol string) *Hub {
	return &Hub{
		native:      NewTokenLedger(nativeSymbol),
		tokens:      make(map[[20]byte]Fungible),
		collections: make(map[[20]byte]Unique),
	}
}

// RegisterToken installs a fungible gateway under the given address.
func (h *Hub) RegisterToken(addr [20]byte, token Fungible) {
	h.tokens[addr] = token
}

// RegisterCollection installs a unique-asset gateway under the given address.
func (h *Hub) RegisterCollection(addr [20]byte, col Unique) {
	h.collections[addr] = col
}

// Collection implements the Source interface.
func (h *Hub) Collection(addr [20]byte) (Unique, bool) {
	col, ok := h.collections[addr]
	return col, ok
}

// Token implements the Source interface.
func (h *Hub) Token(addr [20]byte) (Fungible, bool) {
	tok, ok := h.tokens[addr]
	return tok, ok
}

// Native implements the Source interface.
func (h *Hub) Native() Fungible { return h.native }

// NativeLedger exposes the concrete native ledger for minting in genesis and
// tests.
func (h *Hub) NativeLedger() *TokenLedger { return h.native }

// HubSnapshot is an opaque memento of every journaled gateway.
type HubSnapshot struct {
	native      any
	tokens      map[[20]byte]any
	collections map[[20]byte]any
}

// Snapshot captures the state of every journaled gateway.
func (h *Hub) Snapshot() *HubSnapshot {
	snap := &HubSnapshot{
		native:      h.native.copyState(),
		tokens:      make(map[[20]byte]any),
		collections: make(map[[20]byte]any),
	}
	for addr, tok := range h.tokens {
		if copier, ok := tok.(stateCopier); ok {
			snap.tokens[addr] = copier.copyState()
		}
	}
	for addr, col := range h.collections {
		if copier, ok := col.(stateCopier); ok {
			snap.collections[addr] = copier.copyState()
		}
	}
	return snap
}

// Restore rolls every journaled gateway back to the snapshot.
func (h *Hub) Restore(snap *HubSnapshot) {
	if snap == nil {
		return
	}
	h.native.setState(snap.native)
	for addr, state := range snap.tokens {
		if copier, ok := h.tokens[addr].(stateCopier); ok {
			copier.setState(state)
		}
	}
	for addr, state := range snap.collections {
		if copier, ok := h.collections[addr].(stateCopier); ok {
			copier.setState(state)
		}
	}
}
