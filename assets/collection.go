package assets

import (
	"errors"
	"math/big"
)

var (
	ErrAssetNotFound    = errors.New("assets: asset not found")
	ErrNotAssetOwner    = errors.New("assets: caller is not the asset owner")
	ErrTransferDenied   = errors.New("assets: transfer not authorized")
	ErrAssetExists      = errors.New("assets: asset already minted")
	ErrRoyaltyBpsRange  = errors.New("assets: royalty bps out of range")
	errWrongFromAddress = errors.New("assets: from address does not own asset")
)

// Collection is an in-memory unique-asset book implementing the Unique
// gateway. Per-asset approvals are cleared on transfer; operator grants
// persist until revoked.
type Collection struct {
	name      string
	owners    map[uint64][20]byte
	approved  map[uint64][20]byte
	operators map[[20]byte]map[[20]byte]bool
}

// NewCollection constructs an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{
		name:      name,
		owners:    make(map[uint64][20]byte),
		approved:  make(map[uint64][20]byte),
		operators: make(map[[20]byte]map[[20]byte]bool),
	}
}

// Name returns the display name of the collection.
func (c *Collection) Name() string { return c.name }

// Mint records a newly issued asset for the owner.
func (c *Collection) Mint(owner [20]byte, assetID uint64) error {
	if _, ok := c.owners[assetID]; ok {
		return ErrAssetExists
	}
	c.owners[assetID] = owner
	return nil
}

// OwnerOf implements the Unique interface.
func (c *Collection) OwnerOf(assetID uint64) ([20]byte, error) {
	owner, ok := c.owners[assetID]
	if !ok {
		return [20]byte{}, ErrAssetNotFound
	}
	return owner, nil
}

// Approve grants operator the right to transfer a single asset. Only the
// current owner may grant it.
func (c *Collection) Approve(caller, operator [20]byte, assetID uint64) error {
	owner, ok := c.owners[assetID]
	if !ok {
		return ErrAssetNotFound
	}
	if owner != caller {
		return ErrNotAssetOwner
	}
	c.approved[assetID] = operator
	return nil
}

// SetOperator grants or revokes a blanket transfer right over all of the
// caller's assets in this collection.
func (c *Collection) SetOperator(caller, operator [20]byte, allowed bool) {
	grants, ok := c.operators[caller]
	if !ok {
		grants = make(map[[20]byte]bool)
		c.operators[caller] = grants
	}
	grants[operator] = allowed
}

// IsApproved implements the Unique interface.
func (c *Collection) IsApproved(owner, operator [20]byte, assetID uint64) bool {
	if owner == operator {
		return true
	}
	if approved, ok := c.approved[assetID]; ok && approved == operator {
		return true
	}
	if grants, ok := c.operators[owner]; ok && grants[operator] {
		return true
	}
	return false
}

// Transfer implements the Unique interface. The caller has already been
// authorized by the engine; the collection still refuses a stale from address.
func (c *Collection) Transfer(from, to [20]byte, assetID uint64) error {
	owner, ok := c.owners[assetID]
	if !ok {
		return ErrAssetNotFound
	}
	if owner != from {
		return errWrongFromAddress
	}
	c.owners[assetID] = to
	delete(c.approved, assetID)
	return nil
}

func (c *Collection) copyState() any {
	owners := make(map[uint64][20]byte, len(c.owners))
	for id, owner := range c.owners {
		owners[id] = owner
	}
	approved := make(map[uint64][20]byte, len(c.approved))
	for id, operator := range c.approved {
		approved[id] = operator
	}
	operators := make(map[[20]byte]map[[20]byte]bool, len(c.operators))
	for owner, grants := range c.operators {
		cloned := make(map[[20]byte]bool, len(grants))
		for operator, allowed := range grants {
			cloned[operator] = allowed
		}
		operators[owner] = cloned
	}
	return &Collection{name: c.name, owners: owners, approved: approved, operators: operators}
}

func (c *Collection) setState(state any) {
	restored, ok := state.(*Collection)
	if !ok {
		return
	}
	c.owners = restored.owners
	c.approved = restored.approved
	c.operators = restored.operators
}

// RoyaltyCollection augments a collection with the optional royalty
// capability. Collections without it simply never satisfy the RoyaltyInfo
// probe.
type RoyaltyCollection struct {
	*Collection
	recipient [20]byte
	bps       uint32
}

// NewRoyaltyCollection wraps a collection with a flat royalty schedule.
func NewRoyaltyCollection(base *Collection, recipient [20]byte, bps uint32) (*RoyaltyCollection, error) {
	if bps > 10_000 {
		return nil, ErrRoyaltyBpsRange
	}
	return &RoyaltyCollection{Collection: base, recipient: recipient, bps: bps}, nil
}

// RoyaltyInfo implements the RoyaltyInfo capability.
func (c *RoyaltyCollection) RoyaltyInfo(assetID uint64, salePrice *big.Int) ([20]byte, *big.Int, error) {
	if _, ok := c.owners[assetID]; !ok {
		return [20]byte{}, nil, ErrAssetNotFound
	}
	if salePrice == nil || salePrice.Sign() <= 0 {
		return c.recipient, big.NewInt(0), nil
	}
	amount := new(big.Int).Mul(salePrice, big.NewInt(int64(c.bps)))
	amount.Div(amount, big.NewInt(10_000))
	return c.recipient, amount, nil
}
