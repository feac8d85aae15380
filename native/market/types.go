package market

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"curio/assets"
)

// Listing captures a seller's fixed-price offer to sell one unique asset. The
// identifier is the keccak256 hash of the seller, collection, asset and
// creation instant, giving deterministic IDs with negligible collision
// probability; uniqueness is assumed, not proven per call.
type Listing struct {
	ID         [32]byte
	Seller     [20]byte
	Collection [20]byte
	AssetID    uint64
	PayToken   [20]byte
	Price      *big.Int
	Deadline   int64
	CreatedAt  int64
	Active     bool
}

// ComputeListingID derives the canonical listing identifier.
func ComputeListingID(seller, collection [20]byte, assetID uint64, createdAt int64) [32]byte {
	var asset [8]byte
	binary.BigEndian.PutUint64(asset[:], assetID)
	var created [8]byte
	binary.BigEndian.PutUint64(created[:], uint64(createdAt))
	return ethcrypto.Keccak256Hash(seller[:], collection[:], asset[:], created[:])
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates and normalises a listing definition, returning a
// cloned instance with a non-nil price. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("listing price must be non-negative")
	}
	if clone.Deadline < clone.CreatedAt {
		return nil, fmt.Errorf("listing deadline before creation time")
	}
	return clone, nil
}

// SaleReceipt reports the exact value split of a completed sale.
type SaleReceipt struct {
	ListingID   [32]byte
	Collection  [20]byte
	AssetID     uint64
	Seller      [20]byte
	Buyer       [20]byte
	PayToken    [20]byte
	Price       *big.Int
	PlatformFee *big.Int
	RoyaltyFee  *big.Int
	Pool        *big.Int
	Proceeds    *big.Int
}

// NativePayment reports whether the receipt settled over the native rail.
func (r *SaleReceipt) NativePayment() bool {
	if r == nil {
		return false
	}
	return assets.IsNative(r.PayToken)
}
