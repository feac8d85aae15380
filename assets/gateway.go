package assets

import "math/big"

// Unique is the narrow capability surface the marketplace needs from a
// collection of one-of-a-kind assets. Implementations are external to the
// engines; they are queried and instructed, never owned.
type Unique interface {
	// OwnerOf resolves the current holder of the asset.
	OwnerOf(assetID uint64) ([20]byte, error)
	// IsApproved reports whether operator may transfer the asset on behalf of
	// owner, either through a per-asset approval or an operator grant.
	IsApproved(owner, operator [20]byte, assetID uint64) bool
	// Transfer moves the asset. It fails loudly when preconditions are unmet.
	Transfer(from, to [20]byte, assetID uint64) error
}

// RoyaltyInfo is the optional royalty capability a collection may advertise.
// Callers probe for it with a type assertion; absence is a valid outcome, not
// an error.
type RoyaltyInfo interface {
	RoyaltyInfo(assetID uint64, salePrice *big.Int) (recipient [20]byte, amount *big.Int, err error)
}

// Fungible is the capability surface for a divisible payment asset. The native
// coin and every enabled token expose the same shape; the zero token address
// denotes the native rail.
type Fungible interface {
	BalanceOf(addr [20]byte) *big.Int
	// Transfer moves amount from one holder to another.
	Transfer(from, to [20]byte, amount *big.Int) error
	// TransferFrom moves amount out of from on behalf of operator, consuming
	// the corresponding allowance.
	TransferFrom(operator, from, to [20]byte, amount *big.Int) error
	// Approve grants spender the right to pull up to amount from owner.
	Approve(owner, spender [20]byte, amount *big.Int) error
}

// Source resolves gateways by identifier. The engines never enumerate
// collections or tokens; they look up exactly what a listing references.
type Source interface {
	Collection(addr [20]byte) (Unique, bool)
	Token(addr [20]byte) (Fungible, bool)
	Native() Fungible
}

// NativeToken is the sentinel payment-asset identifier for the native coin.
var NativeToken = [20]byte{}

// IsNative reports whether the payment-asset identifier denotes the native
// rail.
func IsNative(token [20]byte) bool { return token == NativeToken }
