package market

import (
	"fmt"
	"math/big"
	"time"

	"curio/assets"
	"curio/core/events"
	nativecommon "curio/native/common"
)

// BpsDenominator is the percentage scale used across the marketplace:
// values are hundredths of a percent, 10_000 = 100%.
const BpsDenominator = 10_000

// Incentives is the pool-splitter surface the settlement engine forwards to.
// A nil engine disables pool forwarding entirely; the pool share then stays
// with the seller.
type Incentives interface {
	// PoolBps reports the slice of each sale withheld for the collection.
	PoolBps(collection [20]byte) uint32
	// Vault is the account pooled funds are delivered to.
	Vault() [20]byte
	// Settle distributes a pool amount already delivered (native rail) or
	// approved for pull (token rail) by payer.
	Settle(collection [20]byte, payer, buyer, seller [20]byte, token [20]byte, pool *big.Int) error
}

// Engine executes purchases: it validates the listing, computes the
// fee/royalty/pool split, moves value across one of the two payment rails,
// forwards the pool, transfers the asset and retires the listing. Every
// failure aborts the entire operation; the node reverts all state effects.
type Engine struct {
	reg         *Registry
	source      assets.Source
	vault       [20]byte
	feeBps      uint32
	feeTreasury [20]byte
	incentives  Incentives
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	reentry     *nativecommon.ReentryGuard
	nowFn       func() int64
}

// NewEngine constructs a settlement engine bound to the listing registry. The
// vault address holds funds transiently during settlement.
func NewEngine(reg *Registry, source assets.Source, vault [20]byte) *Engine {
	return &Engine{
		reg:     reg,
		source:  source,
		vault:   vault,
		emitter: events.NoopEmitter{},
		reentry: &nativecommon.ReentryGuard{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the pause view and propagates it to the registry.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
	if e.reg != nil {
		e.reg.SetPauses(p)
	}
}

// SetReentryGuard installs a shared re-entrancy guard. The node wires one
// guard across every engine performing external transfers so a callback from
// a gateway cannot enter any of them.
func (e *Engine) SetReentryGuard(g *nativecommon.ReentryGuard) {
	if g == nil {
		return
	}
	e.reentry = g
}

// SetPlatformFee configures the platform fee in bps and its recipient.
func (e *Engine) SetPlatformFee(bps uint32, treasury [20]byte) error {
	if bps > BpsDenominator {
		return ErrFeeBpsRange
	}
	e.feeBps = bps
	e.feeTreasury = treasury
	return nil
}

// PlatformFeeBps reports the configured platform fee.
func (e *Engine) PlatformFeeBps() uint32 { return e.feeBps }

// SetIncentives wires the pool splitter. A nil splitter disables forwarding.
func (e *Engine) SetIncentives(inc Incentives) { e.incentives = inc }

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// applyBps computes amount * bps / 10_000 with truncating division.
func applyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Div(out, big.NewInt(BpsDenominator))
}

// Buy settles a purchase of the listing by caller. On the native rail
// supplied is the value sent along with the call and must cover the price;
// any overpayment is refunded. On the token rail supplied must be zero and
// the price is pulled from the buyer's prior approval.
//
// The value split holds exactly for all valid inputs:
//
//	platformFee + royaltyFee + pool(if forwarded) + sellerProceeds == price
//
// with the truncation remainder accruing to the seller.
func (e *Engine) Buy(listingID [32]byte, caller [20]byte, supplied *big.Int) (*SaleReceipt, error) {
	if e == nil || e.reg == nil || e.reg.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.reentry.Enter(); err != nil {
		return nil, err
	}
	defer e.reentry.Exit()

	listing, err := e.reg.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	if !listing.Active {
		return nil, ErrNotActive
	}
	if e.now() >= listing.Deadline {
		return nil, ErrExpired
	}
	if caller == listing.Seller {
		return nil, ErrSelfBuy
	}
	col, ok := e.source.Collection(listing.Collection)
	if !ok {
		return nil, ErrUnknownCollection
	}
	owner, err := col.OwnerOf(listing.AssetID)
	if err != nil {
		return nil, fmt.Errorf("market: resolve owner: %w", err)
	}
	if owner != listing.Seller {
		return nil, ErrSellerNotOwner
	}

	price := new(big.Int).Set(listing.Price)
	platformFee := applyBps(price, e.feeBps)

	royalty := big.NewInt(0)
	var royaltyRecipient [20]byte
	if rc, ok := col.(assets.RoyaltyInfo); ok {
		// Capability probe: a failing royalty query is treated as the
		// capability being absent, not as a settlement failure.
		if rec, amt, err := rc.RoyaltyInfo(listing.AssetID, price); err == nil && amt != nil && amt.Sign() > 0 {
			royaltyRecipient = rec
			royalty = amt
		}
	}

	pool := big.NewInt(0)
	if e.incentives != nil {
		pool = applyBps(price, e.incentives.PoolBps(listing.Collection))
	}
	forwarded := pool.Sign() > 0

	proceeds := new(big.Int).Sub(price, platformFee)
	proceeds.Sub(proceeds, royalty)
	if forwarded {
		proceeds.Sub(proceeds, pool)
	}
	if proceeds.Sign() < 0 {
		return nil, ErrFeesExceedPrice
	}

	if assets.IsNative(listing.PayToken) {
		if err := e.settleNative(listing, caller, supplied, platformFee, royalty, royaltyRecipient, pool, forwarded, proceeds); err != nil {
			return nil, err
		}
	} else {
		if err := e.settleToken(listing, caller, supplied, platformFee, royalty, royaltyRecipient, pool, forwarded, proceeds); err != nil {
			return nil, err
		}
	}

	if err := col.Transfer(listing.Seller, caller, listing.AssetID); err != nil {
		return nil, fmt.Errorf("%w: asset: %s", ErrTransferFailed, err)
	}
	if err := e.reg.retire(listing); err != nil {
		return nil, err
	}

	receipt := &SaleReceipt{
		ListingID:   listing.ID,
		Collection:  listing.Collection,
		AssetID:     listing.AssetID,
		Seller:      listing.Seller,
		Buyer:       caller,
		PayToken:    listing.PayToken,
		Price:       price,
		PlatformFee: platformFee,
		RoyaltyFee:  royalty,
		Pool:        big.NewInt(0),
		Proceeds:    proceeds,
	}
	if forwarded {
		receipt.Pool = new(big.Int).Set(pool)
	}
	e.emit(NewSoldEvent(receipt))
	return receipt, nil
}

func (e *Engine) settleNative(listing *Listing, buyer [20]byte, supplied *big.Int, platformFee, royalty *big.Int, royaltyRecipient [20]byte, pool *big.Int, forwarded bool, proceeds *big.Int) error {
	if supplied == nil {
		supplied = big.NewInt(0)
	}
	if supplied.Cmp(listing.Price) < 0 {
		return ErrInsufficientPayment
	}
	native := e.source.Native()
	if err := native.Transfer(buyer, e.vault, supplied); err != nil {
		return fmt.Errorf("%w: native pull: %s", ErrTransferFailed, err)
	}
	if platformFee.Sign() > 0 {
		if err := native.Transfer(e.vault, e.feeTreasury, platformFee); err != nil {
			return fmt.Errorf("%w: platform fee: %s", ErrTransferFailed, err)
		}
	}
	if royalty.Sign() > 0 {
		if err := native.Transfer(e.vault, royaltyRecipient, royalty); err != nil {
			return fmt.Errorf("%w: royalty: %s", ErrTransferFailed, err)
		}
	}
	if proceeds.Sign() > 0 {
		if err := native.Transfer(e.vault, listing.Seller, proceeds); err != nil {
			return fmt.Errorf("%w: proceeds: %s", ErrTransferFailed, err)
		}
	}
	if forwarded {
		if err := native.Transfer(e.vault, e.incentives.Vault(), pool); err != nil {
			return fmt.Errorf("%w: pool: %s", ErrTransferFailed, err)
		}
		if err := e.incentives.Settle(listing.Collection, e.vault, buyer, listing.Seller, listing.PayToken, pool); err != nil {
			return err
		}
	}
	if refund := new(big.Int).Sub(supplied, listing.Price); refund.Sign() > 0 {
		if err := native.Transfer(e.vault, buyer, refund); err != nil {
			return fmt.Errorf("%w: refund: %s", ErrTransferFailed, err)
		}
	}
	return nil
}

func (e *Engine) settleToken(listing *Listing, buyer [20]byte, supplied *big.Int, platformFee, royalty *big.Int, royaltyRecipient [20]byte, pool *big.Int, forwarded bool, proceeds *big.Int) error {
	if supplied != nil && supplied.Sign() != 0 {
		return ErrUnexpectedNative
	}
	tok, ok := e.source.Token(listing.PayToken)
	if !ok {
		return ErrUnknownToken
	}
	if err := tok.TransferFrom(e.vault, buyer, e.vault, listing.Price); err != nil {
		return fmt.Errorf("%w: pull payment: %s", ErrTransferFailed, err)
	}
	if platformFee.Sign() > 0 {
		if err := tok.Transfer(e.vault, e.feeTreasury, platformFee); err != nil {
			return fmt.Errorf("%w: platform fee: %s", ErrTransferFailed, err)
		}
	}
	if royalty.Sign() > 0 {
		if err := tok.Transfer(e.vault, royaltyRecipient, royalty); err != nil {
			return fmt.Errorf("%w: royalty: %s", ErrTransferFailed, err)
		}
	}
	if proceeds.Sign() > 0 {
		if err := tok.Transfer(e.vault, listing.Seller, proceeds); err != nil {
			return fmt.Errorf("%w: proceeds: %s", ErrTransferFailed, err)
		}
	}
	if forwarded {
		if err := tok.Approve(e.vault, e.incentives.Vault(), pool); err != nil {
			return fmt.Errorf("%w: pool approval: %s", ErrTransferFailed, err)
		}
		if err := e.incentives.Settle(listing.Collection, e.vault, buyer, listing.Seller, listing.PayToken, pool); err != nil {
			return err
		}
	}
	return nil
}
