package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"curio/assets"
	"curio/core/events"
	"curio/native/claim"
	nativecommon "curio/native/common"
	"curio/native/market"
	"curio/native/referral"
	"curio/native/split"
	"curio/observability"
	"curio/storage"
)

// RoleAdmin gates platform-level administration: fees, payment tokens and
// the pause switch. Split configuration uses split.RoleSplitAdmin.
const RoleAdmin = "ROLE_ADMIN"

var errNilDatabase = errors.New("core: database not configured")

// Config carries the wiring parameters for a node.
type Config struct {
	// MarketVault holds funds transiently during settlement and is the
	// operator sellers approve for asset transfers.
	MarketVault [20]byte
	// IncentiveVault receives pooled funds and pays out claims.
	IncentiveVault [20]byte
	// FeeTreasury receives the platform fee.
	FeeTreasury [20]byte
	// PlatformFeeBps is the platform fee in hundredths of a percent.
	PlatformFeeBps uint32
	// PaymentTokens enables non-native payment assets at startup.
	PaymentTokens [][20]byte
	// Admins hold RoleAdmin; SplitAdmins hold split.RoleSplitAdmin.
	Admins      [][20]byte
	SplitAdmins [][20]byte
	// FeedDepth bounds the in-memory event buffer (0 = default).
	FeedDepth int
	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Node owns the persistent marketplace state and serializes every public
// operation: the mutex provides the host's total ordering and the storage
// overlay transaction plus gateway snapshot make each operation
// all-or-nothing.
type Node struct {
	mu    sync.Mutex
	db    storage.Database
	state *storage.Store
	hub   *assets.Hub

	listings  *market.Registry
	engine    *market.Engine
	splitter  *split.Engine
	claims    *claim.Engine
	referrals *referral.Registry

	pauses *pauseSet
	roles  *roleSet
	feed   *events.Feed
	stage  *events.Stage
	logger *slog.Logger
}

// NewNode wires the engines over the given database and gateway hub.
func NewNode(db storage.Database, hub *assets.Hub, cfg Config) (*Node, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	state := storage.NewStore(db)
	if err := state.EnsureSchema(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Node{
		db:     db,
		state:  state,
		hub:    hub,
		pauses: newPauseSet(),
		roles:  newRoleSet(),
		feed:   events.NewFeed(cfg.FeedDepth),
		logger: logger,
	}
	// Engines emit into the stage; withTxn flushes it to the feed only on
	// commit, keeping the audit stream aligned with persisted state.
	n.stage = events.NewStage(n.feed)

	guard := &nativecommon.ReentryGuard{}

	n.referrals = referral.NewRegistry()
	n.referrals.SetState(state)
	n.referrals.SetEmitter(n.stage)
	n.referrals.SetPauses(n.pauses)

	n.claims = claim.NewEngine(hub, cfg.IncentiveVault)
	n.claims.SetState(state)
	n.claims.SetEmitter(n.stage)
	n.claims.SetPauses(n.pauses)
	n.claims.SetReentryGuard(guard)

	n.splitter = split.NewEngine(n.referrals, n.claims, hub, cfg.IncentiveVault)
	n.splitter.SetState(state)
	n.splitter.SetEmitter(n.stage)
	n.splitter.SetPauses(n.pauses)
	n.splitter.SetAuthority(n.roles)

	n.listings = market.NewRegistry(hub, cfg.MarketVault)
	n.listings.SetState(state)
	n.listings.SetEmitter(n.stage)
	n.listings.SetPauses(n.pauses)

	n.engine = market.NewEngine(n.listings, hub, cfg.MarketVault)
	n.engine.SetEmitter(n.stage)
	n.engine.SetPauses(n.pauses)
	n.engine.SetReentryGuard(guard)
	n.engine.SetIncentives(incentiveAdapter{engine: n.splitter})
	if err := n.engine.SetPlatformFee(cfg.PlatformFeeBps, cfg.FeeTreasury); err != nil {
		return nil, err
	}
	// A runtime fee update persisted by an admin overrides the config value.
	if bps, treasury, ok, err := state.PlatformFeeGet(); err != nil {
		return nil, err
	} else if ok {
		if err := n.engine.SetPlatformFee(bps, treasury); err != nil {
			return nil, err
		}
	}

	for _, admin := range cfg.Admins {
		n.roles.grant(RoleAdmin, admin)
	}
	for _, admin := range cfg.SplitAdmins {
		n.roles.grant(split.RoleSplitAdmin, admin)
	}
	for _, token := range cfg.PaymentTokens {
		if err := state.SetPaymentToken(token, true); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Feed exposes the in-memory event buffer.
func (n *Node) Feed() *events.Feed { return n.feed }

// Hub exposes the gateway hub for genesis setup in marketd and tests.
func (n *Node) Hub() *assets.Hub { return n.hub }

// withTxn serializes and makes atomic one mutating operation: state writes
// buffer in the storage overlay and the in-memory gateways are snapshotted,
// so an error anywhere rolls the whole call back.
func (n *Node) withTxn(op string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := time.Now()
	snap := n.hub.Snapshot()
	if err := n.state.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		n.state.Revert()
		n.hub.Restore(snap)
		n.stage.Discard()
		observability.Marketplace().ObserveOperation(op, "error", time.Since(start).Seconds())
		n.logger.Warn("operation rejected", "op", op, "error", err)
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.hub.Restore(snap)
		n.stage.Discard()
		observability.Marketplace().ObserveOperation(op, "error", time.Since(start).Seconds())
		n.logger.Error("commit failed", "op", op, "error", err)
		return err
	}
	n.stage.Flush()
	observability.Marketplace().ObserveOperation(op, "ok", time.Since(start).Seconds())
	return nil
}

// --- listing operations ---

// CreateListing registers a new sale offer.
func (n *Node) CreateListing(seller, collection [20]byte, assetID uint64, payToken [20]byte, price *big.Int, duration int64) (*market.Listing, error) {
	var listing *market.Listing
	err := n.withTxn("market_create", func() error {
		var err error
		listing, err = n.listings.Create(seller, collection, assetID, payToken, price, duration)
		return err
	})
	return listing, err
}

// CancelListing cancels a listing on behalf of its stored seller.
func (n *Node) CancelListing(listingID [32]byte, caller [20]byte) error {
	return n.withTxn("market_cancel", func() error {
		return n.listings.Cancel(listingID, caller)
	})
}

// CancelListingAsOwner cancels whatever the (collection, asset) pointer
// targets, authorized by current asset ownership.
func (n *Node) CancelListingAsOwner(collection [20]byte, assetID uint64, caller [20]byte) error {
	return n.withTxn("market_cancel_as_owner", func() error {
		return n.listings.CancelAsCurrentOwner(collection, assetID, caller)
	})
}

// Buy settles a purchase.
func (n *Node) Buy(listingID [32]byte, caller [20]byte, supplied *big.Int) (*market.SaleReceipt, error) {
	var receipt *market.SaleReceipt
	err := n.withTxn("market_buy", func() error {
		var err error
		receipt, err = n.engine.Buy(listingID, caller, supplied)
		return err
	})
	if err == nil && receipt != nil {
		rail := "token"
		if receipt.NativePayment() {
			rail = "native"
		}
		observability.Marketplace().SaleSettled(rail)
		if receipt.Pool.Sign() > 0 {
			observability.Marketplace().PoolSettled()
		}
	}
	return receipt, err
}

// --- claim operations ---

// Claim withdraws the caller's balance for a token to the caller.
func (n *Node) Claim(caller [20]byte, token [20]byte) (*big.Int, error) {
	return n.claimTo("claim", caller, token, caller)
}

// ClaimTo withdraws the caller's balance for a token to destination.
func (n *Node) ClaimTo(caller [20]byte, token [20]byte, destination [20]byte) (*big.Int, error) {
	return n.claimTo("claim_to", caller, token, destination)
}

func (n *Node) claimTo(op string, caller [20]byte, token [20]byte, destination [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := n.withTxn(op, func() error {
		var err error
		amount, err = n.claims.ClaimTo(caller, token, destination)
		return err
	})
	if err == nil {
		observability.Marketplace().ClaimPaid()
	}
	return amount, err
}

// MigrateClaims moves the caller's balances to their beneficiary.
func (n *Node) MigrateClaims(caller [20]byte, tokens [][20]byte) error {
	return n.withTxn("claim_migrate", func() error {
		return n.claims.MigrateAll(caller, tokens)
	})
}

// SetBeneficiary records a payout redirect for the caller.
func (n *Node) SetBeneficiary(caller, beneficiary [20]byte) error {
	return n.withTxn("claim_set_beneficiary", func() error {
		return n.claims.SetBeneficiary(caller, beneficiary)
	})
}

// BindReferrer records the caller's referrer.
func (n *Node) BindReferrer(caller, referrer [20]byte) error {
	return n.withTxn("referral_bind", func() error {
		return n.referrals.Bind(caller, referrer)
	})
}

// --- administration ---

// SetSplitConfig validates and persists a collection's split configuration.
func (n *Node) SetSplitConfig(caller [20]byte, collection [20]byte, cfg *split.Config, levels []uint32) error {
	return n.withTxn("split_set_config", func() error {
		return n.splitter.SetConfig(caller, collection, cfg, levels)
	})
}

// SetPlatformFee updates the platform fee and persists it so the update
// survives a restart. RoleAdmin only.
func (n *Node) SetPlatformFee(caller [20]byte, bps uint32, treasury [20]byte) error {
	return n.withTxn("admin_set_fee", func() error {
		if err := nativecommon.RequireRole(n.roles, RoleAdmin, caller); err != nil {
			return err
		}
		if err := n.engine.SetPlatformFee(bps, treasury); err != nil {
			return err
		}
		return n.state.PlatformFeePut(bps, treasury)
	})
}

// SetPaymentToken enables or disables a payment token. RoleAdmin only.
func (n *Node) SetPaymentToken(caller [20]byte, token [20]byte, enabled bool) error {
	return n.withTxn("admin_set_payment_token", func() error {
		if err := nativecommon.RequireRole(n.roles, RoleAdmin, caller); err != nil {
			return err
		}
		return n.state.SetPaymentToken(token, enabled)
	})
}

// SetPaused flips the pause switch for a module. RoleAdmin only. Read-only
// queries are unaffected.
func (n *Node) SetPaused(caller [20]byte, module string, paused bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := nativecommon.RequireRole(n.roles, RoleAdmin, caller); err != nil {
		return err
	}
	n.pauses.set(module, paused)
	n.logger.Info("module pause updated", "module", module, "paused", paused)
	return nil
}

// --- queries ---

// ActiveListingCount reports the number of active listings.
func (n *Node) ActiveListingCount() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listings.ActiveCount()
}

// ActiveListings returns a clamped page of active listing IDs.
func (n *Node) ActiveListings(offset, limit uint64) ([][32]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listings.ActiveSlice(offset, limit)
}

// ListingsByCollection returns the active listings for a collection.
func (n *Node) ListingsByCollection(collection [20]byte) ([]*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listings.ListByCollection(collection)
}

// GetListing performs a point lookup.
func (n *Node) GetListing(listingID [32]byte) (*market.Listing, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listings.Get(listingID)
}

// ListingValid reports whether the listing is active, unexpired and still
// backed by seller ownership.
func (n *Node) ListingValid(listingID [32]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listings.IsValid(listingID)
}

// ClaimBalance reports the claimable balance for an account and token.
func (n *Node) ClaimBalance(account [20]byte, token [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.claims.BalanceOf(account, token)
}

// BeneficiaryOf resolves the payout redirect for an account.
func (n *Node) BeneficiaryOf(account [20]byte) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.claims.BeneficiaryOf(account)
}

// SplitConfig returns the stored split configuration for a collection.
func (n *Node) SplitConfig(collection [20]byte) (*split.Config, []uint32, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.splitter.Config(collection)
}

// ReferrerOf resolves an account's referrer.
func (n *Node) ReferrerOf(account [20]byte) ([20]byte, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.referrals.ReferrerOf(account)
}

// Close releases the underlying database.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.db.Close()
}

// incentiveAdapter bridges the splitter onto the settlement engine's
// Incentives interface, dropping the settlement report the engine does not
// consume.
type incentiveAdapter struct {
	engine *split.Engine
}

func (a incentiveAdapter) PoolBps(collection [20]byte) uint32 {
	return a.engine.PoolBps(collection)
}

func (a incentiveAdapter) Vault() [20]byte { return a.engine.Vault() }

func (a incentiveAdapter) Settle(collection [20]byte, payer, buyer, seller [20]byte, token [20]byte, pool *big.Int) error {
	_, err := a.engine.Settle(collection, payer, buyer, seller, token, pool)
	return err
}

type pauseSet struct {
	paused map[string]bool
}

func newPauseSet() *pauseSet { return &pauseSet{paused: make(map[string]bool)} }

func (p *pauseSet) IsPaused(module string) bool { return p.paused[module] }

func (p *pauseSet) set(module string, paused bool) { p.paused[module] = paused }

type roleSet struct {
	roles map[string]map[[20]byte]bool
}

func newRoleSet() *roleSet { return &roleSet{roles: make(map[string]map[[20]byte]bool)} }

func (r *roleSet) HasRole(role string, addr [20]byte) bool {
	grants, ok := r.roles[role]
	return ok && grants[addr]
}

func (r *roleSet) grant(role string, addr [20]byte) {
	grants, ok := r.roles[role]
	if !ok {
		grants = make(map[[20]byte]bool)
		r.roles[role] = grants
	}
	grants[addr] = true
}

// Describe summarises the node wiring for startup logging.
func (n *Node) Describe() string {
	count, err := n.ActiveListingCount()
	if err != nil {
		return fmt.Sprintf("marketplace node (active listings unknown: %v)", err)
	}
	return fmt.Sprintf("marketplace node (%d active listings)", count)
}
