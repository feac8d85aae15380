package split

import (
	"errors"
	"fmt"
	"math/big"

	"curio/assets"
	"curio/core/events"
	nativecommon "curio/native/common"
)

const (
	moduleName     = "split"
	RoleSplitAdmin = "ROLE_SPLIT_ADMIN"
)

var errNilState = errors.New("split: state not configured")

// engineState is the persistence surface for split configuration. The level
// table is stored independently of the scalar configuration so its length can
// be reconfigured without rewriting the whole record.
type engineState interface {
	SplitConfigGet(scope Scope) (*Config, bool, error)
	SplitConfigPut(scope Scope, cfg *Config) error
	SplitLevelsGet(scope Scope) ([]uint32, error)
	SplitLevelsPut(scope Scope, levels []uint32) error
}

// ReferralLookup resolves an account's referrer one level at a time. The
// splitter never mutates the referral graph.
type ReferralLookup interface {
	ReferrerOf(addr [20]byte) ([20]byte, bool, error)
}

// CreditLedger is the claimable-balance surface the splitter distributes
// into. Implementations resolve payout redirects before crediting.
type CreditLedger interface {
	Credit(account [20]byte, token [20]byte, amount *big.Int) error
}

// Engine walks the referral chain for each pool amount and credits the claim
// ledger. A given pool is settled exactly once, driven by exactly one
// settlement-engine call; the operation is purely additive to the ledger.
type Engine struct {
	state     engineState
	referrals ReferralLookup
	ledger    CreditLedger
	source    assets.Source
	vault     [20]byte
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	authority nativecommon.Authority
}

// NewEngine constructs a pool splitter. The vault is the account pooled funds
// are delivered to and later claimed from.
func NewEngine(referrals ReferralLookup, ledger CreditLedger, source assets.Source, vault [20]byte) *Engine {
	return &Engine{
		referrals: referrals,
		ledger:    ledger,
		source:    source,
		vault:     vault,
		emitter:   events.NoopEmitter{},
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the pause view gating mutating entry points.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetAuthority configures the role view gating configuration changes.
func (e *Engine) SetAuthority(a nativecommon.Authority) { e.authority = a }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Vault implements the market.Incentives interface.
func (e *Engine) Vault() [20]byte { return e.vault }

// PoolBps implements the market.Incentives interface: it reports the pool
// slice for a collection, or zero when the scope is unconfigured or inactive.
func (e *Engine) PoolBps(collection [20]byte) uint32 {
	if e == nil || e.state == nil {
		return 0
	}
	cfg, ok, err := e.state.SplitConfigGet(DeriveScope(collection))
	if err != nil || !ok || !cfg.Active {
		return 0
	}
	return cfg.PoolBps
}

// SetConfig validates and persists the split configuration and level table
// for a collection's scope. Only split administrators may call it.
func (e *Engine) SetConfig(caller [20]byte, collection [20]byte, cfg *Config, levels []uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.authority, RoleSplitAdmin, caller); err != nil {
		return err
	}
	if err := ValidateConfig(cfg, levels); err != nil {
		return err
	}
	scope := DeriveScope(collection)
	if err := e.state.SplitConfigPut(scope, cfg.Clone()); err != nil {
		return err
	}
	if err := e.state.SplitLevelsPut(scope, append([]uint32(nil), levels...)); err != nil {
		return err
	}
	e.emit(NewConfigUpdatedEvent(scope, cfg, levels))
	return nil
}

// Config returns the stored configuration and level table for a collection.
func (e *Engine) Config(collection [20]byte) (*Config, []uint32, bool, error) {
	if e == nil || e.state == nil {
		return nil, nil, false, errNilState
	}
	scope := DeriveScope(collection)
	cfg, ok, err := e.state.SplitConfigGet(scope)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	levels, err := e.state.SplitLevelsGet(scope)
	if err != nil {
		return nil, nil, false, err
	}
	return cfg.Clone(), levels, true, nil
}

// Settle implements the market.Incentives interface. It distributes the pool
// across cashback, the referral chain and the treasury remainder, crediting
// the claim ledger. On the token rail the pool is pulled from payer using the
// approval granted by the caller; on the native rail the value has already
// been delivered to the vault.
//
// The accounting identity holds exactly:
//
//	toBuyer + Σ(referrer shares) + Σ(recycled-to-seller shares) + toTreasury == pool
func (e *Engine) Settle(collection [20]byte, payer, buyer, seller [20]byte, token [20]byte, pool *big.Int) (*Settlement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if pool == nil || pool.Sign() <= 0 {
		return nil, ErrInvalidPool
	}
	scope := DeriveScope(collection)
	cfg, ok, err := e.state.SplitConfigGet(scope)
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.Active {
		return nil, ErrNotActive
	}
	if token != cfg.PayToken {
		return nil, ErrWrongToken
	}
	levels, err := e.state.SplitLevelsGet(scope)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}

	if !assets.IsNative(token) {
		tok, ok := e.source.Token(token)
		if !ok {
			return nil, ErrUnknownToken
		}
		if err := tok.TransferFrom(e.vault, payer, e.vault, pool); err != nil {
			return nil, fmt.Errorf("split: collect pool: %w", err)
		}
	}

	toBuyer := applyBps(pool, cfg.CashbackBps)
	if cfg.RequireReferrer && toBuyer.Sign() > 0 {
		if _, bound, err := e.referrals.ReferrerOf(buyer); err != nil {
			return nil, err
		} else if !bound {
			toBuyer = big.NewInt(0)
		}
	}

	// Walk the chain strictly bounded by the configured level count: the
	// splitter terminates even if the referral graph were cyclic.
	referrerTotal := big.NewInt(0)
	toSeller := big.NewInt(0)
	levelsPaid := 0
	cursor := buyer
	chainAlive := true
	for _, bps := range levels {
		share := applyBps(pool, bps)
		var referrer [20]byte
		found := false
		if chainAlive {
			referrer, found, err = e.referrals.ReferrerOf(cursor)
			if err != nil {
				return nil, err
			}
		}
		if found {
			if share.Sign() > 0 {
				if err := e.ledger.Credit(referrer, token, share); err != nil {
					return nil, err
				}
				referrerTotal.Add(referrerTotal, share)
				levelsPaid++
			}
			cursor = referrer
			continue
		}
		chainAlive = false
		if share.Sign() == 0 {
			continue
		}
		switch {
		case cfg.RecycleToBuyer:
			toBuyer.Add(toBuyer, share)
		case cfg.RecycleToSeller:
			toSeller.Add(toSeller, share)
		}
		// Otherwise the share stays undistributed and falls to treasury.
	}

	distributed := new(big.Int).Add(toBuyer, referrerTotal)
	distributed.Add(distributed, toSeller)
	toTreasury := new(big.Int).Sub(pool, distributed)

	if toBuyer.Sign() > 0 {
		if err := e.ledger.Credit(buyer, token, toBuyer); err != nil {
			return nil, err
		}
	}
	if toSeller.Sign() > 0 {
		if err := e.ledger.Credit(seller, token, toSeller); err != nil {
			return nil, err
		}
	}
	if toTreasury.Sign() > 0 {
		if err := e.ledger.Credit(cfg.Treasury, token, toTreasury); err != nil {
			return nil, err
		}
	}

	settlement := &Settlement{
		Scope:         scope,
		Buyer:         buyer,
		Seller:        seller,
		PayToken:      token,
		Pool:          new(big.Int).Set(pool),
		ToBuyer:       toBuyer,
		ReferrerTotal: referrerTotal,
		ToSeller:      toSeller,
		ToTreasury:    toTreasury,
		LevelsPaid:    levelsPaid,
	}
	e.emit(NewSettledEvent(settlement))
	return settlement, nil
}

// applyBps computes amount * bps / 10_000 with truncating division.
func applyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Div(out, big.NewInt(BpsDenominator))
}
