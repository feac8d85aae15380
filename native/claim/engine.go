package claim

import (
	"errors"
	"fmt"
	"math/big"

	"curio/assets"
	"curio/core/events"
	nativecommon "curio/native/common"
)

const moduleName = "claim"

var (
	errNilState           = errors.New("claim: state not configured")
	ErrNothingToClaim     = errors.New("claim: nothing to claim")
	ErrInvalidDestination = errors.New("claim: invalid destination")
	ErrInvalidBeneficiary = errors.New("claim: invalid beneficiary")
	ErrNoBeneficiary      = errors.New("claim: no beneficiary configured")
	ErrInvalidAmount      = errors.New("claim: amount must be positive")
)

// engineState is the persistence surface for the claim ledger: a balance per
// (account, token) pair and the optional payout redirect per account.
type engineState interface {
	ClaimBalanceGet(account [20]byte, token [20]byte) (*big.Int, error)
	ClaimBalancePut(account [20]byte, token [20]byte, amount *big.Int) error
	BeneficiaryGet(account [20]byte) ([20]byte, bool, error)
	BeneficiaryPut(account, beneficiary [20]byte) error
}

// Engine is the pull-payment ledger: balances are credited by the pool
// splitter and settlement engine and leave the system only through an
// explicit withdrawal.
type Engine struct {
	state   engineState
	source  assets.Source
	vault   [20]byte
	emitter events.Emitter
	pauses  nativecommon.PauseView
	reentry *nativecommon.ReentryGuard
}

// NewEngine constructs a claim ledger paying out of the given vault account.
func NewEngine(source assets.Source, vault [20]byte) *Engine {
	return &Engine{
		source:  source,
		vault:   vault,
		emitter: events.NoopEmitter{},
		reentry: &nativecommon.ReentryGuard{},
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

// SetReentryGuard installs a shared re-entrancy guard.
func (e *Engine) SetReentryGuard(g *nativecommon.ReentryGuard) {
	if g == nil {
		return
	}
	e.reentry = g
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Vault is the account pooled funds are delivered to and paid out of.
func (e *Engine) Vault() [20]byte { return e.vault }

// BalanceOf reports the claimable balance for an account and token.
func (e *Engine) BalanceOf(account [20]byte, token [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.ClaimBalanceGet(account, token)
}

// BeneficiaryOf resolves the standing payout redirect for an account; the
// account itself when none is set.
func (e *Engine) BeneficiaryOf(account [20]byte) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	beneficiary, ok, err := e.state.BeneficiaryGet(account)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return account, nil
	}
	return beneficiary, nil
}

// Credit accrues amount to the account's beneficiary. It implements the
// splitter's CreditLedger interface and is the only additive path into the
// ledger.
func (e *Engine) Credit(account [20]byte, token [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	beneficiary, err := e.BeneficiaryOf(account)
	if err != nil {
		return err
	}
	balance, err := e.state.ClaimBalanceGet(beneficiary, token)
	if err != nil {
		return err
	}
	if err := e.state.ClaimBalancePut(beneficiary, token, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	e.emit(NewCreditedEvent(account, beneficiary, token, amount))
	return nil
}

// Claim withdraws the caller's full balance for a token to the caller.
func (e *Engine) Claim(caller [20]byte, token [20]byte) (*big.Int, error) {
	return e.ClaimTo(caller, token, caller)
}

// ClaimTo withdraws the caller's full balance for a token to destination. The
// balance is zeroed before the outbound transfer so a re-entrant callback
// cannot double-claim; a failed transfer restores the original balance and
// fails the call.
func (e *Engine) ClaimTo(caller [20]byte, token [20]byte, destination [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.reentry.Enter(); err != nil {
		return nil, err
	}
	defer e.reentry.Exit()
	if destination == ([20]byte{}) {
		return nil, ErrInvalidDestination
	}
	balance, err := e.state.ClaimBalanceGet(caller, token)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, ErrNothingToClaim
	}
	if err := e.state.ClaimBalancePut(caller, token, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.payOut(token, destination, balance); err != nil {
		if restoreErr := e.state.ClaimBalancePut(caller, token, balance); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, fmt.Errorf("claim: pay out: %w", err)
	}
	e.emit(NewClaimedEvent(caller, destination, token, balance))
	return new(big.Int).Set(balance), nil
}

// MigrateAll moves the caller's current balances for the listed tokens into
// the balances of the caller's beneficiary. Pure ledger bookkeeping, no
// outbound transfer.
func (e *Engine) MigrateAll(caller [20]byte, tokens [][20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	beneficiary, ok, err := e.state.BeneficiaryGet(caller)
	if err != nil {
		return err
	}
	if !ok || beneficiary == caller {
		return ErrNoBeneficiary
	}
	for _, token := range tokens {
		balance, err := e.state.ClaimBalanceGet(caller, token)
		if err != nil {
			return err
		}
		if balance.Sign() <= 0 {
			continue
		}
		target, err := e.state.ClaimBalanceGet(beneficiary, token)
		if err != nil {
			return err
		}
		if err := e.state.ClaimBalancePut(beneficiary, token, new(big.Int).Add(target, balance)); err != nil {
			return err
		}
		if err := e.state.ClaimBalancePut(caller, token, big.NewInt(0)); err != nil {
			return err
		}
		e.emit(NewMigratedEvent(caller, beneficiary, token, balance))
	}
	return nil
}

// SetBeneficiary records a standing payout redirect for the caller. It only
// affects future credits; existing balances move via MigrateAll. A redirect
// is never unset, only overwritten.
func (e *Engine) SetBeneficiary(caller, beneficiary [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if beneficiary == ([20]byte{}) {
		return ErrInvalidBeneficiary
	}
	if err := e.state.BeneficiaryPut(caller, beneficiary); err != nil {
		return err
	}
	e.emit(NewBeneficiaryUpdatedEvent(caller, beneficiary))
	return nil
}

func (e *Engine) payOut(token [20]byte, destination [20]byte, amount *big.Int) error {
	if assets.IsNative(token) {
		return e.source.Native().Transfer(e.vault, destination, amount)
	}
	tok, ok := e.source.Token(token)
	if !ok {
		return fmt.Errorf("claim: token gateway not registered")
	}
	return tok.Transfer(e.vault, destination, amount)
}
