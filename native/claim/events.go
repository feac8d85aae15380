package claim

import (
	"encoding/hex"
	"math/big"

	"curio/core/types"
)

const (
	EventTypeCredited           = "claim.credited"
	EventTypeClaimed            = "claim.claimed"
	EventTypeMigrated           = "claim.migrated"
	EventTypeBeneficiaryUpdated = "claim.beneficiary.updated"
)

type claimEvent struct {
	evt *types.Event
}

func (e claimEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e claimEvent) Event() *types.Event { return e.evt }

// NewCreditedEvent reports an accrual, including the redirect resolution.
func NewCreditedEvent(account, beneficiary [20]byte, token [20]byte, amount *big.Int) claimEvent {
	return claimEvent{evt: &types.Event{Type: EventTypeCredited, Attributes: map[string]string{
		"account":     hex.EncodeToString(account[:]),
		"beneficiary": hex.EncodeToString(beneficiary[:]),
		"token":       hex.EncodeToString(token[:]),
		"amount":      amount.String(),
	}}}
}

// NewClaimedEvent reports a completed withdrawal.
func NewClaimedEvent(caller, destination [20]byte, token [20]byte, amount *big.Int) claimEvent {
	return claimEvent{evt: &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"caller":      hex.EncodeToString(caller[:]),
		"destination": hex.EncodeToString(destination[:]),
		"token":       hex.EncodeToString(token[:]),
		"amount":      amount.String(),
	}}}
}

// NewMigratedEvent reports a balance moved to the caller's beneficiary.
func NewMigratedEvent(caller, beneficiary [20]byte, token [20]byte, amount *big.Int) claimEvent {
	return claimEvent{evt: &types.Event{Type: EventTypeMigrated, Attributes: map[string]string{
		"caller":      hex.EncodeToString(caller[:]),
		"beneficiary": hex.EncodeToString(beneficiary[:]),
		"token":       hex.EncodeToString(token[:]),
		"amount":      amount.String(),
	}}}
}

// NewBeneficiaryUpdatedEvent reports a new payout redirect.
func NewBeneficiaryUpdatedEvent(caller, beneficiary [20]byte) claimEvent {
	return claimEvent{evt: &types.Event{Type: EventTypeBeneficiaryUpdated, Attributes: map[string]string{
		"caller":      hex.EncodeToString(caller[:]),
		"beneficiary": hex.EncodeToString(beneficiary[:]),
	}}}
}
