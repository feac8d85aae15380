package claim

import (
	"errors"
	"math/big"
	"testing"

	"curio/assets"
	nativecommon "curio/native/common"
)

type balanceKey struct {
	account [20]byte
	token   [20]byte
}

type mockClaimState struct {
	balances      map[balanceKey]*big.Int
	beneficiaries map[[20]byte][20]byte
}

func newMockClaimState() *mockClaimState {
	return &mockClaimState{
		balances:      make(map[balanceKey]*big.Int),
		beneficiaries: make(map[[20]byte][20]byte),
	}
}

func (m *mockClaimState) ClaimBalanceGet(account [20]byte, token [20]byte) (*big.Int, error) {
	if balance, ok := m.balances[balanceKey{account, token}]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockClaimState) ClaimBalancePut(account [20]byte, token [20]byte, amount *big.Int) error {
	m.balances[balanceKey{account, token}] = new(big.Int).Set(amount)
	return nil
}

func (m *mockClaimState) BeneficiaryGet(account [20]byte) ([20]byte, bool, error) {
	beneficiary, ok := m.beneficiaries[account]
	return beneficiary, ok, nil
}

func (m *mockClaimState) BeneficiaryPut(account, beneficiary [20]byte) error {
	m.beneficiaries[account] = beneficiary
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type claimFixture struct {
	state   *mockClaimState
	hub     *assets.Hub
	engine  *Engine
	vault   [20]byte
	account [20]byte
}

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()
	state := newMockClaimState()
	hub := assets.NewHub("TEST")
	vault := addr(0xE0)
	engine := NewEngine(hub, vault)
	engine.SetState(state)
	return &claimFixture{
		state:   state,
		hub:     hub,
		engine:  engine,
		vault:   vault,
		account: addr(1),
	}
}

func (f *claimFixture) fundVault(t *testing.T, amount int64) {
	t.Helper()
	if err := f.hub.NativeLedger().Mint(f.vault, big.NewInt(amount)); err != nil {
		t.Fatalf("fund vault: %v", err)
	}
}

func TestCreditAccruesAdditively(t *testing.T) {
	f := newClaimFixture(t)

	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(50)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	balance, err := f.engine.BalanceOf(f.account, assets.NativeToken)
	if err != nil || balance.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("balance: got %s (%v)", balance, err)
	}
}

func TestCreditRejectsNonPositiveAmounts(t *testing.T) {
	f := newClaimFixture(t)
	if err := f.engine.Credit(f.account, assets.NativeToken, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
}

func TestClaimPaysOutAndZeroesBalance(t *testing.T) {
	f := newClaimFixture(t)
	f.fundVault(t, 500)
	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	amount, err := f.engine.Claim(f.account, assets.NativeToken)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("claimed amount: got %s", amount)
	}
	if got := f.hub.Native().BalanceOf(f.account); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("payout not delivered: got %s", got)
	}
	balance, _ := f.engine.BalanceOf(f.account, assets.NativeToken)
	if balance.Sign() != 0 {
		t.Fatalf("balance should be zero after claim, got %s", balance)
	}
	if _, err := f.engine.Claim(f.account, assets.NativeToken); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("second claim: got %v", err)
	}
}

func TestClaimToRejectsZeroDestination(t *testing.T) {
	f := newClaimFixture(t)
	if _, err := f.engine.ClaimTo(f.account, assets.NativeToken, [20]byte{}); !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", err)
	}
}

func TestFailedPayoutRestoresBalance(t *testing.T) {
	f := newClaimFixture(t)
	// Vault unfunded: the native transfer must fail.
	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(500)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := f.engine.Claim(f.account, assets.NativeToken); err == nil {
		t.Fatalf("expected payout failure")
	}
	balance, _ := f.engine.BalanceOf(f.account, assets.NativeToken)
	if balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance should be restored after failure, got %s", balance)
	}
}

func TestClaimTokenRail(t *testing.T) {
	f := newClaimFixture(t)
	tokenAddr := addr(0x40)
	tok := assets.NewTokenLedger("USD")
	f.hub.RegisterToken(tokenAddr, tok)
	if err := tok.Mint(f.vault, big.NewInt(300)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.engine.Credit(f.account, tokenAddr, big.NewInt(300)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	destination := addr(9)
	if _, err := f.engine.ClaimTo(f.account, tokenAddr, destination); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := tok.BalanceOf(destination); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("destination balance: got %s", got)
	}
}

func TestClaimRespectsSharedReentryGuard(t *testing.T) {
	f := newClaimFixture(t)
	guard := &nativecommon.ReentryGuard{}
	f.engine.SetReentryGuard(guard)
	if err := guard.Enter(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	defer guard.Exit()
	if _, err := f.engine.Claim(f.account, assets.NativeToken); !errors.Is(err, nativecommon.ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
}

func TestSetBeneficiaryRedirectsFutureCredits(t *testing.T) {
	f := newClaimFixture(t)
	heir := addr(2)

	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := f.engine.SetBeneficiary(f.account, heir); err != nil {
		t.Fatalf("set beneficiary: %v", err)
	}
	// Earlier balances stay with the account; only new credits redirect.
	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(40)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	balance, _ := f.engine.BalanceOf(f.account, assets.NativeToken)
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("account balance: got %s", balance)
	}
	heirBalance, _ := f.engine.BalanceOf(heir, assets.NativeToken)
	if heirBalance.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("beneficiary balance: got %s", heirBalance)
	}
}

func TestSetBeneficiaryValidation(t *testing.T) {
	f := newClaimFixture(t)
	if err := f.engine.SetBeneficiary(f.account, [20]byte{}); !errors.Is(err, ErrInvalidBeneficiary) {
		t.Fatalf("expected ErrInvalidBeneficiary, got %v", err)
	}
}

func TestMigrateAllMovesExistingBalances(t *testing.T) {
	f := newClaimFixture(t)
	heir := addr(2)
	tokenAddr := addr(0x40)

	if err := f.engine.Credit(f.account, assets.NativeToken, big.NewInt(100)); err != nil {
		t.Fatalf("credit native: %v", err)
	}
	if err := f.engine.Credit(f.account, tokenAddr, big.NewInt(70)); err != nil {
		t.Fatalf("credit token: %v", err)
	}

	// No beneficiary yet.
	if err := f.engine.MigrateAll(f.account, [][20]byte{assets.NativeToken}); !errors.Is(err, ErrNoBeneficiary) {
		t.Fatalf("expected ErrNoBeneficiary, got %v", err)
	}

	if err := f.engine.SetBeneficiary(f.account, heir); err != nil {
		t.Fatalf("set beneficiary: %v", err)
	}
	if err := f.engine.MigrateAll(f.account, [][20]byte{assets.NativeToken, tokenAddr}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, token := range [][20]byte{assets.NativeToken, tokenAddr} {
		balance, _ := f.engine.BalanceOf(f.account, token)
		if balance.Sign() != 0 {
			t.Fatalf("source balance should be zero, got %s", balance)
		}
	}
	native, _ := f.engine.BalanceOf(heir, assets.NativeToken)
	token, _ := f.engine.BalanceOf(heir, tokenAddr)
	if native.Cmp(big.NewInt(100)) != 0 || token.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("beneficiary balances: native=%s token=%s", native, token)
	}
}

func TestMigrateAllRejectsSelfBeneficiary(t *testing.T) {
	f := newClaimFixture(t)
	if err := f.engine.SetBeneficiary(f.account, f.account); err != nil {
		t.Fatalf("set beneficiary: %v", err)
	}
	if err := f.engine.MigrateAll(f.account, [][20]byte{assets.NativeToken}); !errors.Is(err, ErrNoBeneficiary) {
		t.Fatalf("expected ErrNoBeneficiary, got %v", err)
	}
}
