package assets

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientBalance   = errors.New("assets: insufficient balance")
	ErrInsufficientAllowance = errors.New("assets: insufficient allowance")
	ErrNegativeAmount        = errors.New("assets: negative amount")
)

// TokenLedger is an in-memory fungible balance book. It backs the native coin
// and demo payment tokens in marketd and stands in for real token systems in
// tests. Production deployments adapt Fungible to whatever asset rail the host
// provides.
type TokenLedger struct {
	symbol     string
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]map[[20]byte]*big.Int
}

// NewTokenLedger constructs an empty ledger identified by a display symbol.
func NewTokenLedger(symbol string) *TokenLedger {
	return &TokenLedger{
		symbol:     symbol,
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[20]byte]map[[20]byte]*big.Int),
	}
}

// Symbol returns the display symbol for the ledger.
func (l *TokenLedger) Symbol() string { return l.symbol }

// Mint credits newly issued units to the recipient.
func (l *TokenLedger) Mint(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.balances[to] = new(big.Int).Add(l.balanceRef(to), amount)
	return nil
}

// BalanceOf implements the Fungible interface.
func (l *TokenLedger) BalanceOf(addr [20]byte) *big.Int {
	return new(big.Int).Set(l.balanceRef(addr))
}

// Transfer implements the Fungible interface.
func (l *TokenLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal := l.balanceRef(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.balances[to] = new(big.Int).Add(l.balanceRef(to), amount)
	return nil
}

// TransferFrom implements the Fungible interface, consuming the operator's
// allowance before moving the funds.
func (l *TokenLedger) TransferFrom(operator, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if operator != from {
		remaining := l.allowanceRef(from, operator)
		if remaining.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		l.setAllowance(from, operator, new(big.Int).Sub(remaining, amount))
	}
	return l.Transfer(from, to, amount)
}

// Approve implements the Fungible interface.
func (l *TokenLedger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.setAllowance(owner, spender, new(big.Int).Set(amount))
	return nil
}

// Allowance reports the remaining amount spender may pull from owner.
func (l *TokenLedger) Allowance(owner, spender [20]byte) *big.Int {
	return new(big.Int).Set(l.allowanceRef(owner, spender))
}

func (l *TokenLedger) balanceRef(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (l *TokenLedger) allowanceRef(owner, spender [20]byte) *big.Int {
	if grants, ok := l.allowances[owner]; ok {
		if amt, ok := grants[spender]; ok {
			return amt
		}
	}
	return big.NewInt(0)
}

func (l *TokenLedger) setAllowance(owner, spender [20]byte, amount *big.Int) {
	grants, ok := l.allowances[owner]
	if !ok {
		grants = make(map[[20]byte]*big.Int)
		l.allowances[owner] = grants
	}
	grants[spender] = amount
}

func (l *TokenLedger) copyState() any {
	balances := make(map[[20]byte]*big.Int, len(l.balances))
	for addr, bal := range l.balances {
		balances[addr] = new(big.Int).Set(bal)
	}
	allowances := make(map[[20]byte]map[[20]byte]*big.Int, len(l.allowances))
	for owner, grants := range l.allowances {
		cloned := make(map[[20]byte]*big.Int, len(grants))
		for spender, amt := range grants {
			cloned[spender] = new(big.Int).Set(amt)
		}
		allowances[owner] = cloned
	}
	return &TokenLedger{symbol: l.symbol, balances: balances, allowances: allowances}
}

func (l *TokenLedger) setState(state any) {
	restored, ok := state.(*TokenLedger)
	if !ok {
		return
	}
	l.balances = restored.balances
	l.allowances = restored.allowances
}
