// Package token implements the fungible claim-token ledgers (Senior and
// Junior tranches). Anyone may transfer and approve; only the holder of the
// Minter returned at construction may mint or burn.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"TrancheVault/internal/model"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrNegativeAmount        = errors.New("negative amount")
)

// Token is a transferable, approvable balance ledger.
type Token struct {
	name   string
	symbol string

	mu         sync.RWMutex
	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// Minter is the mint/burn capability over one Token. It is handed out once,
// by New or FromState, and never exposed by the Token itself.
type Minter struct {
	t *Token
}

// New creates an empty token and its minting capability.
func New(name, symbol string) (*Token, *Minter) {
	t := &Token{
		name:       name,
		symbol:     symbol,
		supply:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	return t, &Minter{t: t}
}

// FromState rebuilds a token from a persisted ledger. Total supply is
// recomputed from the balances.
func FromState(name, symbol string, st model.TokenState) (*Token, *Minter, error) {
	t, m := New(name, symbol)
	for holder, bal := range st.Balances {
		if bal == nil || bal.Sign() == 0 {
			continue
		}
		if bal.Sign() < 0 {
			return nil, nil, fmt.Errorf("%s: balance of %s: %w", symbol, holder.Hex(), ErrNegativeAmount)
		}
		t.balances[holder] = new(big.Int).Set(bal)
		t.supply.Add(t.supply, bal)
	}
	for owner, spenders := range st.Allowances {
		for spender, amt := range spenders {
			if amt == nil || amt.Sign() <= 0 {
				continue
			}
			t.setAllowance(owner, spender, amt)
		}
	}
	return t, m, nil
}

func (t *Token) Name() string   { return t.name }
func (t *Token) Symbol() string { return t.symbol }

// TotalSupply returns the number of outstanding units.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.supply)
}

// BalanceOf returns the balance of holder.
func (t *Token) BalanceOf(holder common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceOf(holder)
}

// Allowance returns how much spender may still move on behalf of owner.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if amt, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(amt)
	}
	return new(big.Int)
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to %w", ErrZeroAddress)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// Approve sets the allowance of spender over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return fmt.Errorf("approve %w", ErrZeroAddress)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(owner, spender, amount)
	return nil
}

// TransferFrom moves amount from owner to `to`, spending spender's allowance.
func (t *Token) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to %w", ErrZeroAddress)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[owner][spender]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%s: %w", t.symbol, ErrInsufficientAllowance)
	}
	if err := t.move(owner, to, amount); err != nil {
		return err
	}
	t.setAllowance(owner, spender, new(big.Int).Sub(allowed, amount))
	return nil
}

// State exports the ledger for persistence.
func (t *Token) State() model.TokenState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := model.TokenState{
		Balances:   make(map[common.Address]*big.Int, len(t.balances)),
		Allowances: make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
	}
	for holder, bal := range t.balances {
		st.Balances[holder] = new(big.Int).Set(bal)
	}
	for owner, spenders := range t.allowances {
		cp := make(map[common.Address]*big.Int, len(spenders))
		for spender, amt := range spenders {
			cp[spender] = new(big.Int).Set(amt)
		}
		st.Allowances[owner] = cp
	}
	return st
}

// Mint creates amount new units for to.
func (m *Minter) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("mint to %w", ErrZeroAddress)
	}
	t := m.t
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = new(big.Int).Add(t.balanceOf(to), amount)
	t.supply.Add(t.supply, amount)
	return nil
}

// Burn destroys amount units held by from.
func (m *Minter) Burn(from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t := m.t
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: burn %s from %s: %w", t.symbol, amount, from.Hex(), ErrInsufficientBalance)
	}
	t.setBalance(from, bal.Sub(bal, amount))
	t.supply.Sub(t.supply, amount)
	return nil
}

// Token returns the ledger this capability controls.
func (m *Minter) Token() *Token { return m.t }

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	fromBal := t.balanceOf(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: transfer %s from %s: %w", t.symbol, amount, from.Hex(), ErrInsufficientBalance)
	}
	t.setBalance(from, fromBal.Sub(fromBal, amount))
	t.setBalance(to, new(big.Int).Add(t.balanceOf(to), amount))
	return nil
}

func (t *Token) balanceOf(holder common.Address) *big.Int {
	if bal, ok := t.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (t *Token) setBalance(holder common.Address, bal *big.Int) {
	if bal.Sign() == 0 {
		delete(t.balances, holder)
		return
	}
	t.balances[holder] = bal
}

func (t *Token) setAllowance(owner, spender common.Address, amount *big.Int) {
	spenders := t.allowances[owner]
	if amount.Sign() == 0 {
		delete(spenders, spender)
		if len(spenders) == 0 {
			delete(t.allowances, owner)
		}
		return
	}
	if spenders == nil {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	return nil
}
