// Package custody is the boundary between the vault and the underlying
// yield-bearing assets it holds.
package custody

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Custody moves underlying assets in and out of the vault's account.
//
// Implementations run while the vault holds its writer lock. They receive
// the caller's context, and a mutating vault call made with that context is
// rejected as reentrant. Implementations must not call the vault any other
// way before returning: a mutating call with a fresh context, or any read
// (Status, Holder, previews), waits on the same lock and never returns.
// TransferIn may also be called during a rollback to take back an asset
// already paid out by TransferOut.
type Custody interface {
	TransferIn(ctx context.Context, asset, from common.Address, amount *big.Int) error
	TransferOut(ctx context.Context, asset, to common.Address, amount *big.Int) error
}

// Ledger is an in-memory multi-asset balance sheet. It stands in for the
// asset contracts in tests, demos and the local service.
type Ledger struct {
	mu       sync.Mutex
	account  common.Address
	balances map[common.Address]map[common.Address]*big.Int
}

// NewLedger creates a ledger whose custody account is account.
func NewLedger(account common.Address) *Ledger {
	return &Ledger{
		account:  account,
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Account is the vault's custody address inside this ledger.
func (l *Ledger) Account() common.Address { return l.account }

// Mint credits amount of asset to holder out of thin air.
func (l *Ledger) Mint(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(asset, holder, new(big.Int).Add(l.get(asset, holder), amount))
	return nil
}

func (l *Ledger) BalanceOf(asset, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(asset, holder)
}

// Transfer moves amount of asset between two holders.
func (l *Ledger) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.get(asset, from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s of %s from %s: %w", amount, asset.Hex(), from.Hex(), ErrInsufficientFunds)
	}
	l.set(asset, from, bal.Sub(bal, amount))
	l.set(asset, to, new(big.Int).Add(l.get(asset, to), amount))
	return nil
}

// Donate sends asset straight to the custody account, bypassing the vault.
func (l *Ledger) Donate(asset, from common.Address, amount *big.Int) error {
	return l.Transfer(asset, from, l.account, amount)
}

func (l *Ledger) TransferIn(_ context.Context, asset, from common.Address, amount *big.Int) error {
	return l.Transfer(asset, from, l.account, amount)
}

func (l *Ledger) TransferOut(_ context.Context, asset, to common.Address, amount *big.Int) error {
	return l.Transfer(asset, l.account, to, amount)
}

func (l *Ledger) get(asset, holder common.Address) *big.Int {
	if bal, ok := l.balances[asset][holder]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (l *Ledger) set(asset, holder common.Address, bal *big.Int) {
	holders := l.balances[asset]
	if holders == nil {
		holders = make(map[common.Address]*big.Int)
		l.balances[asset] = holders
	}
	holders[holder] = bal
}
