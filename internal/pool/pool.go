// Package pool keeps the vault's accounted balance of each supported asset.
// Accounted balances move only through Credit and Debit, so assets sent
// straight to the vault's custody account never show up here.
package pool

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAssetAddress   = errors.New("invalid asset address")
	ErrUnsupportedAsset      = errors.New("unsupported asset")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrNegativeAmount        = errors.New("negative amount")
)

// Pool is not safe for concurrent use; the vault serializes access.
type Pool struct {
	assets   [2]common.Address
	balances map[common.Address]*big.Int
}

// New creates an empty pool over two distinct, non-zero assets.
func New(assetA, assetB common.Address) (*Pool, error) {
	if assetA == (common.Address{}) || assetB == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero address", ErrInvalidAssetAddress)
	}
	if assetA == assetB {
		return nil, fmt.Errorf("%w: assets must differ", ErrInvalidAssetAddress)
	}
	return &Pool{
		assets: [2]common.Address{assetA, assetB},
		balances: map[common.Address]*big.Int{
			assetA: new(big.Int),
			assetB: new(big.Int),
		},
	}, nil
}

// Assets returns the two supported assets in configuration order.
func (p *Pool) Assets() [2]common.Address { return p.assets }

// Supports reports whether asset is one of the two configured assets.
func (p *Pool) Supports(asset common.Address) bool {
	_, ok := p.balances[asset]
	return ok
}

// Balance returns the accounted balance of asset, zero if unsupported.
func (p *Pool) Balance(asset common.Address) *big.Int {
	if bal, ok := p.balances[asset]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TotalValue is the sum of both accounted balances.
func (p *Pool) TotalValue() *big.Int {
	return new(big.Int).Add(p.balances[p.assets[0]], p.balances[p.assets[1]])
}

func (p *Pool) Credit(asset common.Address, amount *big.Int) error {
	bal, err := p.lookup(asset, amount)
	if err != nil {
		return err
	}
	bal.Add(bal, amount)
	return nil
}

func (p *Pool) Debit(asset common.Address, amount *big.Int) error {
	bal, err := p.lookup(asset, amount)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("debit %s of %s (have %s): %w", amount, asset.Hex(), bal, ErrInsufficientLiquidity)
	}
	bal.Sub(bal, amount)
	return nil
}

// Balances exports the accounted balances for persistence.
func (p *Pool) Balances() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(p.balances))
	for asset, bal := range p.balances {
		out[asset] = new(big.Int).Set(bal)
	}
	return out
}

// Restore replaces the accounted balances. Assets missing from balances
// are reset to zero; unknown assets are rejected.
func (p *Pool) Restore(balances map[common.Address]*big.Int) error {
	next := map[common.Address]*big.Int{
		p.assets[0]: new(big.Int),
		p.assets[1]: new(big.Int),
	}
	for asset, bal := range balances {
		if _, ok := next[asset]; !ok {
			return fmt.Errorf("restore %s: %w", asset.Hex(), ErrUnsupportedAsset)
		}
		if bal == nil {
			continue
		}
		if bal.Sign() < 0 {
			return fmt.Errorf("restore %s: %w", asset.Hex(), ErrNegativeAmount)
		}
		next[asset].Set(bal)
	}
	p.balances = next
	return nil
}

func (p *Pool) lookup(asset common.Address, amount *big.Int) (*big.Int, error) {
	bal, ok := p.balances[asset]
	if !ok {
		return nil, fmt.Errorf("%s: %w", asset.Hex(), ErrUnsupportedAsset)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return bal, nil
}
