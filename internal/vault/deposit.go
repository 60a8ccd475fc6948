package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/model"
)

// Deposit pulls amount of asset from depositor into custody, credits the
// asset's accounted balance and mints amount/2 of each tranche to depositor.
// Deposits are accepted in every phase but never in emergency mode.
func (v *Vault) Deposit(ctx context.Context, depositor, asset common.Address, amount *big.Int) (err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return err
	}
	defer f.end(&err)

	if v.emergency {
		return ErrEmergencyModeActive
	}
	if !v.pool.Supports(asset) {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Hex())
	}
	if depositor == (common.Address{}) {
		return fmt.Errorf("%w: zero depositor", ErrInvalidAddress)
	}
	if amount == nil || amount.Cmp(v.minDeposit) < 0 {
		return fmt.Errorf("%w: %v below minimum %s", ErrInsufficientDepositAmount, amount, v.minDeposit)
	}
	if amount.Bit(0) != 0 {
		return fmt.Errorf("%w: %s", ErrUnevenDepositAmount, amount)
	}

	amount = new(big.Int).Set(amount)
	half := new(big.Int).Rsh(amount, 1)

	if err := f.credit(asset, amount); err != nil {
		return err
	}
	if err := f.mint(v.seniorMint, depositor, half); err != nil {
		return fmt.Errorf("mint senior: %w", err)
	}
	if err := f.mint(v.juniorMint, depositor, half); err != nil {
		return fmt.Errorf("mint junior: %w", err)
	}
	f.issue(amount)

	if err := v.custody.TransferIn(f.ctx, asset, depositor, amount); err != nil {
		return fmt.Errorf("transfer %s in from %s: %w", asset.Hex(), depositor.Hex(), err)
	}

	f.emit(model.AssetDeposited{
		Depositor: depositor,
		Asset:     asset,
		AmountIn:  amount,
		TokensOut: new(big.Int).Set(amount),
		At:        v.now(),
	})
	log.WithFields(logrus.Fields{
		"depositor": depositor.Hex(),
		"asset":     asset.Hex(),
		"amount":    amount,
	}).Info("deposit accepted")
	return nil
}
