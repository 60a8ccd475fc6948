package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/model"
)

// ToggleEmergencyMode flips the emergency flag and returns the new value.
func (v *Vault) ToggleEmergencyMode(ctx context.Context, caller common.Address) (active bool, err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return false, err
	}
	defer f.end(&err)

	if err := v.onlyOwner(caller); err != nil {
		return false, err
	}
	v.emergency = !v.emergency
	f.emit(model.EmergencyModeToggled{IsActive: v.emergency, At: v.now()})
	log.WithField("active", v.emergency).Warn("emergency mode toggled")
	return v.emergency, nil
}

// EmergencyWithdraw redeems seniorAmt Senior for
// min(seniorAmt * totalValue / TotalIssued, balance(asset)) of asset.
// Only Senior is burned; Junior holders have no exit while emergency mode
// is active.
func (v *Vault) EmergencyWithdraw(ctx context.Context, withdrawer common.Address, seniorAmt *big.Int, asset common.Address) (amountOut *big.Int, err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer f.end(&err)

	if !v.emergency {
		return nil, ErrEmergencyModeNotActive
	}
	if seniorAmt == nil || seniorAmt.Sign() == 0 {
		return nil, ErrNoTokensToWithdraw
	}
	if seniorAmt.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrNoTokensToWithdraw)
	}
	seniorAmt = new(big.Int).Set(seniorAmt)
	if bal := v.senior.BalanceOf(withdrawer); bal.Cmp(seniorAmt) < 0 {
		return nil, fmt.Errorf("%w: senior balance %s, requested %s", ErrInsufficientTokenBalance, bal, seniorAmt)
	}
	if !v.pool.Supports(asset) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Hex())
	}

	desired := mulDiv(seniorAmt, v.pool.TotalValue(), v.totalIssued)
	amountOut = new(big.Int).Set(math.BigMin(desired, v.pool.Balance(asset)))

	if err := f.burn(v.seniorMint, withdrawer, seniorAmt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientTokenBalance, err)
	}
	f.retire(seniorAmt)
	if err := f.debit(asset, amountOut); err != nil {
		return nil, err
	}
	if amountOut.Sign() > 0 {
		if err := v.custody.TransferOut(f.ctx, asset, withdrawer, amountOut); err != nil {
			return nil, fmt.Errorf("transfer %s out to %s: %w", asset.Hex(), withdrawer.Hex(), err)
		}
	}

	f.emit(model.EmergencyWithdrawal{
		Withdrawer:   withdrawer,
		SeniorBurned: seniorAmt,
		Asset:        asset,
		AmountOut:    new(big.Int).Set(amountOut),
		At:           v.now(),
	})
	log.WithFields(logrus.Fields{
		"withdrawer": withdrawer.Hex(),
		"senior":     seniorAmt,
		"asset":      asset.Hex(),
		"amount_out": amountOut,
	}).Warn("emergency withdrawal paid")
	return amountOut, nil
}
