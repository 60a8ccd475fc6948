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

// Payout is what a regular withdrawal sends to the withdrawer.
type Payout struct {
	AssetA *big.Int
	AssetB *big.Int
}

// Withdraw burns seniorAmt Senior and juniorAmt Junior from withdrawer and
// pays out their share (seniorAmt+juniorAmt)/TotalIssued of the pool.
//
// In ACTIVE both amounts must be equal; CLAIMS and FINAL_CLAIMS accept any
// combination. With model.Either() the share is taken from each asset's
// live accounted balance. With model.Specific(asset) the share of the total
// pool value is paid in that asset alone, capped by its accounted balance;
// the other asset is never drawn.
func (v *Vault) Withdraw(ctx context.Context, withdrawer common.Address, seniorAmt, juniorAmt *big.Int, pref model.Preference) (out Payout, err error) {
	f, err := v.begin(ctx)
	if err != nil {
		return Payout{}, err
	}
	defer f.end(&err)

	if v.emergency {
		return Payout{}, ErrEmergencyModeActive
	}
	seniorAmt, juniorAmt, err = normalizeAmounts(seniorAmt, juniorAmt)
	if err != nil {
		return Payout{}, err
	}
	burned := new(big.Int).Add(seniorAmt, juniorAmt)
	if burned.Sign() == 0 {
		return Payout{}, ErrNoTokensToWithdraw
	}
	if err := v.checkBalances(withdrawer, seniorAmt, juniorAmt); err != nil {
		return Payout{}, err
	}
	if v.clock.Current() == model.PhaseActive && seniorAmt.Cmp(juniorAmt) != 0 {
		return Payout{}, fmt.Errorf("%w in %s: senior %s, junior %s",
			ErrEqualAmountsRequired, model.PhaseActive, seniorAmt, juniorAmt)
	}

	assets := v.pool.Assets()
	out = Payout{AssetA: new(big.Int), AssetB: new(big.Int)}
	if asset, ok := pref.Asset(); ok {
		if !v.pool.Supports(asset) {
			return Payout{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Hex())
		}
		amt := v.singleAssetOut(burned, asset)
		if asset == assets[0] {
			out.AssetA = amt
		} else {
			out.AssetB = amt
		}
	} else {
		out.AssetA, out.AssetB = v.proportionalOut(burned)
	}

	if err := f.burn(v.seniorMint, withdrawer, seniorAmt); err != nil {
		return Payout{}, fmt.Errorf("%w: %v", ErrInsufficientTokenBalance, err)
	}
	if err := f.burn(v.juniorMint, withdrawer, juniorAmt); err != nil {
		return Payout{}, fmt.Errorf("%w: %v", ErrInsufficientTokenBalance, err)
	}
	f.retire(burned)
	if err := f.debit(assets[0], out.AssetA); err != nil {
		return Payout{}, err
	}
	if err := f.debit(assets[1], out.AssetB); err != nil {
		return Payout{}, err
	}

	for i, amt := range []*big.Int{out.AssetA, out.AssetB} {
		if amt.Sign() == 0 {
			continue
		}
		if err := v.custody.TransferOut(f.ctx, assets[i], withdrawer, amt); err != nil {
			return Payout{}, fmt.Errorf("transfer %s out to %s: %w", assets[i].Hex(), withdrawer.Hex(), err)
		}
		// a later leg may still fail; the paid leg must then come back
		f.onRevert(func() { f.reclaim(assets[i], withdrawer, amt) })
	}

	f.emit(model.TokensWithdrawn{
		Withdrawer:   withdrawer,
		SeniorBurned: seniorAmt,
		JuniorBurned: juniorAmt,
		AssetAOut:    new(big.Int).Set(out.AssetA),
		AssetBOut:    new(big.Int).Set(out.AssetB),
		At:           v.now(),
	})
	log.WithFields(logrus.Fields{
		"withdrawer":  withdrawer.Hex(),
		"senior":      seniorAmt,
		"junior":      juniorAmt,
		"preference":  pref,
		"asset_a_out": out.AssetA,
		"asset_b_out": out.AssetB,
	}).Info("withdrawal paid")
	return out, nil
}

// CalculateWithdrawalAmounts previews the payout of a withdrawal with no
// asset preference. It does not check balances or phase rules.
func (v *Vault) CalculateWithdrawalAmounts(seniorAmt, juniorAmt *big.Int) (assetAOut, assetBOut *big.Int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	burned, err := v.previewShare(seniorAmt, juniorAmt)
	if err != nil {
		return nil, nil, err
	}
	assetAOut, assetBOut = v.proportionalOut(burned)
	return assetAOut, assetBOut, nil
}

// CalculateSingleAssetWithdrawal previews the payout of a withdrawal drawn
// from asset alone.
func (v *Vault) CalculateSingleAssetWithdrawal(seniorAmt, juniorAmt *big.Int, asset common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.pool.Supports(asset) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset.Hex())
	}
	burned, err := v.previewShare(seniorAmt, juniorAmt)
	if err != nil {
		return nil, err
	}
	return v.singleAssetOut(burned, asset), nil
}

func (v *Vault) previewShare(seniorAmt, juniorAmt *big.Int) (*big.Int, error) {
	seniorAmt, juniorAmt, err := normalizeAmounts(seniorAmt, juniorAmt)
	if err != nil {
		return nil, err
	}
	burned := new(big.Int).Add(seniorAmt, juniorAmt)
	if burned.Cmp(v.totalIssued) > 0 {
		return nil, fmt.Errorf("%w: %s exceeds total issued %s", ErrInsufficientTokenBalance, burned, v.totalIssued)
	}
	return burned, nil
}

// proportionalOut is floor(balance * burned / TotalIssued) for each asset.
func (v *Vault) proportionalOut(burned *big.Int) (*big.Int, *big.Int) {
	assets := v.pool.Assets()
	return mulDiv(v.pool.Balance(assets[0]), burned, v.totalIssued),
		mulDiv(v.pool.Balance(assets[1]), burned, v.totalIssued)
}

// singleAssetOut is min(totalValue * burned / TotalIssued, balance(asset)).
func (v *Vault) singleAssetOut(burned *big.Int, asset common.Address) *big.Int {
	desired := mulDiv(v.pool.TotalValue(), burned, v.totalIssued)
	return new(big.Int).Set(math.BigMin(desired, v.pool.Balance(asset)))
}

func (v *Vault) checkBalances(holder common.Address, seniorAmt, juniorAmt *big.Int) error {
	if bal := v.senior.BalanceOf(holder); bal.Cmp(seniorAmt) < 0 {
		return fmt.Errorf("%w: senior balance %s, requested %s", ErrInsufficientTokenBalance, bal, seniorAmt)
	}
	if bal := v.junior.BalanceOf(holder); bal.Cmp(juniorAmt) < 0 {
		return fmt.Errorf("%w: junior balance %s, requested %s", ErrInsufficientTokenBalance, bal, juniorAmt)
	}
	return nil
}

// mulDiv returns floor(a*b/c), or zero when c is zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	if c.Sign() == 0 {
		return new(big.Int)
	}
	n := new(big.Int).Mul(a, b)
	return n.Quo(n, c)
}

func normalizeAmounts(seniorAmt, juniorAmt *big.Int) (*big.Int, *big.Int, error) {
	s, j := new(big.Int), new(big.Int)
	if seniorAmt != nil {
		s.Set(seniorAmt)
	}
	if juniorAmt != nil {
		j.Set(juniorAmt)
	}
	if s.Sign() < 0 || j.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: negative amount", ErrNoTokensToWithdraw)
	}
	return s, j, nil
}
