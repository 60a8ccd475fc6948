package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrancheVault/internal/custody"
	"TrancheVault/internal/model"
)

func TestWithdraw_RoundTripSoleDepositor(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, user1, assetB, 378)

	out, err := fx.v.Withdraw(context.Background(), user1, bi(189), bi(189), model.Either())
	require.NoError(t, err)
	assert.Zero(t, out.AssetA.Sign())
	assert.Equal(t, int64(378), out.AssetB.Int64())
	assert.Equal(t, int64(1000), fx.ledger.BalanceOf(assetB, user1).Int64())
	assert.Zero(t, fx.v.TotalIssued().Sign())
	assert.Zero(t, fx.v.TotalValue().Sign())
	requireInvariants(t, fx.v)
}

func TestWithdraw_ScenarioB(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 100)
	require.Equal(t, model.PhaseActive, fx.v.Phase())

	// a quarter of the issued claims takes a quarter of each asset
	out, err := fx.v.Withdraw(context.Background(), user1, bi(25), bi(25), model.Either())
	require.NoError(t, err)
	assert.Equal(t, int64(25), out.AssetA.Int64())
	assert.Equal(t, int64(25), out.AssetB.Int64())
	requireInvariants(t, fx.v)

	// the remaining half of user1's claims is worth the rest of their
	// deposit, paid out of the mixed pool
	out, err = fx.v.Withdraw(context.Background(), user1, bi(25), bi(25), model.Either())
	require.NoError(t, err)
	assert.Equal(t, int64(25), out.AssetA.Int64())
	assert.Equal(t, int64(25), out.AssetB.Int64())
	assert.Equal(t, int64(950), fx.ledger.BalanceOf(assetA, user1).Int64())
	assert.Equal(t, int64(1050), fx.ledger.BalanceOf(assetB, user1).Int64())
	assert.Equal(t, int64(100), fx.v.TotalIssued().Int64())
	requireInvariants(t, fx.v)

	last, ok := fx.events[len(fx.events)-1].(model.TokensWithdrawn)
	require.True(t, ok)
	assert.Equal(t, int64(25), last.SeniorBurned.Int64())
	assert.Equal(t, int64(25), last.AssetBOut.Int64())
}

func TestWithdraw_ProportionalRoundsDown(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 200)

	// share 34/300 of 100 A = 11.33 -> 11, of 200 B = 22.67 -> 22
	a, b, err := fx.v.CalculateWithdrawalAmounts(bi(17), bi(17))
	require.NoError(t, err)
	assert.Equal(t, int64(11), a.Int64())
	assert.Equal(t, int64(22), b.Int64())

	out, err := fx.v.Withdraw(context.Background(), user1, bi(17), bi(17), model.Either())
	require.NoError(t, err)
	assert.Equal(t, a.Int64(), out.AssetA.Int64())
	assert.Equal(t, b.Int64(), out.AssetB.Int64())
	assert.Equal(t, int64(89), fx.v.PoolBalance(assetA).Int64())
	assert.Equal(t, int64(178), fx.v.PoolBalance(assetB).Int64())
	requireInvariants(t, fx.v)
}

func TestWithdraw_PhaseGating(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.deposit(t, user1, assetA, 100)

	_, err := fx.v.Withdraw(ctx, user1, bi(10), bi(0), model.Either())
	require.ErrorIs(t, err, ErrEqualAmountsRequired)
	_, err = fx.v.Withdraw(ctx, user1, bi(10), bi(20), model.Either())
	require.ErrorIs(t, err, ErrEqualAmountsRequired)

	_, err = fx.v.ForceAdvance(ctx, owner)
	require.NoError(t, err)
	out, err := fx.v.Withdraw(ctx, user1, bi(10), bi(20), model.Either())
	require.NoError(t, err, "CLAIMS accepts unequal amounts")
	assert.Equal(t, int64(30), out.AssetA.Int64())

	_, err = fx.v.ForceAdvance(ctx, owner)
	require.NoError(t, err)
	_, err = fx.v.Withdraw(ctx, user1, bi(0), bi(5), model.Either())
	require.NoError(t, err, "FINAL_CLAIMS accepts unequal amounts")
	requireInvariants(t, fx.v)
}

func TestWithdraw_ScenarioC(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.deposit(t, user1, assetA, 100)

	for i := 0; i < 2; i++ {
		_, err := fx.v.ForceAdvance(ctx, owner)
		require.NoError(t, err)
	}
	require.Equal(t, model.PhaseFinalClaims, fx.v.Phase())

	out, err := fx.v.Withdraw(ctx, user1, bi(50), bi(0), model.Either())
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.AssetA.Int64())
	h := fx.v.Holder(user1)
	assert.Zero(t, h.Senior.Sign())
	assert.Equal(t, int64(50), h.Junior.Int64())
	requireInvariants(t, fx.v)
}

func TestWithdraw_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.deposit(t, user1, assetA, 100)

	_, err := fx.v.Withdraw(ctx, user1, bi(0), bi(0), model.Either())
	require.ErrorIs(t, err, ErrNoTokensToWithdraw)
	_, err = fx.v.Withdraw(ctx, user1, nil, nil, model.Either())
	require.ErrorIs(t, err, ErrNoTokensToWithdraw)
	_, err = fx.v.Withdraw(ctx, user1, bi(-1), bi(1), model.Either())
	require.ErrorIs(t, err, ErrNoTokensToWithdraw)

	_, err = fx.v.Withdraw(ctx, user1, bi(51), bi(51), model.Either())
	require.ErrorIs(t, err, ErrInsufficientTokenBalance)
	_, err = fx.v.Withdraw(ctx, user2, bi(1), bi(1), model.Either())
	require.ErrorIs(t, err, ErrInsufficientTokenBalance)

	_, err = fx.v.Withdraw(ctx, user1, bi(10), bi(10), model.Specific(common.HexToAddress("0xdead")))
	require.ErrorIs(t, err, ErrUnsupportedAsset)

	assert.Equal(t, int64(100), fx.v.TotalIssued().Int64())
	assert.Len(t, fx.events, 1)
}

func TestWithdraw_SingleAssetCappedByLiquidity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 300)

	// user2 owns 300/400 of the pool; 300 of asset A is wanted but only
	// 100 is accounted, and asset B is never drawn on this path
	amt, err := fx.v.CalculateSingleAssetWithdrawal(bi(150), bi(150), assetA)
	require.NoError(t, err)
	assert.Equal(t, int64(100), amt.Int64())

	out, err := fx.v.Withdraw(ctx, user2, bi(150), bi(150), model.Specific(assetA))
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.AssetA.Int64())
	assert.Zero(t, out.AssetB.Sign())
	assert.Zero(t, fx.v.PoolBalance(assetA).Sign())
	assert.Equal(t, int64(300), fx.v.PoolBalance(assetB).Int64())
	assert.Equal(t, int64(100), fx.v.TotalIssued().Int64())
	requireInvariants(t, fx.v)
}

func TestWithdraw_SingleAssetUsesTotalValue(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 100)

	out, err := fx.v.Withdraw(context.Background(), user1, bi(50), bi(50), model.Specific(assetB))
	require.NoError(t, err)
	assert.Zero(t, out.AssetA.Sign())
	assert.Equal(t, int64(100), out.AssetB.Int64())
	assert.Equal(t, int64(1100), fx.ledger.BalanceOf(assetB, user1).Int64())
	requireInvariants(t, fx.v)
}

func TestWithdraw_SecondaryMarketHolder(t *testing.T) {
	fx := newFixture(t)
	fx.deposit(t, user1, assetA, 100)

	// claims traded away redeem for the buyer, not the original depositor
	require.NoError(t, fx.v.Senior().Transfer(user1, user2, bi(30)))
	require.NoError(t, fx.v.Junior().Transfer(user1, user2, bi(30)))

	out, err := fx.v.Withdraw(context.Background(), user2, bi(30), bi(30), model.Either())
	require.NoError(t, err)
	assert.Equal(t, int64(60), out.AssetA.Int64())
	assert.Equal(t, int64(1060), fx.ledger.BalanceOf(assetA, user2).Int64())

	_, err = fx.v.Withdraw(context.Background(), user1, bi(21), bi(21), model.Either())
	require.ErrorIs(t, err, ErrInsufficientTokenBalance)
	requireInvariants(t, fx.v)
}

func TestWithdraw_RejectedInEmergency(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.deposit(t, user1, assetA, 100)
	_, err := fx.v.ToggleEmergencyMode(ctx, owner)
	require.NoError(t, err)

	_, err = fx.v.Withdraw(ctx, user1, bi(10), bi(10), model.Either())
	require.ErrorIs(t, err, ErrEmergencyModeActive)
	_, err = fx.v.Withdraw(ctx, user1, bi(0), bi(10), model.Specific(assetA))
	require.ErrorIs(t, err, ErrEmergencyModeActive)
}

func TestCalculate_Previews(t *testing.T) {
	fx := newFixture(t)

	a, b, err := fx.v.CalculateWithdrawalAmounts(bi(0), bi(0))
	require.NoError(t, err)
	assert.Zero(t, a.Sign())
	assert.Zero(t, b.Sign())

	fx.deposit(t, user1, assetA, 100)
	_, _, err = fx.v.CalculateWithdrawalAmounts(bi(60), bi(60))
	require.ErrorIs(t, err, ErrInsufficientTokenBalance)

	_, err = fx.v.CalculateSingleAssetWithdrawal(bi(1), bi(1), common.Address{})
	require.ErrorIs(t, err, ErrUnsupportedAsset)

	// previews have no side effects
	assert.Equal(t, int64(100), fx.v.PoolBalance(assetA).Int64())
	assert.Len(t, fx.events, 1)
}

type flakyCustody struct {
	*custody.Ledger
	failOut bool
}

func (c *flakyCustody) TransferOut(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if c.failOut {
		return errors.New("asset contract reverted")
	}
	return c.Ledger.TransferOut(ctx, asset, to, amount)
}

func TestWithdraw_RolledBackWhenPayoutFails(t *testing.T) {
	ledger := custody.NewLedger(vaultAcct)
	cust := &flakyCustody{Ledger: ledger}
	fx := newFixtureWith(t, ledger, cust)
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 100)
	before := fx.v.Status()

	cust.failOut = true
	_, err := fx.v.Withdraw(context.Background(), user1, bi(50), bi(50), model.Either())
	require.Error(t, err)

	after := fx.v.Status()
	for i := range before.Pools {
		assert.Equal(t, before.Pools[i].Balance.String(), after.Pools[i].Balance.String())
	}
	assert.Equal(t, before.TotalIssued.String(), after.TotalIssued.String())
	h := fx.v.Holder(user1)
	assert.Equal(t, int64(50), h.Senior.Int64())
	assert.Equal(t, int64(50), h.Junior.Int64())
	assert.Len(t, fx.events, 2)
	assert.False(t, fx.v.Busy())
	requireInvariants(t, fx.v)
}

type reentrantCustody struct {
	*custody.Ledger
	v          *Vault
	busy       bool
	reentryErr error
}

func (c *reentrantCustody) TransferOut(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	c.busy = c.v.Busy()
	_, c.reentryErr = c.v.Withdraw(ctx, to, bi(10), bi(10), model.Either())
	return c.Ledger.TransferOut(ctx, asset, to, amount)
}

func TestWithdraw_ReentryRejected(t *testing.T) {
	ledger := custody.NewLedger(vaultAcct)
	cust := &reentrantCustody{Ledger: ledger}
	fx := newFixtureWith(t, ledger, cust)
	cust.v = fx.v
	fx.deposit(t, user1, assetA, 100)

	out, err := fx.v.Withdraw(context.Background(), user1, bi(20), bi(20), model.Either())
	require.NoError(t, err)
	assert.Equal(t, int64(40), out.AssetA.Int64())
	assert.True(t, cust.busy)
	require.ErrorIs(t, cust.reentryErr, ErrReentrantCall)
	assert.Equal(t, KindState, Classify(cust.reentryErr))

	assert.Equal(t, int64(60), fx.v.TotalIssued().Int64())
	assert.Equal(t, int64(60), fx.v.PoolBalance(assetA).Int64())
	assert.False(t, fx.v.Busy())
	requireInvariants(t, fx.v)
}

// legCustody fails TransferOut for one asset only.
type legCustody struct {
	*custody.Ledger
	failAsset common.Address
}

func (c *legCustody) TransferOut(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if asset == c.failAsset {
		return errors.New("asset contract reverted")
	}
	return c.Ledger.TransferOut(ctx, asset, to, amount)
}

func TestWithdraw_SecondLegFailureReturnsFirstLeg(t *testing.T) {
	ledger := custody.NewLedger(vaultAcct)
	cust := &legCustody{Ledger: ledger}
	fx := newFixtureWith(t, ledger, cust)
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 100)
	before := fx.v.Status()
	user1A := ledger.BalanceOf(assetA, user1).Int64()
	user1B := ledger.BalanceOf(assetB, user1).Int64()

	cust.failAsset = assetB
	_, err := fx.v.Withdraw(context.Background(), user1, bi(50), bi(50), model.Either())
	require.Error(t, err)

	assert.Equal(t, user1A, ledger.BalanceOf(assetA, user1).Int64())
	assert.Equal(t, user1B, ledger.BalanceOf(assetB, user1).Int64())
	assert.Equal(t, int64(100), ledger.BalanceOf(assetA, vaultAcct).Int64())
	assert.Equal(t, int64(100), ledger.BalanceOf(assetB, vaultAcct).Int64())

	after := fx.v.Status()
	for i := range before.Pools {
		assert.Equal(t, before.Pools[i].Balance.String(), after.Pools[i].Balance.String())
	}
	h := fx.v.Holder(user1)
	assert.Equal(t, int64(50), h.Senior.Int64())
	assert.Equal(t, int64(50), h.Junior.Int64())
	requireInvariants(t, fx.v)

	// the restored pool still pays out in full once custody recovers
	cust.failAsset = common.Address{}
	out, err := fx.v.Withdraw(context.Background(), user1, bi(50), bi(50), model.Either())
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.AssetA.Int64())
	assert.Equal(t, int64(50), out.AssetB.Int64())
	assert.Equal(t, int64(50), ledger.BalanceOf(assetA, vaultAcct).Int64())
}

// slowFailCustody lets another goroutine read holder balances while a
// withdrawal is mid-flight, then fails the payout.
type slowFailCustody struct {
	*custody.Ledger
	v    *Vault
	seen chan model.HolderBalance
}

func (c *slowFailCustody) TransferOut(_ context.Context, _, to common.Address, _ *big.Int) error {
	go func() { c.seen <- c.v.Holder(to) }()
	time.Sleep(20 * time.Millisecond)
	return errors.New("asset contract reverted")
}

func TestHolder_NeverSeesUncommittedBurn(t *testing.T) {
	ledger := custody.NewLedger(vaultAcct)
	cust := &slowFailCustody{Ledger: ledger, seen: make(chan model.HolderBalance, 1)}
	fx := newFixtureWith(t, ledger, cust)
	cust.v = fx.v
	fx.deposit(t, user1, assetA, 100)

	_, err := fx.v.Withdraw(context.Background(), user1, bi(50), bi(50), model.Either())
	require.Error(t, err)

	select {
	case h := <-cust.seen:
		assert.Equal(t, int64(50), h.Senior.Int64())
		assert.Equal(t, int64(50), h.Junior.Int64())
	case <-time.After(2 * time.Second):
		t.Fatal("holder read did not complete")
	}
}
