package vault

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrancheVault/internal/model"
)

func TestAdvanceIfDue(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.v.AdvanceIfDue(ctx, owner)
	require.ErrorIs(t, err, ErrPhaseTransitionNotReady)
	assert.Equal(t, KindState, Classify(err))

	fx.clock.Advance(testDurations.Active)
	_, err = fx.v.AdvanceIfDue(ctx, user1)
	require.ErrorIs(t, err, ErrUnauthorized)

	p, err := fx.v.AdvanceIfDue(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseClaims, p)
	require.Len(t, fx.events, 1)
	assert.Equal(t, model.PhaseTransitioned{
		OldPhase: model.PhaseActive,
		NewPhase: model.PhaseClaims,
		At:       genesis.Add(testDurations.Active),
	}, fx.events[0])

	fx.clock.Advance(testDurations.Claims)
	p, err = fx.v.AdvanceIfDue(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFinalClaims, p)

	fx.clock.Advance(testDurations.FinalClaims)
	p, err = fx.v.AdvanceIfDue(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFinalClaims, p, "final phase only leaves through a restart")
	assert.Len(t, fx.events, 2)
}

func TestStatus_PhaseLagsUntilAdvanced(t *testing.T) {
	fx := newFixture(t)
	fx.clock.Advance(testDurations.Active + time.Hour)

	st := fx.v.Status()
	assert.Equal(t, model.PhaseActive, st.Phase)
	assert.Zero(t, st.TimeRemaining)
	assert.Equal(t, uint64(1), st.Cycle)
}

func TestRestartCycle_ScenarioE(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.deposit(t, user1, assetA, 100)
	fx.deposit(t, user2, assetB, 60)

	for i := 0; i < 2; i++ {
		_, err := fx.v.ForceAdvance(ctx, owner)
		require.NoError(t, err)
	}
	fx.clock.Advance(testDurations.FinalClaims - time.Second)
	_, err := fx.v.RestartCycle(ctx, owner)
	require.ErrorIs(t, err, ErrPhaseTransitionNotReady)
	assert.Equal(t, model.PhaseFinalClaims, fx.v.Phase())

	fx.clock.Advance(time.Second)
	_, err = fx.v.RestartCycle(ctx, user1)
	require.ErrorIs(t, err, ErrUnauthorized)

	cycle, err := fx.v.RestartCycle(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cycle)

	st := fx.v.Status()
	assert.Equal(t, model.PhaseActive, st.Phase)
	assert.Equal(t, fx.clock.Now(), st.PhaseStart)
	assert.Equal(t, fx.clock.Now(), st.CycleStart)
	assert.Equal(t, int64(100), fx.v.PoolBalance(assetA).Int64())
	assert.Equal(t, int64(60), fx.v.PoolBalance(assetB).Int64())
	assert.Equal(t, int64(160), st.TotalIssued.Int64())
	requireInvariants(t, fx.v)

	evt, ok := fx.events[len(fx.events)-1].(model.CycleStarted)
	require.True(t, ok)
	assert.Equal(t, uint64(2), evt.Cycle)
}

func TestRestartCycle_OutsideFinalClaims(t *testing.T) {
	fx := newFixture(t)
	fx.clock.Advance(365 * 24 * time.Hour)
	_, err := fx.v.RestartCycle(context.Background(), owner)
	require.ErrorIs(t, err, ErrPhaseTransitionNotReady)
}

func TestForceAdvance_FromFinalClaimsIsNoop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := fx.v.ForceAdvance(ctx, owner)
		require.NoError(t, err)
	}
	assert.Equal(t, model.PhaseFinalClaims, fx.v.Phase())
	require.Len(t, fx.events, 2)
	assert.True(t, fx.events[1].(model.PhaseTransitioned).Forced)

	_, err := fx.v.ForceAdvance(ctx, user2)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestOwnership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, fx.v.TransferOwnership(ctx, user1, user1), ErrUnauthorized)
	require.ErrorIs(t, fx.v.TransferOwnership(ctx, owner, common.Address{}), ErrInvalidAddress)

	require.NoError(t, fx.v.TransferOwnership(ctx, owner, user2))
	assert.Equal(t, user2, fx.v.Owner())
	_, err := fx.v.ToggleEmergencyMode(ctx, owner)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = fx.v.ToggleEmergencyMode(ctx, user2)
	require.NoError(t, err)

	require.NoError(t, fx.v.RenounceOwnership(ctx, user2))
	assert.Equal(t, common.Address{}, fx.v.Owner())

	for _, caller := range []common.Address{owner, user2, {}} {
		_, err = fx.v.ToggleEmergencyMode(ctx, caller)
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = fx.v.ForceAdvance(ctx, caller)
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = fx.v.AdvanceIfDue(ctx, caller)
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = fx.v.RestartCycle(ctx, caller)
		require.ErrorIs(t, err, ErrUnauthorized)
		require.ErrorIs(t, fx.v.TransferOwnership(ctx, caller, owner), ErrUnauthorized)
	}

	transfers := 0
	for _, e := range fx.events {
		if _, ok := e.(model.OwnershipTransferred); ok {
			transfers++
		}
	}
	assert.Equal(t, 2, transfers)
}

func TestMutations_RejectCancelledContext(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fx.v.Deposit(ctx, user1, assetA, bi(100)), context.Canceled)
	assert.Zero(t, fx.v.TotalIssued().Sign())
}
