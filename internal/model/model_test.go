package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_NextStopsAtFinalClaims(t *testing.T) {
	next, ok := PhaseActive.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseClaims, next)

	next, ok = PhaseClaims.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseFinalClaims, next)

	next, ok = PhaseFinalClaims.Next()
	assert.False(t, ok)
	assert.Equal(t, PhaseFinalClaims, next)
}

func TestPhase_TextEncoding(t *testing.T) {
	b, err := json.Marshal(struct{ P Phase }{PhaseFinalClaims})
	require.NoError(t, err)
	assert.JSONEq(t, `{"P":"FINAL_CLAIMS"}`, string(b))

	var got struct{ P Phase }
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, PhaseFinalClaims, got.P)

	_, err = ParsePhase("DEPOSIT")
	assert.Error(t, err)
	_, err = Phase(7).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Phase(7)", Phase(7).String())
}

func TestPhaseDurations_For(t *testing.T) {
	d := PhaseDurations{Active: time.Hour, Claims: 2 * time.Hour, FinalClaims: 3 * time.Hour}
	assert.Equal(t, time.Hour, d.For(PhaseActive))
	assert.Equal(t, 2*time.Hour, d.For(PhaseClaims))
	assert.Equal(t, 3*time.Hour, d.For(PhaseFinalClaims))
}

func TestPreference(t *testing.T) {
	assert.True(t, Either().IsEither())
	_, ok := Either().Asset()
	assert.False(t, ok)

	a := common.HexToAddress("0x1001")
	p := Specific(a)
	assert.False(t, p.IsEither())
	got, ok := p.Asset()
	assert.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, a.Hex(), p.String())
	assert.Equal(t, "either", Either().String())
}

func TestEvents_Signatures(t *testing.T) {
	events := []Event{
		AssetDeposited{}, TokensWithdrawn{}, EmergencyWithdrawal{},
		PhaseTransitioned{}, CycleStarted{}, EmergencyModeToggled{}, OwnershipTransferred{},
	}
	seen := map[string]bool{}
	for _, e := range events {
		assert.Contains(t, e.Signature(), e.Name()+"(")
		assert.False(t, seen[e.Name()], e.Name())
		seen[e.Name()] = true
	}
}
