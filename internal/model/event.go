package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a record emitted by the vault after an operation commits.
type Event interface {
	// Name is the short event name, e.g. "AssetDeposited".
	Name() string
	// Signature is the canonical typed signature used to derive the topic.
	Signature() string
	Timestamp() time.Time
}

type AssetDeposited struct {
	Depositor common.Address `json:"depositor"`
	Asset     common.Address `json:"asset"`
	AmountIn  *big.Int       `json:"amount_in"`
	TokensOut *big.Int       `json:"tokens_out"`
	At        time.Time      `json:"at"`
}

func (AssetDeposited) Name() string { return "AssetDeposited" }
func (AssetDeposited) Signature() string {
	return "AssetDeposited(address,address,uint256,uint256)"
}
func (e AssetDeposited) Timestamp() time.Time { return e.At }

type TokensWithdrawn struct {
	Withdrawer   common.Address `json:"withdrawer"`
	SeniorBurned *big.Int       `json:"senior_burned"`
	JuniorBurned *big.Int       `json:"junior_burned"`
	AssetAOut    *big.Int       `json:"asset_a_out"`
	AssetBOut    *big.Int       `json:"asset_b_out"`
	At           time.Time      `json:"at"`
}

func (TokensWithdrawn) Name() string { return "TokensWithdrawn" }
func (TokensWithdrawn) Signature() string {
	return "TokensWithdrawn(address,uint256,uint256,uint256,uint256)"
}
func (e TokensWithdrawn) Timestamp() time.Time { return e.At }

type EmergencyWithdrawal struct {
	Withdrawer   common.Address `json:"withdrawer"`
	SeniorBurned *big.Int       `json:"senior_burned"`
	Asset        common.Address `json:"asset"`
	AmountOut    *big.Int       `json:"amount_out"`
	At           time.Time      `json:"at"`
}

func (EmergencyWithdrawal) Name() string { return "EmergencyWithdrawal" }
func (EmergencyWithdrawal) Signature() string {
	return "EmergencyWithdrawal(address,uint256,address,uint256)"
}
func (e EmergencyWithdrawal) Timestamp() time.Time { return e.At }

type PhaseTransitioned struct {
	OldPhase Phase     `json:"old_phase"`
	NewPhase Phase     `json:"new_phase"`
	Forced   bool      `json:"forced"`
	At       time.Time `json:"at"`
}

func (PhaseTransitioned) Name() string { return "PhaseTransitioned" }
func (PhaseTransitioned) Signature() string {
	return "PhaseTransitioned(uint8,uint8,uint256)"
}
func (e PhaseTransitioned) Timestamp() time.Time { return e.At }

type CycleStarted struct {
	Cycle uint64    `json:"cycle"`
	At    time.Time `json:"at"`
}

func (CycleStarted) Name() string           { return "CycleStarted" }
func (CycleStarted) Signature() string      { return "CycleStarted(uint256,uint256)" }
func (e CycleStarted) Timestamp() time.Time { return e.At }

type EmergencyModeToggled struct {
	IsActive bool      `json:"is_active"`
	At       time.Time `json:"at"`
}

func (EmergencyModeToggled) Name() string           { return "EmergencyModeToggled" }
func (EmergencyModeToggled) Signature() string      { return "EmergencyModeToggled(bool)" }
func (e EmergencyModeToggled) Timestamp() time.Time { return e.At }

type OwnershipTransferred struct {
	PreviousOwner common.Address `json:"previous_owner"`
	NewOwner      common.Address `json:"new_owner"`
	At            time.Time      `json:"at"`
}

func (OwnershipTransferred) Name() string { return "OwnershipTransferred" }
func (OwnershipTransferred) Signature() string {
	return "OwnershipTransferred(address,address)"
}
func (e OwnershipTransferred) Timestamp() time.Time { return e.At }
