package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenState is the serialized ledger of a claim token.
type TokenState struct {
	Balances   map[common.Address]*big.Int                    `json:"balances"`
	Allowances map[common.Address]map[common.Address]*big.Int `json:"allowances,omitempty"`
}

// VaultState is everything needed to rebuild a vault after a restart.
type VaultState struct {
	AssetA      common.Address              `json:"asset_a"`
	AssetB      common.Address              `json:"asset_b"`
	Owner       common.Address              `json:"owner"`
	Pools       map[common.Address]*big.Int `json:"pools"`
	TotalIssued *big.Int                    `json:"total_issued"`
	Phase       PhaseState                  `json:"phase"`
	Emergency   bool                        `json:"emergency"`
	Senior      TokenState                  `json:"senior"`
	Junior      TokenState                  `json:"junior"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// PoolBalance is the accounted balance of one supported asset.
type PoolBalance struct {
	Asset   common.Address `json:"asset"`
	Balance *big.Int       `json:"balance"`
}

// VaultStatus is the read-only view consumed by dashboards and reports.
type VaultStatus struct {
	Pools            []PoolBalance  `json:"pools"`
	TotalValueLocked *big.Int       `json:"total_value_locked"`
	TotalIssued      *big.Int       `json:"total_issued"`
	SeniorSupply     *big.Int       `json:"senior_supply"`
	JuniorSupply     *big.Int       `json:"junior_supply"`
	Phase            Phase          `json:"phase"`
	PhaseStart       time.Time      `json:"phase_start"`
	CycleStart       time.Time      `json:"cycle_start"`
	Cycle            uint64         `json:"cycle"`
	TimeRemaining    time.Duration  `json:"time_remaining"`
	Emergency        bool           `json:"emergency"`
	Owner            common.Address `json:"owner"`
	AsOf             time.Time      `json:"as_of"`
}

// HolderBalance is one holder's position in both tranches.
type HolderBalance struct {
	Holder common.Address `json:"holder"`
	Senior *big.Int       `json:"senior"`
	Junior *big.Int       `json:"junior"`
}
