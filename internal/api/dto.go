package api

import (
	"math/big"
	"time"

	"TrancheVault/internal/model"
	"TrancheVault/internal/notifier"
)

// Amount carries the raw integer and its display form; JSON numbers cannot
// hold 256-bit values.
type Amount struct {
	Raw     string `json:"raw"`
	Display string `json:"display"`
}

func newAmount(x *big.Int, decimals int32) Amount {
	if x == nil {
		x = new(big.Int)
	}
	return Amount{Raw: x.String(), Display: notifier.FormatAmount(x, decimals)}
}

type poolDTO struct {
	Asset   string `json:"asset"`
	Balance Amount `json:"balance"`
}

type statusDTO struct {
	Pools            []poolDTO `json:"pools"`
	TotalValueLocked Amount    `json:"total_value_locked"`
	TotalIssued      Amount    `json:"total_issued"`
	SeniorSupply     Amount    `json:"senior_supply"`
	JuniorSupply     Amount    `json:"junior_supply"`
	Phase            string    `json:"phase"`
	PhaseStart       time.Time `json:"phase_start"`
	CycleStart       time.Time `json:"cycle_start"`
	Cycle            uint64    `json:"cycle"`
	TimeRemainingSec int64     `json:"time_remaining_seconds"`
	Emergency        bool      `json:"emergency"`
	Owner            string    `json:"owner"`
	AsOf             time.Time `json:"as_of"`
}

func newStatusDTO(st model.VaultStatus, decimals int32) statusDTO {
	pools := make([]poolDTO, len(st.Pools))
	for i, p := range st.Pools {
		pools[i] = poolDTO{Asset: p.Asset.Hex(), Balance: newAmount(p.Balance, decimals)}
	}
	return statusDTO{
		Pools:            pools,
		TotalValueLocked: newAmount(st.TotalValueLocked, decimals),
		TotalIssued:      newAmount(st.TotalIssued, decimals),
		SeniorSupply:     newAmount(st.SeniorSupply, decimals),
		JuniorSupply:     newAmount(st.JuniorSupply, decimals),
		Phase:            st.Phase.String(),
		PhaseStart:       st.PhaseStart,
		CycleStart:       st.CycleStart,
		Cycle:            st.Cycle,
		TimeRemainingSec: int64(st.TimeRemaining / time.Second),
		Emergency:        st.Emergency,
		Owner:            st.Owner.Hex(),
		AsOf:             st.AsOf,
	}
}

type holderDTO struct {
	Holder string `json:"holder"`
	Senior Amount `json:"senior"`
	Junior Amount `json:"junior"`
}

type previewDTO struct {
	Senior    Amount  `json:"senior"`
	Junior    Amount  `json:"junior"`
	Asset     string  `json:"asset,omitempty"`
	AssetAOut *Amount `json:"asset_a_out,omitempty"`
	AssetBOut *Amount `json:"asset_b_out,omitempty"`
	AmountOut *Amount `json:"amount_out,omitempty"`
	// Whether Withdraw would accept these amounts in the current phase.
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type errorDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
