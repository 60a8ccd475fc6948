// Package vault implements the tranche vault: paired Senior/Junior issuance
// on deposit, phase-gated proportional redemption, and senior-only exits
// while emergency mode is active.
//
// Every mutating entry point runs under a single writer lock and either
// commits all of its ledger effects or none of them.
package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/custody"
	"TrancheVault/internal/model"
	"TrancheVault/internal/phase"
	"TrancheVault/internal/pool"
	"TrancheVault/internal/token"
)

var log = logrus.WithField("module", "vault")

const (
	SeniorName   = "Senior Tranche"
	SeniorSymbol = "SNR"
	JuniorName   = "Junior Tranche"
	JuniorSymbol = "JNR"
)

// DefaultMinDeposit applies when Config.MinDeposit is nil.
var DefaultMinDeposit = big.NewInt(10)

// Config fixes the vault's assets, initial owner and rules.
type Config struct {
	AssetA     common.Address
	AssetB     common.Address
	Owner      common.Address
	MinDeposit *big.Int
	Durations  model.PhaseDurations
}

// Option customizes a Vault.
type Option func(*Vault)

// WithStore persists state after every committed mutation.
func WithStore(s Store) Option { return func(v *Vault) { v.store = s } }

// WithNow overrides the time source used for phase bookkeeping.
func WithNow(now func() time.Time) Option { return func(v *Vault) { v.now = now } }

// Vault is safe for concurrent use.
type Vault struct {
	mu   sync.Mutex
	busy atomic.Bool

	pool        *pool.Pool
	clock       *phase.Clock
	senior      *token.Token
	junior      *token.Token
	seniorMint  *token.Minter
	juniorMint  *token.Minter
	totalIssued *big.Int
	emergency   bool
	owner       common.Address
	minDeposit  *big.Int

	custody custody.Custody
	store   Store
	now     func() time.Time

	subsMu sync.RWMutex
	subs   []func(model.Event)
}

// New creates a fresh vault with empty pools in cycle 1, phase ACTIVE.
func New(cfg Config, cust custody.Custody, opts ...Option) (*Vault, error) {
	v, err := newVault(cfg, cust, opts)
	if err != nil {
		return nil, err
	}
	if v.clock, err = phase.NewClock(cfg.Durations, v.now()); err != nil {
		return nil, err
	}
	v.senior, v.seniorMint = token.New(SeniorName, SeniorSymbol)
	v.junior, v.juniorMint = token.New(JuniorName, JuniorSymbol)
	v.owner = cfg.Owner
	return v, nil
}

// Open restores the vault from its store, or creates and saves a fresh one
// when the store is empty. Persisted assets must match cfg; the configured
// phase durations replace the persisted ones.
func Open(cfg Config, cust custody.Custody, opts ...Option) (*Vault, error) {
	probe, err := newVault(cfg, cust, opts)
	if err != nil {
		return nil, err
	}
	if probe.store == nil {
		return nil, errors.New("open vault: no store configured")
	}
	st, err := probe.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load vault state: %w", err)
	}
	if st == nil {
		v, err := New(cfg, cust, opts...)
		if err != nil {
			return nil, err
		}
		if err := v.Checkpoint(); err != nil {
			return nil, err
		}
		log.WithField("owner", cfg.Owner.Hex()).Info("initialized fresh vault state")
		return v, nil
	}
	st.Phase.Durations = cfg.Durations
	return restore(probe, st)
}

func newVault(cfg Config, cust custody.Custody, opts []Option) (*Vault, error) {
	if cust == nil {
		return nil, errors.New("vault: custody is required")
	}
	p, err := pool.New(cfg.AssetA, cfg.AssetB)
	if err != nil {
		return nil, err
	}
	minDeposit := DefaultMinDeposit
	if cfg.MinDeposit != nil {
		minDeposit = cfg.MinDeposit
	}
	if minDeposit.Sign() <= 0 {
		return nil, fmt.Errorf("vault: minimum deposit must be positive, got %s", minDeposit)
	}
	v := &Vault{
		pool:        p,
		totalIssued: new(big.Int),
		minDeposit:  new(big.Int).Set(minDeposit),
		custody:     cust,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func restore(v *Vault, st *model.VaultState) (*Vault, error) {
	assets := v.pool.Assets()
	if st.AssetA != assets[0] || st.AssetB != assets[1] {
		return nil, fmt.Errorf("%w: persisted assets %s/%s do not match configuration %s/%s",
			ErrInvalidAssetAddress, st.AssetA.Hex(), st.AssetB.Hex(), assets[0].Hex(), assets[1].Hex())
	}
	if err := v.pool.Restore(st.Pools); err != nil {
		return nil, err
	}
	clock, err := phase.Restore(st.Phase)
	if err != nil {
		return nil, err
	}
	v.clock = clock
	if v.senior, v.seniorMint, err = token.FromState(SeniorName, SeniorSymbol, st.Senior); err != nil {
		return nil, err
	}
	if v.junior, v.juniorMint, err = token.FromState(JuniorName, JuniorSymbol, st.Junior); err != nil {
		return nil, err
	}
	if st.TotalIssued != nil {
		v.totalIssued.Set(st.TotalIssued)
	}
	v.emergency = st.Emergency
	v.owner = st.Owner
	if err := v.verifyInvariants(); err != nil {
		return nil, fmt.Errorf("restore vault: %w", err)
	}
	log.WithFields(logrus.Fields{
		"phase":        v.clock.Current(),
		"cycle":        v.clock.State().Cycle,
		"total_issued": v.totalIssued,
		"emergency":    v.emergency,
	}).Info("vault state restored")
	return v, nil
}

// Subscribe registers fn to receive every event after its operation commits.
// fn runs on the caller's goroutine, outside the writer lock.
func (v *Vault) Subscribe(fn func(model.Event)) {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	v.subs = append(v.subs, fn)
}

func (v *Vault) publish(e model.Event) {
	v.subsMu.RLock()
	subs := v.subs
	v.subsMu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}

// Senior is the senior claim token. Transfers and approvals go straight to
// the token; only the vault can mint or burn.
func (v *Vault) Senior() *token.Token { return v.senior }

// Junior is the junior claim token.
func (v *Vault) Junior() *token.Token { return v.junior }

// Assets returns the two supported assets in configuration order.
func (v *Vault) Assets() [2]common.Address { return v.pool.Assets() }

func (v *Vault) MinDeposit() *big.Int { return new(big.Int).Set(v.minDeposit) }

// Busy reports whether a mutating call is in flight.
func (v *Vault) Busy() bool { return v.busy.Load() }

func (v *Vault) Owner() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owner
}

func (v *Vault) Phase() model.Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clock.Current()
}

func (v *Vault) EmergencyActive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.emergency
}

func (v *Vault) TotalIssued() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.totalIssued)
}

// PoolBalance returns the accounted balance of asset.
func (v *Vault) PoolBalance(asset common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pool.Balance(asset)
}

// TotalValue is the sum of both accounted balances.
func (v *Vault) TotalValue() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pool.TotalValue()
}

// Status is the read-only snapshot served to dashboards.
func (v *Vault) Status() model.VaultStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	ps := v.clock.State()
	assets := v.pool.Assets()
	return model.VaultStatus{
		Pools: []model.PoolBalance{
			{Asset: assets[0], Balance: v.pool.Balance(assets[0])},
			{Asset: assets[1], Balance: v.pool.Balance(assets[1])},
		},
		TotalValueLocked: v.pool.TotalValue(),
		TotalIssued:      new(big.Int).Set(v.totalIssued),
		SeniorSupply:     v.senior.TotalSupply(),
		JuniorSupply:     v.junior.TotalSupply(),
		Phase:            ps.Current,
		PhaseStart:       ps.PhaseStart,
		CycleStart:       ps.CycleStart,
		Cycle:            ps.Cycle,
		TimeRemaining:    v.clock.Remaining(now),
		Emergency:        v.emergency,
		Owner:            v.owner,
		AsOf:             now,
	}
}

// Holder returns holder's balance in both tranches.
func (v *Vault) Holder(holder common.Address) model.HolderBalance {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.HolderBalance{
		Holder: holder,
		Senior: v.senior.BalanceOf(holder),
		Junior: v.junior.BalanceOf(holder),
	}
}

// State exports everything needed to rebuild the vault.
func (v *Vault) State() *model.VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot()
}

// Checkpoint saves the current state to the store, if one is configured.
func (v *Vault) Checkpoint() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.store == nil {
		return nil
	}
	if err := v.store.Save(v.snapshot()); err != nil {
		return fmt.Errorf("checkpoint vault state: %w", err)
	}
	return nil
}

// VerifyInvariants checks the ledger-wide accounting identities.
func (v *Vault) VerifyInvariants() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.verifyInvariants()
}

func (v *Vault) verifyInvariants() error {
	supply := new(big.Int).Add(v.senior.TotalSupply(), v.junior.TotalSupply())
	if supply.Cmp(v.totalIssued) != 0 {
		return fmt.Errorf("total issued %s != senior+junior supply %s", v.totalIssued, supply)
	}
	for _, asset := range v.pool.Assets() {
		if v.pool.Balance(asset).Sign() < 0 {
			return fmt.Errorf("negative accounted balance for %s", asset.Hex())
		}
	}
	return nil
}

func (v *Vault) snapshot() *model.VaultState {
	assets := v.pool.Assets()
	return &model.VaultState{
		AssetA:      assets[0],
		AssetB:      assets[1],
		Owner:       v.owner,
		Pools:       v.pool.Balances(),
		TotalIssued: new(big.Int).Set(v.totalIssued),
		Phase:       v.clock.State(),
		Emergency:   v.emergency,
		Senior:      v.senior.State(),
		Junior:      v.junior.State(),
		UpdatedAt:   v.now(),
	}
}

// save runs under the writer lock once a frame commits. The in-memory
// ledgers are authoritative, so a failed save is logged and retried by the
// next mutation or checkpoint.
func (v *Vault) save() {
	if v.store == nil {
		return
	}
	if err := v.store.Save(v.snapshot()); err != nil {
		log.WithError(err).Error("failed to save vault state")
	}
}
