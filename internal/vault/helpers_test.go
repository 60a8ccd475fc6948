package vault

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"TrancheVault/internal/custody"
	"TrancheVault/internal/model"
)

var (
	assetA    = common.HexToAddress("0x1001")
	assetB    = common.HexToAddress("0x1002")
	owner     = common.HexToAddress("0x0a11")
	user1     = common.HexToAddress("0xa11ce")
	user2     = common.HexToAddress("0xb0b")
	vaultAcct = common.HexToAddress("0x7a017")

	testDurations = model.PhaseDurations{
		Active:      5 * 24 * time.Hour,
		Claims:      24 * time.Hour,
		FinalClaims: 24 * time.Hour,
	}
	genesis = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	v      *Vault
	ledger *custody.Ledger
	clock  *fakeClock

	mu     sync.Mutex
	events []model.Event
}

func testConfig() Config {
	return Config{
		AssetA:     assetA,
		AssetB:     assetB,
		Owner:      owner,
		MinDeposit: big.NewInt(10),
		Durations:  testDurations,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := custody.NewLedger(vaultAcct)
	return newFixtureWith(t, ledger, ledger)
}

func newFixtureWith(t *testing.T, ledger *custody.Ledger, cust custody.Custody, opts ...Option) *fixture {
	t.Helper()
	for _, holder := range []common.Address{user1, user2} {
		require.NoError(t, ledger.Mint(assetA, holder, big.NewInt(1000)))
		require.NoError(t, ledger.Mint(assetB, holder, big.NewInt(1000)))
	}
	clk := &fakeClock{t: genesis}
	opts = append([]Option{WithNow(clk.Now)}, opts...)
	v, err := New(testConfig(), cust, opts...)
	require.NoError(t, err)
	fx := &fixture{v: v, ledger: ledger, clock: clk}
	v.Subscribe(func(e model.Event) {
		fx.mu.Lock()
		defer fx.mu.Unlock()
		fx.events = append(fx.events, e)
	})
	return fx
}

func bi(n int64) *big.Int { return big.NewInt(n) }

// requireInvariants asserts the accounting identities that must hold at
// every observable point.
func requireInvariants(t *testing.T, v *Vault) {
	t.Helper()
	require.NoError(t, v.VerifyInvariants())
	st := v.Status()
	sum := new(big.Int).Add(st.Pools[0].Balance, st.Pools[1].Balance)
	require.Zero(t, sum.Cmp(st.TotalValueLocked), "pool balances must sum to TVL")
	supply := new(big.Int).Add(st.SeniorSupply, st.JuniorSupply)
	require.Zero(t, supply.Cmp(st.TotalIssued), "TotalIssued must equal senior+junior supply")
}

func (fx *fixture) deposit(t *testing.T, who, asset common.Address, amount int64) {
	t.Helper()
	require.NoError(t, fx.v.Deposit(context.Background(), who, asset, bi(amount)))
}
