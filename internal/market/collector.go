package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"TrancheVault/internal/calculator"
	"TrancheVault/internal/model"
)

var log = logrus.WithField("module", "market")

const (
	barLimit  = 72
	smaPeriod = 24
	rsiPeriod = 14
)

// Collector pulls both tranche markets and compares them with the vault NAV.
type Collector struct {
	Fetcher      Fetcher
	SeniorSymbol string
	JuniorSymbol string
	Now          func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, seniorSymbol, juniorSymbol string) *Collector {
	return &Collector{
		Fetcher:      fetcher,
		SeniorSymbol: seniorSymbol,
		JuniorSymbol: juniorSymbol,
		Now:          time.Now,
	}
}

// NAV is the pool value backing one outstanding claim unit. With nothing
// issued a fresh deposit mints one unit per asset unit, so NAV is 1.
func NAV(st *model.VaultStatus) float64 {
	if st == nil || st.TotalIssued == nil || st.TotalIssued.Sign() == 0 {
		return 1
	}
	tvl := decimal.NewFromBigInt(st.TotalValueLocked, 0)
	issued := decimal.NewFromBigInt(st.TotalIssued, 0)
	return tvl.DivRound(issued, 18).InexactFloat64()
}

// Collect fetches both tranche markets and computes indicators against nav.
func (c *Collector) Collect(ctx context.Context, nav float64) (*model.MarketIndicators, error) {
	senior, err := c.quote(ctx, c.SeniorSymbol, nav)
	if err != nil {
		return nil, err
	}
	junior, err := c.quote(ctx, c.JuniorSymbol, nav)
	if err != nil {
		return nil, err
	}
	return &model.MarketIndicators{
		NAV:    nav,
		Senior: senior,
		Junior: junior,
		AsOf:   c.Now(),
	}, nil
}

func (c *Collector) quote(ctx context.Context, symbol string, nav float64) (model.TrancheQuote, error) {
	q := model.TrancheQuote{Symbol: symbol}

	price, err := c.Fetcher.FetchPrice(ctx, symbol)
	if err != nil {
		return q, fmt.Errorf("fetch %s price: %w", symbol, err)
	}
	q.Price = price

	bars, err := c.Fetcher.FetchBars(ctx, symbol, barLimit)
	if err != nil {
		return q, fmt.Errorf("fetch %s bars: %w", symbol, err)
	}
	entry := log.WithFields(logrus.Fields{"symbol": symbol, "source": c.Fetcher.Name()})

	if sma, err := calculator.CalculateBarSMA(bars, smaPeriod); err != nil {
		entry.WithError(err).Warn("SMA calculation failed, using current price")
		q.SMA = price
	} else {
		q.SMA = sma
	}

	if rsi, err := calculator.CalculateRSI(bars, rsiPeriod); err != nil {
		entry.WithError(err).Warn("RSI calculation failed, defaulting to 50")
		q.RSI = 50
	} else {
		q.RSI = rsi
	}

	if h, l, err := calculator.CalculateRange(bars, smaPeriod); err != nil {
		entry.WithError(err).Warn("range calculation failed")
		q.High, q.Low = price, price
	} else {
		q.High, q.Low = h, l
	}

	if pos, err := calculator.CalculateRangePosition(price, q.High, q.Low); err != nil {
		q.Position = 0.5
	} else {
		q.Position = pos
	}

	if p, err := calculator.CalculatePremium(price, nav); err != nil {
		entry.WithError(err).Warn("premium calculation failed")
	} else {
		q.Premium = p
	}
	return q, nil
}
