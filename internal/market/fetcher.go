package market

import (
	"context"

	"TrancheVault/internal/model"
)

// Fetcher reads claim-token prices from the secondary market.
type Fetcher interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	FetchBars(ctx context.Context, symbol string, limit int) ([]model.PriceBar, error)
	Name() string
}
