package model

import "time"

// TrancheQuote holds the market view of one claim token.
type TrancheQuote struct {
	Symbol   string
	Price    float64
	SMA      float64
	RSI      float64
	High     float64
	Low      float64
	Position float64 // where Price sits within [Low, High], 0.0~1.0
	Premium  float64 // Price / NAV - 1
}

// MarketIndicators compares secondary-market prices with the vault's book value.
type MarketIndicators struct {
	NAV    float64 // pool value per outstanding claim unit
	Senior TrancheQuote
	Junior TrancheQuote
	AsOf   time.Time
}
