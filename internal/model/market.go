package model

import "time"

// PriceBar is a single candlestick of a claim token on the secondary market.
type PriceBar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
