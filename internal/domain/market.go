package domain

import "github.com/shopspring/decimal"

// MarketState holds the current state of a single market.
// Owned by the sequencer; external readers get copies.
type MarketState struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`      // 24h base volume as reported by the stream
	LastUpdate int64           `json:"last_update"` // Unix milliseconds from the exchange
}
