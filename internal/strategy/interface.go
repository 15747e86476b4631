package strategy

import (
	"tradeguard/internal/domain"
)

// Strategy is the interface that all trading strategies must implement.
// It is called synchronously by the Sequencer, so implementations must
// not block.
type Strategy interface {
	// Name identifies the strategy. It shows up as the requester on
	// ledger rows and in latch holder snapshots.
	Name() string

	// OnMarketUpdate is called when a market data update is received.
	// The intents it returns are handed to the executor, which may
	// refuse them (shutdown) or skip them (another emission in flight).
	OnMarketUpdate(state domain.MarketState) []domain.Intent
}
