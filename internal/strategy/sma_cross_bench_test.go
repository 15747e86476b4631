package strategy_test

import (
	"testing"

	"tradeguard/internal/domain"
	"tradeguard/internal/strategy"

	"github.com/shopspring/decimal"
)

// BenchmarkSMACrossStrategy_OnMarketUpdate measures the steady-state cost
// of one tick through the ring buffer.
func BenchmarkSMACrossStrategy_OnMarketUpdate(b *testing.B) {
	strat := strategy.NewSMACrossStrategy("BTC", 20, 50, decimal.NewFromInt(1))

	// Pre-fill buffer to reach steady state
	for i := 0; i < 50; i++ {
		state := domain.MarketState{
			Symbol: "BTC",
			Price:  decimal.NewFromInt(50000 + int64(i)),
		}
		strat.OnMarketUpdate(state)
	}

	state := domain.MarketState{
		Symbol: "BTC",
		Price:  decimal.NewFromInt(51000),
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		state.Price = decimal.NewFromInt(50000 + int64(i%10000))
		strat.OnMarketUpdate(state)
	}
}

// BenchmarkSMACrossStrategy_ColdStart measures strategy initialization overhead.
func BenchmarkSMACrossStrategy_ColdStart(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		strat := strategy.NewSMACrossStrategy("BTC", 20, 50, decimal.NewFromInt(1))
		state := domain.MarketState{
			Symbol: "BTC",
			Price:  decimal.NewFromInt(50000),
		}
		strat.OnMarketUpdate(state)
	}
}
