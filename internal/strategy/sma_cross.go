package strategy

import (
	"tradeguard/internal/domain"

	"github.com/shopspring/decimal"
)

// SMACrossStrategy implements a simple SMA Crossover strategy.
// It is stateful and deterministic. Prices live in a fixed-size ring
// buffer with a running sum, so each tick costs one subtract and one add
// for the long window.
type SMACrossStrategy struct {
	symbol   string
	orderQty decimal.Decimal

	shortPeriod int
	longPeriod  int

	// State (Ring Buffer)
	prices []decimal.Decimal
	head   int // Current write position
	count  int // Number of elements filled
	sum    decimal.Decimal

	prevShortSMA decimal.Decimal
	prevLongSMA  decimal.Decimal
}

// NewSMACrossStrategy creates a new instance. orderQty is the base
// quantity each emitted intent asks for.
func NewSMACrossStrategy(symbol string, shortPeriod, longPeriod int, orderQty decimal.Decimal) *SMACrossStrategy {
	if shortPeriod >= longPeriod {
		panic("SMACrossStrategy: shortPeriod must be less than longPeriod")
	}
	return &SMACrossStrategy{
		symbol:      symbol,
		orderQty:    orderQty,
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		prices:      make([]decimal.Decimal, longPeriod),
	}
}

// Name identifies this strategy instance in ledger rows and latch holders.
func (s *SMACrossStrategy) Name() string {
	return "sma_cross:" + s.symbol
}

// OnMarketUpdate processes market updates and generates intents.
func (s *SMACrossStrategy) OnMarketUpdate(state domain.MarketState) []domain.Intent {
	// 1. Filter by symbol
	if state.Symbol != s.symbol {
		return nil
	}

	currentPrice := state.Price

	// 2. Update price history. When the buffer is full, s.head points to
	// the oldest value; subtract it from the sum before overwriting.
	if s.count == s.longPeriod {
		s.sum = s.sum.Sub(s.prices[s.head])
	}

	s.prices[s.head] = currentPrice
	s.sum = s.sum.Add(currentPrice)
	s.head = (s.head + 1) % s.longPeriod

	if s.count < s.longPeriod {
		s.count++
	}

	// 3. Check if we have enough data
	if s.count < s.longPeriod {
		return nil
	}

	// 4. Calculate SMAs
	currLongSMA := s.sum.Div(decimal.NewFromInt(int64(s.longPeriod)))
	currShortSMA := s.calculateShortSMA()

	var intents []domain.Intent

	// 5. Check for cross. The first full window has no previous SMAs to
	// compare against, so it never signals.
	if !s.prevShortSMA.IsZero() && !s.prevLongSMA.IsZero() {
		// Golden Cross: short goes above long
		if s.prevShortSMA.LessThanOrEqual(s.prevLongSMA) && currShortSMA.GreaterThan(currLongSMA) {
			intents = append(intents, domain.Intent{
				Symbol:    s.symbol,
				Side:      domain.SideBuy,
				Type:      domain.OrderTypeMarket,
				Qty:       s.orderQty,
				Requester: s.Name(),
				Purpose:   "golden cross",
			})
		}

		// Dead Cross: short goes below long
		if s.prevShortSMA.GreaterThanOrEqual(s.prevLongSMA) && currShortSMA.LessThan(currLongSMA) {
			intents = append(intents, domain.Intent{
				Symbol:    s.symbol,
				Side:      domain.SideSell,
				Type:      domain.OrderTypeMarket,
				Qty:       s.orderQty,
				Requester: s.Name(),
				Purpose:   "dead cross",
			})
		}
	}

	// 6. Update state
	s.prevShortSMA = currShortSMA
	s.prevLongSMA = currLongSMA

	return intents
}

// calculateShortSMA calculates the SMA for the short period using the ring buffer.
func (s *SMACrossStrategy) calculateShortSMA() decimal.Decimal {
	var sum decimal.Decimal
	// Walk backwards from current head (which points to next write slot, so head-1 is latest)
	idx := s.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum = sum.Add(s.prices[idx])
	}
	return sum.Div(decimal.NewFromInt(int64(s.shortPeriod)))
}
