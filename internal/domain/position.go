package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Position tracks the net holding of a single symbol, built from fill deltas.
type Position struct {
	Symbol      string          `json:"symbol"`
	Qty         decimal.Decimal `json:"qty"`       // Net base quantity held
	AvgEntry    decimal.Decimal `json:"avg_entry"` // Average entry price of the open quantity
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	LastSeq     uint64          `json:"last_seq"` // Last event sequence that modified this
}

// ApplyBuy folds a buy fill into the position.
func (p *Position) ApplyBuy(qty, price decimal.Decimal, seq uint64) {
	newQty := p.Qty.Add(qty)
	if newQty.IsPositive() {
		openNotional := p.Qty.Mul(p.AvgEntry).Add(qty.Mul(price))
		p.AvgEntry = openNotional.Div(newQty)
	}
	p.Qty = newQty
	p.LastSeq = seq
}

// ApplySell folds a sell fill into the position. Selling more than is held
// is clamped to the held quantity; the caller decides how loudly to report
// it. Accounting must degrade, never halt the agent.
func (p *Position) ApplySell(qty, price decimal.Decimal, seq uint64) (clamped bool) {
	if qty.GreaterThan(p.Qty) {
		qty = p.Qty
		clamped = true
	}
	p.RealizedPnL = p.RealizedPnL.Add(qty.Mul(price.Sub(p.AvgEntry)))
	p.Qty = p.Qty.Sub(qty)
	if p.Qty.IsZero() {
		p.AvgEntry = decimal.Zero
	}
	p.LastSeq = seq
	return clamped
}

// VerifyInvariant reports a violated position invariant. With sells clamped
// this should be unreachable; it exists to catch accounting drift early.
func (p *Position) VerifyInvariant() error {
	if p.Qty.IsNegative() {
		return fmt.Errorf("position invariant violated: %s qty=%s", p.Symbol, p.Qty)
	}
	if p.AvgEntry.IsNegative() {
		return fmt.Errorf("position invariant violated: %s avg_entry=%s", p.Symbol, p.AvgEntry)
	}
	return nil
}

// PositionBook manages positions for all traded symbols.
// Not thread-safe: owned by the fill service on the sequencer thread.
type PositionBook struct {
	positions map[string]*Position
}

// NewPositionBook creates an empty position book.
func NewPositionBook() *PositionBook {
	return &PositionBook{
		positions: make(map[string]*Position),
	}
}

// Get returns the position for a symbol, creating if not exists.
func (pb *PositionBook) Get(symbol string) *Position {
	p, ok := pb.positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol, Qty: decimal.Zero, AvgEntry: decimal.Zero, RealizedPnL: decimal.Zero}
		pb.positions[symbol] = p
	}
	return p
}

// VerifyAll checks invariants on all positions.
func (pb *PositionBook) VerifyAll() error {
	for _, p := range pb.positions {
		if err := p.VerifyInvariant(); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a copy of all positions (for state dump).
func (pb *PositionBook) Snapshot() map[string]Position {
	result := make(map[string]Position, len(pb.positions))
	for k, v := range pb.positions {
		result[k] = *v
	}
	return result
}

// TotalNotional computes the open value of the book in the quote currency.
// Symbols without a known price are skipped (conservative: unknown counts
// as zero rather than a stale guess).
func (pb *PositionBook) TotalNotional(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, p := range pb.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		total = total.Add(p.Qty.Mul(price))
	}
	return total
}
