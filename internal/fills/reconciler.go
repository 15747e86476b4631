// Package fills converts the cumulative fill snapshots exchanges report
// into incremental deltas suitable for a ledger. Exchanges (Bitget included)
// push "total filled so far" plus a running average price; the ledger wants
// "what changed since the last snapshot".
package fills

import "github.com/shopspring/decimal"

// PriorFill is one previously recorded fill delta for an order, as read
// back from storage. Values stay strings here because that is how they are
// persisted; parsing is this package's job.
type PriorFill struct {
	Qty   string
	Price string
}

// Delta is the incremental fill derived from one cumulative snapshot,
// together with the totals it was derived from. A zero Qty means the
// snapshot carried nothing new (duplicate or out-of-order delivery).
type Delta struct {
	Qty      decimal.Decimal
	Price    decimal.Decimal
	Notional decimal.Decimal

	CumQty       decimal.Decimal
	CumAvgPrice  decimal.Decimal
	CumNotional  decimal.Decimal
	PrevQty      decimal.Decimal
	PrevNotional decimal.Decimal
}

// IsZero reports whether the snapshot produced no new fill.
func (d Delta) IsZero() bool {
	return d.Qty.IsZero()
}

// DeltaFromCumulative computes the incremental fill implied by a cumulative
// snapshot (cumQty filled so far at cumAvgPrice on average), given the full
// ordered history of previously recorded deltas for the same order.
//
// This sits in the accounting path, so it degrades instead of failing:
// negative inputs clamp to zero, unparseable or non-positive prior rows are
// skipped, and a snapshot that implies nothing new yields a zero Delta.
// It never panics and never returns a negative quantity or price.
func DeltaFromCumulative(cumQty, cumAvgPrice decimal.Decimal, prior []PriorFill) Delta {
	if cumQty.IsNegative() {
		cumQty = decimal.Zero
	}
	if cumAvgPrice.IsNegative() {
		cumAvgPrice = decimal.Zero
	}

	prevQty := decimal.Zero
	prevNotional := decimal.Zero
	for _, f := range prior {
		qty, err := decimal.NewFromString(f.Qty)
		if err != nil || !qty.IsPositive() {
			continue
		}
		price, err := decimal.NewFromString(f.Price)
		if err != nil || !price.IsPositive() {
			continue
		}
		prevQty = prevQty.Add(qty)
		prevNotional = prevNotional.Add(qty.Mul(price))
	}

	cumNotional := cumQty.Mul(cumAvgPrice)
	out := Delta{
		Qty:          decimal.Zero,
		Price:        decimal.Zero,
		Notional:     decimal.Zero,
		CumQty:       cumQty,
		CumAvgPrice:  cumAvgPrice,
		CumNotional:  cumNotional,
		PrevQty:      prevQty,
		PrevNotional: prevNotional,
	}

	deltaQty := cumQty.Sub(prevQty)
	if !deltaQty.IsPositive() {
		return out
	}

	// Delta notional from the cumulative totals; when the history is
	// inconsistent (recorded notional already exceeds the cumulative one)
	// fall back to pricing the new quantity at the cumulative average.
	deltaNotional := cumNotional.Sub(prevNotional)
	if !deltaNotional.IsPositive() {
		deltaNotional = deltaQty.Mul(cumAvgPrice)
	}

	deltaPrice := deltaNotional.Div(deltaQty)
	if !deltaPrice.IsPositive() {
		deltaPrice = cumAvgPrice
	}

	out.Qty = deltaQty
	out.Price = deltaPrice
	out.Notional = deltaQty.Mul(deltaPrice)
	return out
}
