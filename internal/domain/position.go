package domain

import "github.com/shopspring/decimal"

// Position is a snapshot of the exchange-side position for one symbol.
// The workflow never caches it; every run re-queries the exchange.
type Position struct {
	Symbol         string
	SignedQuantity decimal.Decimal // positive = long, negative = short, zero = flat
}

// IsFlat reports whether there is no exposure on the symbol.
func (p *Position) IsFlat() bool {
	return p == nil || p.SignedQuantity.IsZero()
}

// CloseSide returns the side that reduces the exposure: SELL for a long, BUY for a short.
func (p *Position) CloseSide() OrderSide {
	if p.SignedQuantity.IsNegative() {
		return Buy
	}
	return Sell
}

// CloseQuantity is the absolute size to send on a full close.
func (p *Position) CloseQuantity() decimal.Decimal {
	return p.SignedQuantity.Abs()
}

