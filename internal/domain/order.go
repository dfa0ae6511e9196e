package domain

import "github.com/shopspring/decimal"

// OrderRequest is built fresh for every submission and passed by value.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Kind          OrderKind
	Quantity      decimal.Decimal
	Price         decimal.Decimal // LIMIT only
	Timestamp     int64           // epoch ms; zero lets the gateway sign with its own clock
	ClientOrderID string
}

// NewMarketOrder builds a MARKET request.
func NewMarketOrder(symbol string, side OrderSide, qty decimal.Decimal, timestamp int64) OrderRequest {
	return OrderRequest{
		Symbol:    symbol,
		Side:      side,
		Kind:      Market,
		Quantity:  qty,
		Timestamp: timestamp,
	}
}

// NewLimitOrder builds a LIMIT request resting at price.
func NewLimitOrder(symbol string, side OrderSide, qty, price decimal.Decimal) OrderRequest {
	return OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Kind:     Limit,
		Quantity: qty,
		Price:    price,
	}
}

// WithClientOrderID returns a copy tagged with id.
func (r OrderRequest) WithClientOrderID(id string) OrderRequest {
	r.ClientOrderID = id
	return r
}
