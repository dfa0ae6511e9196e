package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"futuresHook/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID       int64           // Exchange's order ID
	Symbol        string          // Symbol for the order
	ClientOrderID string          // User-defined order ID
	Price         decimal.Decimal // Price of the order (zero for market orders)
	AvgPrice      decimal.Decimal // Average filled price
	OrigQuantity  decimal.Decimal // Original quantity requested
	ExecutedQty   decimal.Decimal // Quantity filled
	Status        string          // Order status (e.g., NEW, FILLED, CANCELED)
	TimeInForce   string          // Time in force (e.g., GTC, IOC, FOK)
	Type          string          // Order type (e.g., MARKET, LIMIT)
	Side          string          // Order side (BUY, SELL)
	Timestamp     time.Time       // Time the order response was generated
}

// OpenOrder is the subset of a resting order the workflow needs to cancel it.
type OpenOrder struct {
	OrderID int64
	Symbol  string
	Side    string
	Type    string
}

// ExchangeGateway is one authenticated session against the derivatives exchange.
// A session belongs to exactly one workflow run.
type ExchangeGateway interface {
	// GetAccountBalance retrieves the wallet balance for a specific asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// GetTickerPrice retrieves the latest price for a symbol.
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetServerTime retrieves the exchange clock in epoch milliseconds.
	GetServerTime(ctx context.Context) (int64, error)

	// CreateOrder submits a MARKET or LIMIT order. A non-zero req.Timestamp is used as the signed request timestamp.
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*OrderResponse, error)

	// GetOrderByClientID looks up an order by the client order ID it was submitted with.
	GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) (*OrderResponse, error)

	// ListOpenOrders returns the resting orders for a symbol.
	ListOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)

	// CancelOrder cancels an existing open order by its ID.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)

	// GetPosition returns the signed position for a symbol. A flat symbol yields a zero quantity, not nil.
	// Accounts in hedge position mode are rejected with ErrUnsupportedAccountMode.
	GetPosition(ctx context.Context, symbol string) (*domain.Position, error)
}

// GatewayFactory opens a fresh ExchangeGateway session per instruction.
type GatewayFactory interface {
	Open(ctx context.Context, creds domain.Credentials) (ExchangeGateway, error)
}
