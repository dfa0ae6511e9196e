package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// Client implements the ports.ExchangeGateway interface using the go-binance library.
// One Client is one authenticated session and must not be shared between workflow runs.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger

	// signMu guards futuresClient.TimeOffset while an order is signed with a caller-supplied timestamp.
	signMu sync.Mutex
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		// Map specific Binance error codes to custom errors
		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimestampOutsideWindow
		case -1022, -2014, -2015: // Bad signature, malformed key, key/IP/permission rejected
			mappedErr = ports.ErrGatewayAuth
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		case -2010, -2021, -2022: // New order rejected, would immediately trigger, ReduceOnly rejected
			mappedErr = ports.ErrOrderRejected
		case -2011, -2013: // Cancel rejected, order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2019, -3005, -4047: // Margin or balance insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -4003, -4014, -4164: // Quantity, price or notional outside permissible range
			mappedErr = ports.ErrInvalidRequest
		case -4044:
			mappedErr = ports.ErrNotFound
		case -4116: // ClientOrderId is duplicated
			mappedErr = ports.ErrDuplicateOrder
		default:
			// General classification for unmapped API errors
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		// Default for other errors (e.g., parsing errors within the adapter)
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	err := c.futuresClient.NewPingService().Do(ctx)
	if err != nil {
		// Ping failure likely indicates connection or availability issues
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetServerTime retrieves the exchange clock in epoch milliseconds.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	op := "GetServerTime"
	serverTimeMs, err := c.futuresClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	return serverTimeMs, nil
}

// GetTickerPrice retrieves the latest traded price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	op := "GetTickerPrice"
	prices, err := c.futuresClient.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}
	for _, p := range prices {
		if p.Symbol != "" && p.Symbol != symbol {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			parseErr := fmt.Errorf("could not parse price '%s': %w", p.Price, err)
			return decimal.Zero, c.handleError(ctx, parseErr, op)
		}
		return price, nil
	}

	err = fmt.Errorf("no ticker data returned for symbol %s", symbol)
	return decimal.Zero, c.handleError(ctx, err, op)
}

// GetAccountBalance retrieves the wallet balance for a specific asset (e.g., "USDT").
func (c *Client) GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	op := "GetAccountBalance"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, c.handleError(ctx, err, op)
	}

	for _, bal := range account.Assets {
		if bal.Asset == asset {
			balance, err := decimal.NewFromString(bal.WalletBalance)
			if err != nil {
				parseErr := fmt.Errorf("could not parse balance '%s' for asset %s: %w", bal.WalletBalance, asset, err)
				return decimal.Zero, c.handleError(ctx, parseErr, op)
			}
			return balance, nil
		}
	}

	// Asset not found in the account details
	err = fmt.Errorf("asset %s not found in account balance: %w", asset, ports.ErrNotFound)
	return decimal.Zero, c.handleError(ctx, err, op)
}

// GetPosition returns the signed position for symbol. Only one-way position mode is
// supported: hedge-mode legs need a positionSide on every order, which the workflow never sends.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	op := "GetPosition"
	positions, err := c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	net := decimal.Zero
	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		if p.PositionSide != "" && string(p.PositionSide) != string(futures.PositionSideTypeBoth) {
			err := fmt.Errorf("%s has a %s leg: %w", symbol, p.PositionSide, ports.ErrUnsupportedAccountMode)
			return nil, c.handleError(ctx, err, op)
		}
		amt, err := decimal.NewFromString(p.PositionAmt)
		if err != nil {
			parseErr := fmt.Errorf("could not parse position amount '%s': %w", p.PositionAmt, err)
			return nil, c.handleError(ctx, parseErr, op)
		}
		net = net.Add(amt)
	}

	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "positionAmt": net.String()})
	return &domain.Position{Symbol: symbol, SignedQuantity: net}, nil
}

// CreateOrder submits a MARKET or LIMIT (GTC) order. A non-zero req.Timestamp replaces the
// signing timestamp for this one request.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*ports.OrderResponse, error) {
	op := "CreateOrder"

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Kind)).
		Quantity(req.Quantity.String())
	if req.Kind == domain.Limit {
		svc = svc.TimeInForce(futures.TimeInForceTypeGTC).Price(req.Price.String())
	}
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	var (
		order *futures.CreateOrderResponse
		err   error
	)
	if req.Timestamp > 0 {
		c.signMu.Lock()
		c.futuresClient.TimeOffset = time.Now().UnixMilli() - req.Timestamp
		order, err = svc.Do(ctx)
		c.futuresClient.TimeOffset = 0
		c.signMu.Unlock()
	} else {
		order, err = svc.Do(ctx)
	}
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(order)
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{
		"symbol":    req.Symbol,
		"side":      req.Side,
		"type":      req.Kind,
		"quantity":  req.Quantity.String(),
		"timestamp": req.Timestamp,
		"orderID":   resp.OrderID,
		"status":    resp.Status,
	})
	return resp, nil
}

// GetOrderByClientID queries an order by the newClientOrderId it was created with.
func (c *Client) GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) (*ports.OrderResponse, error) {
	op := "GetOrderByClientID"
	o, err := c.futuresClient.NewGetOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	resp := translateOrderResponse(&futures.CreateOrderResponse{
		OrderID:          o.OrderID,
		Symbol:           o.Symbol,
		ClientOrderID:    o.ClientOrderID,
		Price:            o.Price,
		AvgPrice:         o.AvgPrice,
		OrigQuantity:     o.OrigQuantity,
		ExecutedQuantity: o.ExecutedQuantity,
		Status:           o.Status,
		TimeInForce:      o.TimeInForce,
		Type:             o.Type,
		Side:             o.Side,
		UpdateTime:       o.UpdateTime,
	})
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "clientOrderID": clientOrderID, "orderID": resp.OrderID, "status": resp.Status})
	return resp, nil
}

// ListOpenOrders returns the resting orders for symbol.
func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]ports.OpenOrder, error) {
	op := "ListOpenOrders"
	orders, err := c.futuresClient.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	out := make([]ports.OpenOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, ports.OpenOrder{
			OrderID: o.OrderID,
			Symbol:  o.Symbol,
			Side:    string(o.Side),
			Type:    string(o.Type),
		})
	}
	return out, nil
}

// CancelOrder cancels an existing open order by its ID.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	op := "CancelOrder"
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	res, err := c.futuresClient.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	createOrderResp := &futures.CreateOrderResponse{
		OrderID:          res.OrderID,
		Symbol:           res.Symbol,
		ClientOrderID:    res.ClientOrderID,
		Price:            res.Price,
		OrigQuantity:     res.OrigQuantity,
		ExecutedQuantity: res.ExecutedQuantity,
		Status:           res.Status, // Should be CANCELED
		TimeInForce:      res.TimeInForce,
		Type:             res.Type,
		Side:             res.Side,
		UpdateTime:       res.UpdateTime,
	}

	resp := translateOrderResponse(createOrderResp)
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": resp.Status})
	return resp, nil
}

func translateOrderResponse(order *futures.CreateOrderResponse) *ports.OrderResponse {
	if order == nil {
		return nil
	}
	return &ports.OrderResponse{
		OrderID:       order.OrderID,
		Symbol:        order.Symbol,
		ClientOrderID: order.ClientOrderID,
		Price:         parseDecimal(order.Price),
		AvgPrice:      parseDecimal(order.AvgPrice),
		OrigQuantity:  parseDecimal(order.OrigQuantity),
		ExecutedQty:   parseDecimal(order.ExecutedQuantity),
		Status:        string(order.Status),
		TimeInForce:   string(order.TimeInForce),
		Type:          string(order.Type),
		Side:          string(order.Side),
		Timestamp:     time.UnixMilli(order.UpdateTime),
	}
}

// parseDecimal returns zero for empty or malformed exchange strings.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
