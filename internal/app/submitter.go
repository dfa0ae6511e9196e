package app

import (
	"context"
	"errors"
	"fmt"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// OrderSubmitter wraps order creation and bulk cancellation against a gateway session.
// It keeps no state between calls.
type OrderSubmitter struct {
	logger  ports.Logger
	metrics ports.Metrics
}

// NewOrderSubmitter creates a submitter.
func NewOrderSubmitter(logger ports.Logger, metrics ports.Metrics) *OrderSubmitter {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &OrderSubmitter{logger: logger, metrics: metrics}
}

// Submit sends req. Every failure, local or remote, is classified as ErrOrderRejected
// with the underlying cause kept in the chain.
func (s *OrderSubmitter) Submit(ctx context.Context, gw ports.ExchangeGateway, req domain.OrderRequest) (*ports.OrderResponse, error) {
	op := "Submit"
	if !req.Quantity.IsPositive() {
		s.metrics.IncOrder(req.Kind, req.Side, false)
		return nil, fmt.Errorf("%s failed: %w: quantity %s for %s", op, ports.ErrOrderRejected, req.Quantity, req.Symbol)
	}
	if req.Kind == domain.Limit && !req.Price.IsPositive() {
		s.metrics.IncOrder(req.Kind, req.Side, false)
		return nil, fmt.Errorf("%s failed: %w: limit price %s for %s", op, ports.ErrOrderRejected, req.Price, req.Symbol)
	}

	resp, err := gw.CreateOrder(ctx, req)
	if err != nil {
		s.metrics.IncOrder(req.Kind, req.Side, false)
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrOrderRejected, err)
	}
	if resp == nil {
		s.metrics.IncOrder(req.Kind, req.Side, false)
		return nil, fmt.Errorf("%s failed: %w: empty response", op, ports.ErrOrderRejected)
	}

	s.metrics.IncOrder(req.Kind, req.Side, true)
	s.logger.Info(ctx, op+": Order accepted", map[string]interface{}{
		"symbol":        req.Symbol,
		"side":          req.Side,
		"type":          req.Kind,
		"quantity":      req.Quantity.String(),
		"orderID":       resp.OrderID,
		"clientOrderID": req.ClientOrderID,
	})
	return resp, nil
}

// CancelAllOpen cancels every resting order on symbol. It keeps going past individual
// failures and returns how many were cancelled. Nothing is rolled back; if any
// cancellation failed the error wraps ErrPartialCancelFailure and joins each cause.
func (s *OrderSubmitter) CancelAllOpen(ctx context.Context, gw ports.ExchangeGateway, symbol string) (int, error) {
	op := "CancelAllOpen"
	orders, err := gw.ListOpenOrders(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("%s failed: list open orders: %w", op, err)
	}

	cancelled := 0
	var errs []error
	for _, o := range orders {
		if _, err := gw.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			s.logger.Warn(ctx, op+": Failed to cancel order", map[string]interface{}{"symbol": symbol, "orderID": o.OrderID, "error": err.Error()})
			errs = append(errs, fmt.Errorf("order %d: %w", o.OrderID, err))
			continue
		}
		cancelled++
	}
	s.metrics.IncCancelled(cancelled)

	if len(errs) > 0 {
		return cancelled, fmt.Errorf("%s failed: %w: %w", op, ports.ErrPartialCancelFailure, errors.Join(errs...))
	}
	s.logger.Info(ctx, op+": Open orders cancelled", map[string]interface{}{"symbol": symbol, "count": cancelled})
	return cancelled, nil
}
