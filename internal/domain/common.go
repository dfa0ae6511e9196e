package domain

import (
	"fmt"
	"strings"
)

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Inverse returns the opposite side. Protective orders always use the inverse of the entry side.
func (s OrderSide) Inverse() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is BUY or SELL.
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// ParseOrderSide accepts "buy"/"sell" in any case.
func ParseOrderSide(raw string) (OrderSide, error) {
	side := OrderSide(strings.ToUpper(strings.TrimSpace(raw)))
	if !side.Valid() {
		return "", fmt.Errorf("unknown order side %q", raw)
	}
	return side, nil
}

// OrderKind is the exchange order type used by the workflow.
type OrderKind string

const (
	Market OrderKind = "MARKET"
	Limit  OrderKind = "LIMIT"
)

// PositionMode selects whether an instruction only flattens the symbol or also opens a new position.
type PositionMode string

const (
	CloseOnly    PositionMode = "CLOSE_ONLY"
	CloseAndOpen PositionMode = "CLOSE_AND_OPEN"
)

// ParsePositionMode maps the webhook's positionType field. Any value containing "new"
// opens a fresh position after closing; everything else only closes.
func ParsePositionMode(raw string) PositionMode {
	if strings.Contains(strings.ToLower(raw), "new") {
		return CloseAndOpen
	}
	return CloseOnly
}

// Phase marks a position lifecycle boundary reported to the notification sink.
type Phase string

const (
	PhaseEntry Phase = "entry"
	PhaseExit  Phase = "exit"
)

// ClockDirection selects which way the server-time skew buffer is applied.
type ClockDirection int

const (
	// Forward is used before entry orders.
	Forward ClockDirection = iota
	// Backward is used before close orders.
	Backward
)

func (d ClockDirection) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}
