package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Credentials authenticate one gateway session. They arrive with every instruction.
type Credentials struct {
	APIKey    string
	APISecret string
	Testnet   bool
}

// TradeInstruction is the immutable input to one workflow run.
type TradeInstruction struct {
	Symbol             string
	ExecutionSide      OrderSide
	PositionMode       PositionMode
	ProtectiveDistance decimal.Decimal // absolute price offset of the protective order from the fill price
	EquityFraction     decimal.Decimal // share of the balance committed to the new position
	LotSizeMultiplier  decimal.Decimal // scales the notional (webhook totalLotSize)
	ExternalRef        string          // forwarded untouched to the notification sink
}

// Validate checks the fields the workflow depends on.
func (t TradeInstruction) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Symbol) == "" {
		errs = append(errs, errors.New("symbol must be set"))
	}
	if !t.ExecutionSide.Valid() {
		errs = append(errs, fmt.Errorf("invalid execution side %q", t.ExecutionSide))
	}
	if t.PositionMode != CloseOnly && t.PositionMode != CloseAndOpen {
		errs = append(errs, fmt.Errorf("invalid position mode %q", t.PositionMode))
	}
	if t.PositionMode == CloseAndOpen {
		if t.ProtectiveDistance.IsNegative() {
			errs = append(errs, errors.New("protective distance cannot be negative"))
		}
		if !t.EquityFraction.IsPositive() {
			errs = append(errs, errors.New("equity fraction must be positive"))
		}
		if !t.LotSizeMultiplier.IsPositive() {
			errs = append(errs, errors.New("lot size multiplier must be positive"))
		}
	}
	return errors.Join(errs...)
}
