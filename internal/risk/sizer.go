package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futuresHook/internal/ports"
)

// SizingConfig holds configuration for position sizing.
type SizingConfig struct {
	// FallbackNotional replaces balance*fraction*lot when the balance query fails.
	FallbackNotional decimal.Decimal
	// Precision is the number of decimal places kept on the quantity.
	Precision int32
}

// DefaultSizingConfig returns the observed production values.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		FallbackNotional: decimal.NewFromInt(10),
		Precision:        0,
	}
}

// SizingInput carries the market snapshot a quantity is derived from.
type SizingInput struct {
	Balance        decimal.Decimal
	BalanceKnown   bool // false when the balance query failed
	Price          decimal.Decimal
	EquityFraction decimal.Decimal
	LotMultiplier  decimal.Decimal
}

// Sizer computes fixed-fractional position sizes.
type Sizer struct {
	config SizingConfig
}

// NewSizer creates a new sizer instance.
func NewSizer(config SizingConfig) *Sizer {
	return &Sizer{config: config}
}

// Notional returns the quote amount committed to the position and whether the fallback was used.
func (s *Sizer) Notional(in SizingInput) (decimal.Decimal, bool) {
	if !in.BalanceKnown {
		return s.config.FallbackNotional, true
	}
	return in.Balance.Mul(in.EquityFraction).Mul(in.LotMultiplier), false
}

// Size returns abs(round(notional/price, precision)). Half-way values round to even.
func (s *Sizer) Size(in SizingInput) (decimal.Decimal, error) {
	if !in.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("size failed: %w: price %s", ports.ErrPricingUnavailable, in.Price)
	}
	notional, _ := s.Notional(in)
	volume := notional.Abs().Div(in.Price)
	return volume.RoundBank(s.config.Precision).Abs(), nil
}
