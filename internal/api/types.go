package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"futuresHook/internal/domain"
)

// WebhookRequest is the POST /crypto body. Numeric fields accept JSON numbers or strings.
type WebhookRequest struct {
	APIKey         string              `json:"apiKey"`
	APISecret      string              `json:"apiSecret"`
	IsTest         FlexBool            `json:"isTest"`
	Symbol         string              `json:"symbol"`
	ExecutionType  string              `json:"executionType"`
	PositionType   string              `json:"positionType"`
	PairReward     decimal.Decimal     `json:"pairReward"`
	TotalLotSize   decimal.NullDecimal `json:"totalLotSize"`
	EquityFraction decimal.NullDecimal `json:"equityFraction"`
	DBPath         string              `json:"dbPath"`
}

// FlexBool decodes true/false as well as "yes"/"no" style strings.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*b = false
	case bool:
		*b = FlexBool(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "1":
			*b = true
		case "no", "n", "false", "0", "":
			*b = false
		default:
			return fmt.Errorf("invalid boolean %q", t)
		}
	default:
		return fmt.Errorf("invalid boolean %s", string(data))
	}
	return nil
}

// toInstruction converts the payload into workflow input. defaultFraction fills a missing equityFraction.
func (r WebhookRequest) toInstruction(defaultFraction decimal.Decimal) (domain.Credentials, domain.TradeInstruction, error) {
	creds := domain.Credentials{
		APIKey:    strings.TrimSpace(r.APIKey),
		APISecret: strings.TrimSpace(r.APISecret),
		Testnet:   bool(r.IsTest),
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return creds, domain.TradeInstruction{}, fmt.Errorf("apiKey and apiSecret are required")
	}

	side, err := domain.ParseOrderSide(r.ExecutionType)
	if err != nil {
		return creds, domain.TradeInstruction{}, err
	}

	fraction := defaultFraction
	if r.EquityFraction.Valid {
		fraction = r.EquityFraction.Decimal
	}
	lot := decimal.NewFromInt(1)
	if r.TotalLotSize.Valid {
		lot = r.TotalLotSize.Decimal
	}

	instr := domain.TradeInstruction{
		Symbol:             strings.ToUpper(strings.TrimSpace(r.Symbol)),
		ExecutionSide:      side,
		PositionMode:       domain.ParsePositionMode(r.PositionType),
		ProtectiveDistance: r.PairReward,
		EquityFraction:     fraction,
		LotSizeMultiplier:  lot,
		ExternalRef:        r.DBPath,
	}
	if err := instr.Validate(); err != nil {
		return creds, instr, err
	}
	return creds, instr, nil
}

// RunResponse is returned for every workflow outcome.
type RunResponse struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	RunID  string `json:"runId,omitempty"`
	State  string `json:"state,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}
