package ports

import (
	"context"
	"errors"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Workflow taxonomy
	ErrGatewayAuth              = errors.New("exchange gateway authentication failed")
	ErrMarketDataUnavailable    = errors.New("market data unavailable")
	ErrPricingUnavailable       = errors.New("price unavailable for sizing")
	ErrOrderRejected            = errors.New("order rejected")
	ErrProtectiveOrderExhausted = errors.New("protective order retries exhausted")
	ErrNotificationFailure      = errors.New("lifecycle notification failed")
	ErrPartialCancelFailure     = errors.New("some open orders could not be cancelled")
	ErrLockUnavailable          = errors.New("symbol lock unavailable")

	// Exchange Specific Errors
	ErrExchangeUnavailable    = errors.New("exchange API is unavailable")
	ErrConnectionFailed       = errors.New("failed to connect to the exchange")
	ErrRateLimited            = errors.New("API rate limit exceeded")
	ErrTimestampOutsideWindow = errors.New("request timestamp outside the exchange recvWindow")
	ErrInsufficientFunds      = errors.New("insufficient funds for operation")
	ErrOrderNotFound          = errors.New("order not found on the exchange")
	ErrDuplicateOrder         = errors.New("client order id already used by a live order")
	ErrUnsupportedAccountMode = errors.New("hedge position mode is not supported")

	// Database Specific Errors
	ErrQueryFailed = errors.New("database query failed")
)

// Error codes exposed to webhook callers. They never carry internal error text.
const (
	CodeGatewayAuth              = "GATEWAY_AUTH"
	CodeMarketDataUnavailable    = "MARKET_DATA_UNAVAILABLE"
	CodePricingUnavailable       = "PRICING_UNAVAILABLE"
	CodeOrderRejected            = "ORDER_REJECTED"
	CodeProtectiveOrderExhausted = "PROTECTIVE_ORDER_EXHAUSTED"
	CodeLockUnavailable          = "LOCK_UNAVAILABLE"
	CodeUnsupportedAccountMode   = "UNSUPPORTED_ACCOUNT_MODE"
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeTimeout                  = "TIMEOUT"
	CodeUnknown                  = "UNKNOWN"
)

// ErrorCode maps an error chain to a stable code. Order matters: the most specific
// workflow classification wins over the transport cause it wraps.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProtectiveOrderExhausted):
		return CodeProtectiveOrderExhausted
	case errors.Is(err, ErrGatewayAuth):
		return CodeGatewayAuth
	case errors.Is(err, ErrOrderRejected):
		return CodeOrderRejected
	case errors.Is(err, ErrPricingUnavailable):
		return CodePricingUnavailable
	case errors.Is(err, ErrUnsupportedAccountMode):
		return CodeUnsupportedAccountMode
	case errors.Is(err, ErrMarketDataUnavailable):
		return CodeMarketDataUnavailable
	case errors.Is(err, ErrLockUnavailable):
		return CodeLockUnavailable
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}
