package app

import (
	"context"
	"fmt"
	"time"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// ClockSync derives signed-request timestamps from the exchange clock.
type ClockSync struct {
	entrySkew time.Duration
	closeSkew time.Duration
}

// NewClockSync creates a clock synchronizer. entrySkew is added for Forward, closeSkew subtracted for Backward.
func NewClockSync(entrySkew, closeSkew time.Duration) *ClockSync {
	return &ClockSync{entrySkew: entrySkew, closeSkew: closeSkew}
}

// NowAdjusted returns the exchange server time in epoch ms shifted by the skew for direction.
// It never fabricates a timestamp: on failure it returns 0 and an error wrapping ErrMarketDataUnavailable.
func (c *ClockSync) NowAdjusted(ctx context.Context, gw ports.ExchangeGateway, direction domain.ClockDirection) (int64, error) {
	serverTime, err := gw.GetServerTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("server time failed: %w: %w", ports.ErrMarketDataUnavailable, err)
	}
	if direction == domain.Forward {
		return serverTime + c.entrySkew.Milliseconds(), nil
	}
	return serverTime - c.closeSkew.Milliseconds(), nil
}
