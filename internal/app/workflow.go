package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"futuresHook/config"
	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
	"futuresHook/internal/risk"
)

const journalWriteTimeout = 5 * time.Second

// TradeExecutor runs the close/open/protect workflow for one instruction at a time per call.
// It holds no per-run state; concurrent Execute calls are independent.
type TradeExecutor struct {
	cfg       *config.Config
	logger    ports.Logger
	gateways  ports.GatewayFactory
	sink      ports.NotificationSink
	journal   ports.RunJournal
	locker    ports.SymbolLocker
	metrics   ports.Metrics
	clock     *ClockSync
	sizer     *risk.Sizer
	submitter *OrderSubmitter
	now       func() time.Time
}

// NewTradeExecutor creates a new workflow executor. sink, journal, locker and metrics are optional.
func NewTradeExecutor(
	cfg *config.Config,
	logger ports.Logger,
	gateways ports.GatewayFactory,
	sink ports.NotificationSink,
	journal ports.RunJournal,
	locker ports.SymbolLocker,
	metrics ports.Metrics,
) (*TradeExecutor, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || gateways == nil {
		return nil, fmt.Errorf("missing required dependencies for TradeExecutor")
	}
	if cfg.WorkflowTimeout <= 0 {
		return nil, fmt.Errorf("configuration WorkflowTimeout must be positive")
	}
	if cfg.ProtectiveBackoffMin <= 0 || cfg.ProtectiveBackoffMax < cfg.ProtectiveBackoffMin {
		return nil, fmt.Errorf("configuration protective backoff bounds are invalid")
	}
	if cfg.ProtectiveRetryWindow <= 0 {
		return nil, fmt.Errorf("configuration ProtectiveRetryWindow must be positive")
	}

	if sink == nil {
		sink = ports.NopSink{}
	}
	if locker == nil {
		locker = ports.NopLocker{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &TradeExecutor{
		cfg:       cfg,
		logger:    logger,
		gateways:  gateways,
		sink:      sink,
		journal:   journal,
		locker:    locker,
		metrics:   metrics,
		clock:     NewClockSync(cfg.EntryTimeSkew, cfg.CloseTimeSkew),
		sizer:     risk.NewSizer(risk.SizingConfig{FallbackNotional: cfg.FallbackNotional, Precision: cfg.QuantityPrecision}),
		submitter: NewOrderSubmitter(logger, metrics),
		now:       time.Now,
	}, nil
}

// Execute runs one instruction to a terminal state. The returned record is never nil;
// on failure its State is FAILED and the error carries the classification sentinel.
func (e *TradeExecutor) Execute(ctx context.Context, creds domain.Credentials, instr domain.TradeInstruction) (*domain.RunRecord, error) {
	run := &domain.RunRecord{
		RunID:       uuid.NewString(),
		Symbol:      instr.Symbol,
		Side:        instr.ExecutionSide,
		Mode:        instr.PositionMode,
		ExternalRef: instr.ExternalRef,
		State:       domain.StateIdle,
		StartedAt:   e.now().UTC(),
	}
	defer e.finish(ctx, run)

	if err := instr.Validate(); err != nil {
		return run, e.fail(ctx, run, fmt.Errorf("%w: %w", ports.ErrInvalidRequest, err))
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.WorkflowTimeout)
	defer cancel()

	e.logger.Info(ctx, "Execute: Instruction received", e.fields(run, nil))

	unlock, err := e.locker.Lock(ctx, instr.Symbol)
	if err != nil {
		return run, e.fail(ctx, run, fmt.Errorf("%w: %w", ports.ErrLockUnavailable, err))
	}
	defer unlock()

	gw, err := e.gateways.Open(ctx, creds)
	if err != nil {
		return run, e.fail(ctx, run, err)
	}

	// Sizing: every decision starts from a fresh read of exchange state.
	run.State = domain.StateSizing
	pos, err := gw.GetPosition(ctx, instr.Symbol)
	if err != nil {
		return run, e.fail(ctx, run, fmt.Errorf("query position: %w: %w", ports.ErrMarketDataUnavailable, err))
	}

	run.State = domain.StateClosingIfOpen
	if !pos.IsFlat() {
		if err := e.closePosition(ctx, gw, run, pos); err != nil {
			if e.cfg.NotifyExitOnCloseFailure {
				e.notify(ctx, run, domain.PhaseExit)
			}
			return run, e.fail(ctx, run, err)
		}
		e.notify(ctx, run, domain.PhaseExit)
	} else {
		e.logger.Info(ctx, "Execute: No open position to close", e.fields(run, nil))
	}

	if instr.PositionMode != domain.CloseAndOpen {
		run.State = domain.StateDone
		return run, nil
	}

	run.State = domain.StateOpeningIfRequested
	entry, err := e.openPosition(ctx, gw, run, instr)
	if err != nil {
		return run, e.fail(ctx, run, err)
	}

	run.State = domain.StateAwaitingProtectiveOrder
	if err := e.placeProtective(ctx, gw, run, instr, entry); err != nil {
		return run, e.fail(ctx, run, err)
	}

	e.notify(ctx, run, domain.PhaseEntry)
	run.State = domain.StateDone
	return run, nil
}

// closePosition flattens pos with a MARKET order on the side that reduces it,
// then cancels whatever is still resting on the symbol.
func (e *TradeExecutor) closePosition(ctx context.Context, gw ports.ExchangeGateway, run *domain.RunRecord, pos *domain.Position) error {
	op := "closePosition"

	ts, err := e.clock.NowAdjusted(ctx, gw, domain.Backward)
	if err != nil {
		return err
	}

	req := domain.NewMarketOrder(pos.Symbol, pos.CloseSide(), pos.CloseQuantity(), ts).
		WithClientOrderID(clientOrderID("close"))
	e.logger.Info(ctx, op+": Closing open position", e.fields(run, map[string]interface{}{
		"signedQuantity": pos.SignedQuantity.String(),
		"closeSide":      req.Side,
		"timestamp":      ts,
	}))

	resp, err := e.submitter.Submit(ctx, gw, req)
	if err != nil {
		return err
	}
	run.CloseOrderID = resp.OrderID
	run.ClosedQuantity = req.Quantity

	if n, err := e.submitter.CancelAllOpen(ctx, gw, pos.Symbol); err != nil {
		e.logger.Warn(ctx, op+": Open orders not fully cancelled", e.fields(run, map[string]interface{}{"cancelled": n, "error": err.Error()}))
	}
	return nil
}

// openPosition sizes and submits the MARKET entry.
func (e *TradeExecutor) openPosition(ctx context.Context, gw ports.ExchangeGateway, run *domain.RunRecord, instr domain.TradeInstruction) (*ports.OrderResponse, error) {
	op := "openPosition"

	in := risk.SizingInput{EquityFraction: instr.EquityFraction, LotMultiplier: instr.LotSizeMultiplier}
	balance, err := gw.GetAccountBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		e.logger.Warn(ctx, op+": Balance unavailable, using fallback notional", e.fields(run, map[string]interface{}{
			"fallbackNotional": e.cfg.FallbackNotional.String(),
			"error":            err.Error(),
		}))
	} else {
		in.Balance, in.BalanceKnown = balance, true
	}

	price, err := gw.GetTickerPrice(ctx, instr.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: ticker price: %w: %w", op, ports.ErrMarketDataUnavailable, err)
	}
	in.Price = price

	qty, err := e.sizer.Size(in)
	if err != nil {
		return nil, err
	}

	ts, err := e.clock.NowAdjusted(ctx, gw, domain.Forward)
	if err != nil {
		if e.cfg.RequireServerTime {
			return nil, err
		}
		e.logger.Warn(ctx, op+": Server time unavailable, signing with local clock", e.fields(run, map[string]interface{}{"error": err.Error()}))
		ts = 0
	}

	req := domain.NewMarketOrder(instr.Symbol, instr.ExecutionSide, qty, ts).
		WithClientOrderID(clientOrderID("entry"))
	e.logger.Info(ctx, op+": Placing entry market order", e.fields(run, map[string]interface{}{
		"quantity":  qty.String(),
		"price":     price.String(),
		"fallback":  !in.BalanceKnown,
		"timestamp": ts,
	}))

	resp, err := e.submitter.Submit(ctx, gw, req)
	if err != nil {
		return nil, err
	}
	run.EntryOrderID = resp.OrderID
	run.EntryQuantity = qty
	return resp, nil
}

// placeProtective rests a LIMIT order on the inverse side at fill ± distance and
// retries with exponential backoff until it is accepted or the retry budget runs out.
func (e *TradeExecutor) placeProtective(ctx context.Context, gw ports.ExchangeGateway, run *domain.RunRecord, instr domain.TradeInstruction, entry *ports.OrderResponse) error {
	op := "placeProtective"

	fill, err := gw.GetTickerPrice(ctx, instr.Symbol)
	if err != nil || !fill.IsPositive() {
		if !entry.AvgPrice.IsPositive() {
			return fmt.Errorf("%s: fill price: %w: %w", op, ports.ErrMarketDataUnavailable, errors.Join(err, errors.New("entry average price is zero")))
		}
		e.logger.Warn(ctx, op+": Ticker unavailable, using entry average price", e.fields(run, map[string]interface{}{"avgPrice": entry.AvgPrice.String()}))
		fill = entry.AvgPrice
	}
	run.FillPrice = fill

	price := ProtectivePrice(instr.ExecutionSide, fill, instr.ProtectiveDistance)
	run.ProtectivePrice = price
	if !price.IsPositive() {
		// The exchange would reject this forever; no retry can fix the input.
		return fmt.Errorf("%s: %w: protective price %s is not positive", op, ports.ErrOrderRejected, price)
	}

	// One client order ID for every attempt, so the exchange refuses a second copy of an
	// order that was accepted but reported as failed.
	req := domain.NewLimitOrder(instr.Symbol, instr.ExecutionSide.Inverse(), run.EntryQuantity, price).
		WithClientOrderID(clientOrderID("tp"))

	retryCtx, cancel := context.WithTimeout(ctx, e.cfg.ProtectiveRetryWindow)
	defer cancel()

	b := &backoff.Backoff{
		Min:    e.cfg.ProtectiveBackoffMin,
		Max:    e.cfg.ProtectiveBackoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		run.ProtectiveAttempts = attempt
		resp, err := e.submitter.Submit(retryCtx, gw, req)
		if errors.Is(err, ports.ErrDuplicateOrder) {
			resp, err = e.confirmProtective(retryCtx, gw, run, req)
		}
		if err == nil {
			run.ProtectiveOrderID = resp.OrderID
			return nil
		}
		lastErr = err

		if limit := e.cfg.ProtectiveMaxAttempts; limit > 0 && attempt >= limit {
			break
		}

		wait := b.Duration()
		e.metrics.IncProtectiveRetry()
		e.logger.Warn(ctx, op+": Protective order failed, retrying", e.fields(run, map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
			"price":   price.String(),
			"error":   err.Error(),
		}))

		timer := time.NewTimer(wait)
		select {
		case <-retryCtx.Done():
			timer.Stop()
			lastErr = errors.Join(lastErr, retryCtx.Err())
			return fmt.Errorf("%s: after %d attempts: %w: %w", op, attempt, ports.ErrProtectiveOrderExhausted, lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s: after %d attempts: %w: %w", op, run.ProtectiveAttempts, ports.ErrProtectiveOrderExhausted, lastErr)
}

// confirmProtective resolves a duplicate client order ID rejection by looking up the
// order an earlier attempt already placed.
func (e *TradeExecutor) confirmProtective(ctx context.Context, gw ports.ExchangeGateway, run *domain.RunRecord, req domain.OrderRequest) (*ports.OrderResponse, error) {
	op := "confirmProtective"
	resp, err := gw.GetOrderByClientID(ctx, req.Symbol, req.ClientOrderID)
	if err != nil {
		return nil, fmt.Errorf("%s: lookup %s: %w", op, req.ClientOrderID, err)
	}
	switch resp.Status {
	case "CANCELED", "EXPIRED", "REJECTED":
		return nil, fmt.Errorf("%s: %w: order %d is %s", op, ports.ErrOrderRejected, resp.OrderID, resp.Status)
	}
	e.logger.Info(ctx, op+": Earlier protective attempt was accepted", e.fields(run, map[string]interface{}{
		"orderID":       resp.OrderID,
		"clientOrderID": req.ClientOrderID,
		"status":        resp.Status,
	}))
	return resp, nil
}

// ProtectivePrice is fill + distance for a BUY entry and fill - distance for a SELL entry.
func ProtectivePrice(entrySide domain.OrderSide, fill, distance decimal.Decimal) decimal.Decimal {
	if entrySide == domain.Buy {
		return fill.Add(distance)
	}
	return fill.Sub(distance)
}

// notify sends one lifecycle event. Failures are logged and swallowed.
func (e *TradeExecutor) notify(ctx context.Context, run *domain.RunRecord, phase domain.Phase) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifyTimeout)
	defer cancel()

	event := domain.LifecycleEvent{Symbol: run.Symbol, Phase: phase, CorrelationID: run.ExternalRef}
	if err := e.sink.Notify(nctx, event); err != nil {
		e.metrics.IncNotification(phase, false)
		e.logger.Warn(ctx, "notify: Lifecycle notification failed", e.fields(run, map[string]interface{}{"phase": phase, "error": err.Error()}))
		return
	}
	e.metrics.IncNotification(phase, true)
}

func (e *TradeExecutor) fail(ctx context.Context, run *domain.RunRecord, err error) error {
	run.FailedAt = run.State
	run.State = domain.StateFailed
	run.ErrorCode = ports.ErrorCode(err)
	run.ErrorMessage = err.Error()
	e.logger.Error(ctx, err, "Execute: Workflow failed", e.fields(run, map[string]interface{}{
		"step": run.FailedAt,
		"code": run.ErrorCode,
	}))
	return err
}

// finish stamps the record, emits metrics and journals it. Journal errors never change the outcome.
func (e *TradeExecutor) finish(ctx context.Context, run *domain.RunRecord) {
	run.FinishedAt = e.now().UTC()
	e.metrics.ObserveRun(run.State, run.ErrorCode, run.Duration())

	if run.State == domain.StateDone {
		e.logger.Info(ctx, "Execute: Workflow done", e.fields(run, map[string]interface{}{"duration": run.Duration().String()}))
	}

	if e.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	id, err := e.journal.Record(jctx, run)
	if err != nil {
		e.logger.Error(ctx, err, "Execute: Failed to journal run", e.fields(run, nil))
		return
	}
	run.ID = id
}

func (e *TradeExecutor) fields(run *domain.RunRecord, extra map[string]interface{}) map[string]interface{} {
	f := map[string]interface{}{
		"runID":  run.RunID,
		"symbol": run.Symbol,
		"state":  run.State,
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// clientOrderID returns a newClientOrderId under the exchange's 36 character limit.
func clientOrderID(tag string) string {
	return tag + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
