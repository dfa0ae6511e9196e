package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"futuresHook/config"
	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockGateway struct {
	mu sync.Mutex

	position    decimal.Decimal
	positionErr error
	balance     decimal.Decimal
	balanceErr  error
	prices      []decimal.Decimal // consumed in order; the last one repeats
	priceErr    error
	serverTime  int64
	timeErr     error

	// createErrs is keyed by the clientOrderID tag (close, entry, tp).
	createErrs   map[string]error
	tpFailures   int // number of protective submissions to reject before accepting
	tpLostAcks   int // protective submissions accepted by the book but reported as timeouts
	openOrders   []ports.OpenOrder
	listErr      error
	cancelErrs   map[int64]error
	entryAvgPx   decimal.Decimal
	nextOrderID  int64
	orders       []domain.OrderRequest
	cancelledIDs []int64
	priceCalls   int

	// live holds accepted orders by clientOrderID; reusing one is refused like the exchange does.
	live    map[string]*ports.OrderResponse
	lookups int

	// positionGate, when set, blocks GetPosition until a value arrives. positionCalls counts entries.
	positionGate  chan struct{}
	positionCalls chan struct{}
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		balance:     decimal.NewFromInt(1000),
		prices:      []decimal.Decimal{decimal.NewFromInt(10)},
		serverTime:  1_700_000_000_000,
		createErrs:  map[string]error{},
		cancelErrs:  map[int64]error{},
		nextOrderID: 100,
		live:        map[string]*ports.OrderResponse{},
	}
}

func (m *mockGateway) GetAccountBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return m.balance, m.balanceErr
}

func (m *mockGateway) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priceErr != nil {
		return decimal.Zero, m.priceErr
	}
	idx := m.priceCalls
	if idx >= len(m.prices) {
		idx = len(m.prices) - 1
	}
	m.priceCalls++
	return m.prices[idx], nil
}

func (m *mockGateway) GetServerTime(ctx context.Context) (int64, error) {
	return m.serverTime, m.timeErr
}

func (m *mockGateway) CreateOrder(ctx context.Context, req domain.OrderRequest) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, req)

	tag := strings.SplitN(req.ClientOrderID, "-", 2)[0]
	if err := m.createErrs[tag]; err != nil {
		return nil, err
	}
	if _, ok := m.live[req.ClientOrderID]; ok {
		return nil, fmt.Errorf("CreateOrder failed: %w", ports.ErrDuplicateOrder)
	}
	if tag == "tp" && m.tpFailures > 0 {
		m.tpFailures--
		return nil, errors.New("Order would immediately trigger")
	}
	m.nextOrderID++
	resp := &ports.OrderResponse{
		OrderID:       m.nextOrderID,
		Symbol:        req.Symbol,
		ClientOrderID: req.ClientOrderID,
		Price:         req.Price,
		AvgPrice:      m.entryAvgPx,
		OrigQuantity:  req.Quantity,
		Status:        "NEW",
		Type:          string(req.Kind),
		Side:          string(req.Side),
		Timestamp:     time.Now(),
	}
	m.live[req.ClientOrderID] = resp
	if tag == "tp" && m.tpLostAcks > 0 {
		m.tpLostAcks--
		return nil, fmt.Errorf("CreateOrder failed: %w: %w", ports.ErrTimeout, context.DeadlineExceeded)
	}
	return resp, nil
}

func (m *mockGateway) GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	resp, ok := m.live[clientOrderID]
	if !ok {
		return nil, fmt.Errorf("GetOrderByClientID failed: %w", ports.ErrOrderNotFound)
	}
	return resp, nil
}

// liveByTag counts accepted orders whose clientOrderID starts with tag.
func (m *mockGateway) liveByTag(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id := range m.live {
		if strings.HasPrefix(id, tag+"-") {
			n++
		}
	}
	return n
}

func (m *mockGateway) ListOpenOrders(ctx context.Context, symbol string) ([]ports.OpenOrder, error) {
	return m.openOrders, m.listErr
}

func (m *mockGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.cancelErrs[orderID]; err != nil {
		return nil, err
	}
	m.cancelledIDs = append(m.cancelledIDs, orderID)
	return &ports.OrderResponse{OrderID: orderID, Symbol: symbol, Status: "CANCELED"}, nil
}

func (m *mockGateway) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	if m.positionCalls != nil {
		m.positionCalls <- struct{}{}
	}
	if m.positionGate != nil {
		select {
		case <-m.positionGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.positionErr != nil {
		return nil, m.positionErr
	}
	return &domain.Position{Symbol: symbol, SignedQuantity: m.position}, nil
}

// ordersByTag returns the submitted requests whose clientOrderID starts with tag.
func (m *mockGateway) ordersByTag(tag string) []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderRequest
	for _, o := range m.orders {
		if strings.HasPrefix(o.ClientOrderID, tag+"-") {
			out = append(out, o)
		}
	}
	return out
}

type mockFactory struct {
	mu      sync.Mutex
	gw      *mockGateway
	openErr error
	opened  int
}

func (f *mockFactory) Open(ctx context.Context, creds domain.Credentials) (ports.ExchangeGateway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.gw, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
	err    error
}

func (s *recordingSink) Notify(ctx context.Context, event domain.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) phases() []domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Phase, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Phase)
	}
	return out
}

type mockJournal struct {
	mu      sync.Mutex
	runs    []*domain.RunRecord
	saveErr error
}

func (j *mockJournal) Record(ctx context.Context, run *domain.RunRecord) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.saveErr != nil {
		return 0, j.saveErr
	}
	j.runs = append(j.runs, run)
	return int64(len(j.runs)), nil
}

func (j *mockJournal) FindByRunID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return nil, nil
}

func (j *mockJournal) FindRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	return nil, nil
}

func (j *mockJournal) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.RunRecord, error) {
	return nil, nil
}

func (j *mockJournal) CountByState(ctx context.Context, state domain.WorkflowState) (int, error) {
	return 0, nil
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(ctx context.Context, symbol string) (func(), error) {
	return nil, l.err
}

type countingMetrics struct {
	ports.NopMetrics
	mu      sync.Mutex
	retries int
	states  []domain.WorkflowState
}

func (c *countingMetrics) IncProtectiveRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}

func (c *countingMetrics) ObserveRun(state domain.WorkflowState, code string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
}

func testConfig() *config.Config {
	return &config.Config{
		QuoteAsset:               "USDT",
		DefaultEquityFraction:    decimal.RequireFromString("0.20"),
		FallbackNotional:         decimal.NewFromInt(10),
		QuantityPrecision:        0,
		EntryTimeSkew:            2000 * time.Millisecond,
		CloseTimeSkew:            1000 * time.Millisecond,
		RequireServerTime:        true,
		ProtectiveMaxAttempts:    5,
		ProtectiveBackoffMin:     time.Millisecond,
		ProtectiveBackoffMax:     2 * time.Millisecond,
		ProtectiveRetryWindow:    5 * time.Second,
		WorkflowTimeout:          10 * time.Second,
		NotifyTimeout:            time.Second,
		NotifyExitOnCloseFailure: true,
	}
}
