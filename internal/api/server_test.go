package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// stubExecutor records the instruction it received and returns a canned outcome.
type stubExecutor struct {
	mu    sync.Mutex
	calls int
	creds domain.Credentials
	instr domain.TradeInstruction
	ctxOK bool
	err   error
	state domain.WorkflowState
}

func (s *stubExecutor) Execute(ctx context.Context, creds domain.Credentials, instr domain.TradeInstruction) (*domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.creds, s.instr = creds, instr
	s.ctxOK = ctx.Done() == nil
	state := s.state
	if state == "" {
		state = domain.StateDone
	}
	return &domain.RunRecord{RunID: "run-123", State: state}, s.err
}

func newTestServer(t *testing.T, exec Executor) *Server {
	t.Helper()
	s, err := NewServer(Config{
		Addr:                  ":0",
		DefaultEquityFraction: decimal.RequireFromString("0.20"),
		Executor:              exec,
		Logger:                nopLogger{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	require.NoError(t, err)
	return s
}

func post(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, RunResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/crypto", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

const validPayload = `{
	"apiKey": "k", "apiSecret": "s", "isTest": "yes",
	"symbol": "btcusdt", "executionType": "buy", "positionType": "newPosition",
	"pairReward": "100.5", "totalLotSize": 2, "dbPath": "/data/strat.db"
}`

func TestWebhook_Success(t *testing.T) {
	exec := &stubExecutor{}
	s := newTestServer(t, exec)

	rec, resp := post(t, s, validPayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RunResponse{Status: "success", RunID: "run-123", State: "DONE"}, resp)

	require.Equal(t, 1, exec.calls)
	assert.True(t, exec.creds.Testnet)
	assert.Equal(t, "k", exec.creds.APIKey)
	assert.Equal(t, "BTCUSDT", exec.instr.Symbol)
	assert.Equal(t, domain.Buy, exec.instr.ExecutionSide)
	assert.Equal(t, domain.CloseAndOpen, exec.instr.PositionMode)
	assert.True(t, exec.instr.ProtectiveDistance.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, exec.instr.LotSizeMultiplier.Equal(decimal.NewFromInt(2)))
	assert.True(t, exec.instr.EquityFraction.Equal(decimal.RequireFromString("0.20")), "default fraction applied")
	assert.Equal(t, "/data/strat.db", exec.instr.ExternalRef)
	assert.True(t, exec.ctxOK, "workflow context is detached from the request")
}

func TestWebhook_CloseOnlyWithExplicitFraction(t *testing.T) {
	exec := &stubExecutor{}
	s := newTestServer(t, exec)

	rec, _ := post(t, s, `{"apiKey":"k","apiSecret":"s","isTest":false,"symbol":"ETHUSDT",
		"executionType":"SELL","positionType":"close","equityFraction":"0.5"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, exec.creds.Testnet)
	assert.Equal(t, domain.CloseOnly, exec.instr.PositionMode)
	assert.True(t, exec.instr.EquityFraction.Equal(decimal.RequireFromString("0.5")))
}

func TestWebhook_BadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"apiKey":`},
		{"missing credentials", `{"symbol":"BTCUSDT","executionType":"BUY"}`},
		{"bad side", `{"apiKey":"k","apiSecret":"s","symbol":"BTCUSDT","executionType":"HOLD"}`},
		{"bad isTest", `{"apiKey":"k","apiSecret":"s","isTest":"maybe","symbol":"BTCUSDT","executionType":"BUY"}`},
		{"missing symbol", `{"apiKey":"k","apiSecret":"s","executionType":"BUY"}`},
		{"negative distance", `{"apiKey":"k","apiSecret":"s","symbol":"BTCUSDT","executionType":"BUY","positionType":"new","pairReward":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{}
			s := newTestServer(t, exec)

			rec, resp := post(t, s, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, RunResponse{Status: "failure", Code: ports.CodeInvalidRequest}, resp)
			assert.Zero(t, exec.calls)
		})
	}
}

func TestWebhook_WorkflowFailureStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("open: %w", ports.ErrGatewayAuth), http.StatusUnauthorized, ports.CodeGatewayAuth},
		{fmt.Errorf("run: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ports.CodeTimeout},
		{fmt.Errorf("tp: %w", ports.ErrProtectiveOrderExhausted), http.StatusInternalServerError, ports.CodeProtectiveOrderExhausted},
		{fmt.Errorf("entry: %w: secret detail", ports.ErrOrderRejected), http.StatusInternalServerError, ports.CodeOrderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := newTestServer(t, &stubExecutor{err: tt.err, state: domain.StateFailed})

			rec, resp := post(t, s, validPayload)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, RunResponse{Status: "failure", Code: tt.code, RunID: "run-123", State: "FAILED"}, resp)
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t, &stubExecutor{})
	fixed := int64(1700000000000)
	s.now = func() time.Time { return time.UnixMilli(fixed) }

	get := func(path string) (int, string) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		body, _ := io.ReadAll(rec.Body)
		return rec.Code, string(body)
	}

	code, body := get("/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "API is live", body)

	code, body = get("/crypto")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"success"}`, body)

	code, body = get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","time":1700000000000}`, body)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "# metrics", body)

	code, _ = get("/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &stubExecutor{})

	req := httptest.NewRequest(http.MethodOptions, "/crypto", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{Logger: nopLogger{}, DefaultEquityFraction: decimal.NewFromInt(1)})
	assert.Error(t, err)

	_, err = NewServer(Config{Logger: nopLogger{}, Executor: &stubExecutor{}})
	assert.Error(t, err)
}

func TestFlexBool(t *testing.T) {
	for in, want := range map[string]bool{`true`: true, `"yes"`: true, `"No"`: false, `null`: false, `"1"`: true} {
		var b FlexBool
		require.NoError(t, json.Unmarshal([]byte(in), &b), in)
		assert.Equal(t, want, bool(b), in)
	}
	var b FlexBool
	assert.Error(t, json.Unmarshal([]byte(`3`), &b))
}
