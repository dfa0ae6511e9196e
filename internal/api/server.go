// Package api exposes the webhook that triggers trade execution runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

const maxBodyBytes = 1 << 20

// Executor runs one workflow for a decoded instruction.
type Executor interface {
	Execute(ctx context.Context, creds domain.Credentials, instr domain.TradeInstruction) (*domain.RunRecord, error)
}

// Config holds the webhook server dependencies.
type Config struct {
	Addr                  string
	AllowedOrigins        []string
	DefaultEquityFraction decimal.Decimal
	Executor              Executor
	Logger                ports.Logger
	MetricsHandler        http.Handler // nil disables /metrics
}

// Server handles the webhook and operational endpoints.
type Server struct {
	cfg     Config
	router  *mux.Router
	httpSrv *http.Server
	now     func() time.Time
}

// NewServer creates a new API server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Executor == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("executor and logger are required for API server")
	}
	if !cfg.DefaultEquityFraction.IsPositive() {
		return nil, fmt.Errorf("default equity fraction must be positive")
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.setupRoutes()
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/crypto", s.handleWebhook).Methods("POST")
	s.router.HandleFunc("/crypto", s.handleWebhookAck).Methods("GET")
	s.router.HandleFunc("/", s.handleRoot).Methods("GET", "POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.cfg.MetricsHandler != nil {
		s.router.Handle("/metrics", s.cfg.MetricsHandler).Methods("GET")
	}
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Start serves until Shutdown is called. http.ErrServerClosed is not reported.
func (s *Server) Start() error {
	s.cfg.Logger.Info(context.Background(), "API server starting", map[string]interface{}{"addr": s.cfg.Addr})
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, including running workflows, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op := "handleWebhook"

	var req WebhookRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.cfg.Logger.Warn(ctx, op+": Malformed payload", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusBadRequest, ports.CodeInvalidRequest)
		return
	}

	creds, instr, err := req.toInstruction(s.cfg.DefaultEquityFraction)
	if err != nil {
		s.cfg.Logger.Warn(ctx, op+": Invalid payload", map[string]interface{}{"symbol": req.Symbol, "error": err.Error()})
		respondError(w, http.StatusBadRequest, ports.CodeInvalidRequest)
		return
	}

	// A dropped caller connection must not abort a half-placed trade.
	run, err := s.cfg.Executor.Execute(context.WithoutCancel(ctx), creds, instr)
	if err != nil {
		code := ports.ErrorCode(err)
		resp := RunResponse{Status: "failure", Code: code}
		if run != nil {
			resp.RunID = run.RunID
			resp.State = string(run.State)
		}
		respondStatus(w, statusForCode(code), resp)
		return
	}

	respondJSON(w, RunResponse{Status: "success", RunID: run.RunID, State: string(run.State)})
}

func (s *Server) handleWebhookAck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, RunResponse{Status: "success"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API is live"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Time: s.now().UnixMilli()})
}

func statusForCode(code string) int {
	switch code {
	case ports.CodeInvalidRequest:
		return http.StatusBadRequest
	case ports.CodeGatewayAuth:
		return http.StatusUnauthorized
	case ports.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondStatus(w, status, RunResponse{Status: "failure", Code: code})
}
