package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkflowState is a state of the trade execution state machine.
type WorkflowState string

const (
	StateIdle                    WorkflowState = "IDLE"
	StateSizing                  WorkflowState = "SIZING"
	StateClosingIfOpen           WorkflowState = "CLOSING_IF_OPEN"
	StateOpeningIfRequested      WorkflowState = "OPENING_IF_REQUESTED"
	StateAwaitingProtectiveOrder WorkflowState = "AWAITING_PROTECTIVE_ORDER"
	StateDone                    WorkflowState = "DONE"
	StateFailed                  WorkflowState = "FAILED"
)

// IsTerminal reports whether no further transition can happen.
func (s WorkflowState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// LifecycleEvent is the fire-and-forget payload sent to the notification sink.
type LifecycleEvent struct {
	Symbol        string
	Phase         Phase
	CorrelationID string
}

// RunRecord summarises one workflow run. It is returned to the caller and written to the journal.
type RunRecord struct {
	ID                 int64
	RunID              string
	Symbol             string
	Side               OrderSide
	Mode               PositionMode
	ExternalRef        string
	State              WorkflowState
	FailedAt           WorkflowState // step that failed; empty unless State is FAILED
	ErrorCode          string
	ErrorMessage       string
	CloseOrderID       int64
	EntryOrderID       int64
	ProtectiveOrderID  int64
	ClosedQuantity     decimal.Decimal
	EntryQuantity      decimal.Decimal
	FillPrice          decimal.Decimal
	ProtectivePrice    decimal.Decimal
	ProtectiveAttempts int
	StartedAt          time.Time
	FinishedAt         time.Time
}

// Duration is the wall time of the run.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
