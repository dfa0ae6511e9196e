package ports

import (
	"context"

	"futuresHook/internal/domain"
)

// RunJournal stores an audit record of every workflow run.
type RunJournal interface {
	// Record saves a finished run and returns its assigned ID.
	Record(ctx context.Context, run *domain.RunRecord) (int64, error)
	// FindByRunID retrieves a run by its UUID. Returns nil, nil if not found.
	FindByRunID(ctx context.Context, runID string) (*domain.RunRecord, error)
	// FindRecent retrieves the most recent runs, newest first.
	FindRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error)
	// FindBySymbol retrieves the most recent runs for a symbol, newest first.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.RunRecord, error)
	// CountByState counts runs that ended in the given state.
	CountByState(ctx context.Context, state domain.WorkflowState) (int, error)
}
