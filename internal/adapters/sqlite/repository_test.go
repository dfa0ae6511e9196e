package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleRun(runID, symbol string, state domain.WorkflowState, started time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:              runID,
		Symbol:             symbol,
		Side:               domain.Buy,
		Mode:               domain.CloseAndOpen,
		ExternalRef:        "/data/strategy.db",
		State:              state,
		CloseOrderID:       11,
		EntryOrderID:       12,
		ProtectiveOrderID:  13,
		ClosedQuantity:     decimal.RequireFromString("3.5"),
		EntryQuantity:      decimal.NewFromInt(20),
		FillPrice:          decimal.RequireFromString("50123.45"),
		ProtectivePrice:    decimal.RequireFromString("50223.45"),
		ProtectiveAttempts: 2,
		StartedAt:          started,
		FinishedAt:         started.Add(1200 * time.Millisecond),
	}
}

func TestRepository_RecordAndFindByRunID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	run := sampleRun("run-1", "BTCUSDT", domain.StateDone, started)
	id, err := repo.Record(ctx, run)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, run.ID)

	got, err := repo.FindByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, domain.Buy, got.Side)
	assert.Equal(t, domain.CloseAndOpen, got.Mode)
	assert.Equal(t, domain.StateDone, got.State)
	assert.Equal(t, "/data/strategy.db", got.ExternalRef)
	assert.Equal(t, int64(13), got.ProtectiveOrderID)
	assert.True(t, got.ClosedQuantity.Equal(run.ClosedQuantity))
	assert.True(t, got.FillPrice.Equal(run.FillPrice))
	assert.True(t, got.ProtectivePrice.Equal(run.ProtectivePrice))
	assert.Equal(t, 2, got.ProtectiveAttempts)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 1200*time.Millisecond, got.Duration())
}

func TestRepository_FindByRunIDNotFound(t *testing.T) {
	repo := setupTestDB(t)

	got, err := repo.FindByRunID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_DuplicateRunID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.Record(ctx, sampleRun("dup", "BTCUSDT", domain.StateDone, time.Now().UTC()))
	require.NoError(t, err)

	_, err = repo.Record(ctx, sampleRun("dup", "BTCUSDT", domain.StateDone, time.Now().UTC()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
}

func TestRepository_FailedRunFields(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	run := &domain.RunRecord{
		RunID:        "failed-1",
		Symbol:       "ETHUSDT",
		Side:         domain.Sell,
		Mode:         domain.CloseOnly,
		State:        domain.StateFailed,
		FailedAt:     domain.StateClosingIfOpen,
		ErrorCode:    ports.CodeOrderRejected,
		ErrorMessage: "Submit failed: order rejected",
		StartedAt:    time.Now().UTC(),
		FinishedAt:   time.Now().UTC(),
	}
	_, err := repo.Record(ctx, run)
	require.NoError(t, err)

	got, err := repo.FindByRunID(ctx, "failed-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosingIfOpen, got.FailedAt)
	assert.Equal(t, ports.CodeOrderRejected, got.ErrorCode)
	assert.True(t, got.EntryQuantity.IsZero())
}

func TestRepository_FindRecentAndBySymbol(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	runs := []*domain.RunRecord{
		sampleRun("a", "BTCUSDT", domain.StateDone, base),
		sampleRun("b", "ETHUSDT", domain.StateFailed, base.Add(time.Minute)),
		sampleRun("c", "BTCUSDT", domain.StateFailed, base.Add(2*time.Minute)),
		sampleRun("d", "BTCUSDT", domain.StateDone, base.Add(3*time.Minute)),
	}
	for _, run := range runs {
		_, err := repo.Record(ctx, run)
		require.NoError(t, err)
	}

	recent, err := repo.FindRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"d", "c", "b"}, []string{recent[0].RunID, recent[1].RunID, recent[2].RunID})

	btc, err := repo.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, btc, 3)
	assert.Equal(t, "d", btc[0].RunID)
	assert.Equal(t, "a", btc[2].RunID)

	none, err := repo.FindBySymbol(ctx, "XRPUSDT", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_CountByState(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, state := range []domain.WorkflowState{domain.StateDone, domain.StateFailed, domain.StateDone} {
		_, err := repo.Record(ctx, sampleRun(string(rune('x'+i)), "BTCUSDT", state, now))
		require.NoError(t, err)
	}

	done, err := repo.CountByState(ctx, domain.StateDone)
	require.NoError(t, err)
	assert.Equal(t, 2, done)

	failed, err := repo.CountByState(ctx, domain.StateFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}
