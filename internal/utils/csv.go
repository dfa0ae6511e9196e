package utils

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"futuresHook/internal/domain"
)

var runHeader = []string{
	"id", "run_id", "symbol", "side", "mode", "state", "failed_at", "error_code",
	"close_order_id", "entry_order_id", "protective_order_id",
	"closed_quantity", "entry_quantity", "fill_price", "protective_price", "protective_attempts",
	"started_at", "finished_at", "duration_ms", "external_ref",
}

// WriteRunsToCSV writes runs to filename, replacing any existing file.
func WriteRunsToCSV(runs []*domain.RunRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteRuns(file, runs); err != nil {
		return err
	}
	return file.Close()
}

// WriteRuns writes a header row and one row per run.
func WriteRuns(w io.Writer, runs []*domain.RunRecord) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(runHeader); err != nil {
		return err
	}
	for _, r := range runs {
		err := writer.Write([]string{
			strconv.FormatInt(r.ID, 10),
			r.RunID,
			r.Symbol,
			string(r.Side),
			string(r.Mode),
			string(r.State),
			string(r.FailedAt),
			r.ErrorCode,
			strconv.FormatInt(r.CloseOrderID, 10),
			strconv.FormatInt(r.EntryOrderID, 10),
			strconv.FormatInt(r.ProtectiveOrderID, 10),
			r.ClosedQuantity.String(),
			r.EntryQuantity.String(),
			r.FillPrice.String(),
			r.ProtectivePrice.String(),
			strconv.Itoa(r.ProtectiveAttempts),
			r.StartedAt.UTC().Format(time.RFC3339),
			r.FinishedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(r.Duration().Milliseconds(), 10),
			r.ExternalRef,
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
