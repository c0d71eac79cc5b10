package bulkfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	bulkopsapp "github.com/commercesync/backend/internal/application/bulkops"
	"github.com/commercesync/backend/internal/domain/bulkops"
	"github.com/commercesync/backend/internal/infrastructure/storage"
)

// reportHeader is the column layout of generated outcome reports
var reportHeader = []string{"record_index", "action", "status", "entity_id", "error", "processed_at"}

// CSVReportWriter renders per-record outcome reports as CSV and stores them
// in object storage
type CSVReportWriter struct {
	store storage.ObjectStore
}

// NewCSVReportWriter creates a report writer backed by the given store
func NewCSVReportWriter(store storage.ObjectStore) *CSVReportWriter {
	return &CSVReportWriter{store: store}
}

// ReportKey returns the storage key of an operation's report
func ReportKey(op *bulkops.BulkOperation) string {
	return fmt.Sprintf("bulk/%s/report.csv", op.ID)
}

// WriteReport implements the bulk engine's ReportWriter
func (w *CSVReportWriter) WriteReport(ctx context.Context, op *bulkops.BulkOperation, records []*bulkops.BulkOperationRecord) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeader); err != nil {
		return "", fmt.Errorf("bulkfile: write report header: %w", err)
	}
	for _, r := range records {
		entityID := ""
		if r.EntityID != nil {
			entityID = r.EntityID.String()
		}
		processedAt := ""
		if r.ProcessedAt != nil {
			processedAt = r.ProcessedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			strconv.Itoa(r.RecordIndex),
			string(r.Action),
			string(r.Status),
			entityID,
			r.Error,
			processedAt,
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("bulkfile: write report row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("bulkfile: flush report: %w", err)
	}

	key := ReportKey(op)
	if err := w.store.Upload(ctx, key, buf.Bytes(), "text/csv"); err != nil {
		return "", fmt.Errorf("bulkfile: store report: %w", err)
	}
	return key, nil
}

// Ensure CSVReportWriter implements ReportWriter
var _ bulkopsapp.ReportWriter = (*CSVReportWriter)(nil)
