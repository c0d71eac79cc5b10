package bulkopsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	gosync "sync"

	"github.com/commercesync/backend/internal/domain/bulkops"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Row is one parsed input record, keyed by mapped field name
type Row struct {
	Index  int
	Values map[string]string
}

// RowParser turns an uploaded file into rows. Implementations own the
// delimiter and field-mapping concerns.
type RowParser interface {
	Parse(r io.Reader, kind sync.EntityKind) ([]Row, error)
}

// RowConverter validates a row against the entity kind's rules and converts
// it into store field values
type RowConverter interface {
	Convert(kind sync.EntityKind, row Row) (map[string]any, error)
}

// ReportWriter renders and stores the per-record outcome report, returning
// the stored file's key
type ReportWriter interface {
	WriteReport(ctx context.Context, op *bulkops.BulkOperation, records []*bulkops.BulkOperationRecord) (string, error)
}

// Options configures one bulk run
type Options struct {
	Type            bulkops.OperationType
	Kind            sync.EntityKind
	ValidateOnly    bool
	RollbackOnError bool
	ChunkSize       int
	MaxConcurrent   int
	// InputFileKey locates the uploaded source file in object storage,
	// recorded on the operation for audit
	InputFileKey string
}

// Engine executes bulk operations: parse, chunk, validate, apply, and when
// asked, roll back. Operations run asynchronously after submission.
type Engine struct {
	ops     bulkops.Repository
	records bulkops.RecordRepository
	store   sync.StoreWriter
	parser  RowParser
	convert RowConverter
	reports ReportWriter
	logger  *zap.Logger

	mu     gosync.Mutex
	active map[uuid.UUID]*runState
}

type runState struct {
	mu        gosync.Mutex
	cancelled bool
	halted    bool
}

func (s *runState) requestCancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *runState) halt() {
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
}

func (s *runState) stopped() (cancelled, halted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled, s.halted
}

// NewEngine creates a new bulk operations engine
func NewEngine(
	ops bulkops.Repository,
	records bulkops.RecordRepository,
	store sync.StoreWriter,
	parser RowParser,
	convert RowConverter,
	reports ReportWriter,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		ops:     ops,
		records: records,
		store:   store,
		parser:  parser,
		convert: convert,
		reports: reports,
		logger:  logger,
		active:  make(map[uuid.UUID]*runState),
	}
}

// StartOperation parses the input, persists the operation with one pending
// record per row, and processes it in the background. The returned operation
// carries the ID for polling.
func (e *Engine) StartOperation(ctx context.Context, tenantID uuid.UUID, input io.Reader, opts Options, userID uuid.UUID) (*bulkops.BulkOperation, error) {
	op, err := bulkops.NewBulkOperation(tenantID, opts.Type, opts.Kind, userID)
	if err != nil {
		return nil, err
	}
	if err := op.SetChunking(opts.ChunkSize, opts.MaxConcurrent); err != nil {
		return nil, err
	}
	op.ValidateOnly = opts.ValidateOnly
	op.RollbackOnError = opts.RollbackOnError
	op.InputFileKey = opts.InputFileKey

	rows, err := e.parser.Parse(input, opts.Kind)
	if err != nil {
		return nil, shared.NewDomainError("UNPARSEABLE_FILE", err.Error())
	}
	if len(rows) == 0 {
		return nil, shared.NewDomainError("EMPTY_FILE", "Input file contains no records")
	}
	if opts.Type == bulkops.OperationTypeDelete && opts.RollbackOnError {
		op.AddWarning("deletions cannot be rolled back, rollback will skip deleted records")
	}

	if err := e.ops.Save(ctx, op); err != nil {
		return nil, err
	}
	records := make([]*bulkops.BulkOperationRecord, len(rows))
	for i := range rows {
		records[i] = bulkops.NewBulkOperationRecord(op.ID, rows[i].Index)
	}
	if err := e.records.SaveBatch(ctx, records); err != nil {
		return nil, err
	}

	state := &runState{}
	e.mu.Lock()
	e.active[op.ID] = state
	e.mu.Unlock()

	go e.run(context.Background(), op, rows, records, state)
	return op, nil
}

// CancelOperation sets the cooperative cancel flag. Chunks already running
// finish, nothing new is dispatched.
func (e *Engine) CancelOperation(ctx context.Context, tenantID, id uuid.UUID) (*bulkops.BulkOperation, error) {
	op, err := e.ops.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := op.RequestCancel(); err != nil {
		return nil, err
	}
	if err := e.ops.Save(ctx, op); err != nil {
		return nil, err
	}

	e.mu.Lock()
	state := e.active[id]
	e.mu.Unlock()
	if state != nil {
		state.requestCancel()
	}
	return op, nil
}

// GetProgress returns the operation with its current counts
func (e *Engine) GetProgress(ctx context.Context, tenantID, id uuid.UUID) (*bulkops.BulkOperation, error) {
	return e.ops.FindByID(ctx, tenantID, id)
}

// ListOperations returns operations for a tenant, newest first
func (e *Engine) ListOperations(ctx context.Context, tenantID uuid.UUID, status *bulkops.OperationStatus, page, pageSize int) ([]bulkops.BulkOperation, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return e.ops.List(ctx, tenantID, status, page, pageSize)
}

// ListRecords returns the per-row outcomes of an operation
func (e *Engine) ListRecords(ctx context.Context, tenantID, id uuid.UUID) ([]*bulkops.BulkOperationRecord, error) {
	if _, err := e.ops.FindByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return e.records.ListByOperation(ctx, id)
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

type chunk struct {
	rows    []Row
	records []*bulkops.BulkOperationRecord
}

func (e *Engine) run(ctx context.Context, op *bulkops.BulkOperation, rows []Row, records []*bulkops.BulkOperationRecord, state *runState) {
	defer func() {
		e.mu.Lock()
		delete(e.active, op.ID)
		e.mu.Unlock()
	}()

	if err := op.Start(len(rows)); err != nil {
		e.logger.Error("start bulk operation", zap.String("operation_id", op.ID.String()), zap.Error(err))
		return
	}
	if err := e.ops.Save(ctx, op); err != nil {
		e.logger.Error("persist bulk operation", zap.String("operation_id", op.ID.String()), zap.Error(err))
		return
	}

	chunks := partition(rows, records, op.ChunkSize)

	// completionOrder collects successful records as they finish so a
	// triggered rollback can undo them newest first, regardless of which
	// chunk they belonged to
	var completionMu gosync.Mutex
	var completionOrder []*bulkops.BulkOperationRecord

	jobs := make(chan chunk)
	var wg gosync.WaitGroup
	var opMu gosync.Mutex
	workers := op.MaxConcurrent
	if workers > len(chunks) {
		workers = len(chunks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				succeeded, failed := e.processChunk(ctx, op, c, state, func(r *bulkops.BulkOperationRecord) {
					completionMu.Lock()
					completionOrder = append(completionOrder, r)
					completionMu.Unlock()
				})
				opMu.Lock()
				op.RecordChunk(succeeded, failed)
				if err := e.ops.Save(ctx, op); err != nil {
					e.logger.Error("persist chunk progress", zap.String("operation_id", op.ID.String()), zap.Error(err))
				}
				opMu.Unlock()
			}
		}()
	}

	dispatched := 0
	for _, c := range chunks {
		cancelled, halted := state.stopped()
		if cancelled || halted {
			break
		}
		jobs <- c
		dispatched++
	}
	close(jobs)
	wg.Wait()

	// rows in never-dispatched chunks were not attempted
	for _, c := range chunks[dispatched:] {
		for _, r := range c.records {
			if r.Status == bulkops.RecordStatusPending {
				r.MarkSkipped("operation halted before this chunk was dispatched")
				e.saveRecord(ctx, r)
			}
		}
	}

	cancelled, halted := state.stopped()
	switch {
	case halted && op.RollbackOnError:
		e.rollback(ctx, op, reverseCompletion(completionOrder))
	case cancelled:
		_ = op.RequestCancel()
		e.settle(ctx, op)
	default:
		e.settle(ctx, op)
	}

	e.writeReport(ctx, op)
	e.logger.Info("bulk operation finished",
		zap.String("operation_id", op.ID.String()),
		zap.String("status", op.Status.String()),
		zap.Int("succeeded", op.SuccessCount),
		zap.Int("failed", op.FailedCount))
}

func (e *Engine) settle(ctx context.Context, op *bulkops.BulkOperation) {
	if err := op.Complete(); err != nil {
		e.logger.Error("complete bulk operation", zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
	if err := e.ops.Save(ctx, op); err != nil {
		e.logger.Error("persist bulk operation", zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
}

// processChunk runs one chunk's rows strictly in order
func (e *Engine) processChunk(ctx context.Context, op *bulkops.BulkOperation, c chunk, state *runState, onSuccess func(*bulkops.BulkOperationRecord)) (succeeded, failed int) {
	for i := range c.rows {
		if _, halted := state.stopped(); halted && op.RollbackOnError {
			c.records[i].MarkSkipped("operation halted after an earlier failure")
			e.saveRecord(ctx, c.records[i])
			continue
		}

		err := e.processRecord(ctx, op, c.rows[i], c.records[i])
		if err != nil {
			failed++
			if op.RollbackOnError {
				state.halt()
			}
			continue
		}
		succeeded++
		if c.records[i].Status == bulkops.RecordStatusSuccess {
			onSuccess(c.records[i])
		}
	}
	return succeeded, failed
}

// processRecord validates and applies one row. The record is marked and
// persisted before returning.
func (e *Engine) processRecord(ctx context.Context, op *bulkops.BulkOperation, row Row, record *bulkops.BulkOperationRecord) error {
	action := actionFor(op)

	fields, err := e.convert.Convert(op.Kind, row)
	if err != nil {
		record.MarkFailed(action, err.Error())
		e.saveRecord(ctx, record)
		return err
	}

	if op.ValidateOnly {
		record.MarkSuccess(bulkops.RecordActionValidate, nil, nil, nil)
		e.saveRecord(ctx, record)
		return nil
	}

	switch op.Type {
	case bulkops.OperationTypeImport:
		err = e.applyCreate(ctx, op, fields, record)
	case bulkops.OperationTypeUpdate:
		err = e.applyUpdate(ctx, op, row, fields, record)
	case bulkops.OperationTypeDelete:
		err = e.applyDelete(ctx, op, row, record)
	default:
		err = fmt.Errorf("operation type %s does not mutate records", op.Type)
	}
	if err != nil {
		record.MarkFailed(action, err.Error())
		e.saveRecord(ctx, record)
		return err
	}
	e.saveRecord(ctx, record)
	return nil
}

func (e *Engine) applyCreate(ctx context.Context, op *bulkops.BulkOperation, fields map[string]any, record *bulkops.BulkOperationRecord) error {
	id := uuid.New()
	localRecord := &sync.LocalRecord{
		ID:       id,
		TenantID: op.TenantID,
		Kind:     op.Kind,
		SKU:      skuOf(fields),
		Fields:   fields,
	}
	if _, _, err := e.store.Upsert(ctx, localRecord); err != nil {
		return err
	}
	record.MarkSuccess(bulkops.RecordActionCreate, &id, nil, fields)
	return nil
}

func (e *Engine) applyUpdate(ctx context.Context, op *bulkops.BulkOperation, row Row, fields map[string]any, record *bulkops.BulkOperationRecord) error {
	id, err := entityIDOf(row)
	if err != nil {
		return err
	}

	before, err := e.store.Get(ctx, op.TenantID, op.Kind, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("record %s does not exist", id)
		}
		return err
	}

	localRecord := &sync.LocalRecord{
		ID:       id,
		TenantID: op.TenantID,
		Kind:     op.Kind,
		SKU:      skuOf(fields),
		Fields:   fields,
	}
	if _, _, err := e.store.Upsert(ctx, localRecord); err != nil {
		return err
	}
	record.MarkSuccess(bulkops.RecordActionUpdate, &id, before.Fields, fields)
	return nil
}

func (e *Engine) applyDelete(ctx context.Context, op *bulkops.BulkOperation, row Row, record *bulkops.BulkOperationRecord) error {
	id, err := entityIDOf(row)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, op.TenantID, op.Kind, id); err != nil {
		return err
	}
	record.MarkSuccess(bulkops.RecordActionDelete, &id, nil, nil)
	return nil
}

// ---------------------------------------------------------------------------
// Rollback
// ---------------------------------------------------------------------------

// RollbackOperation reverts a finished operation's successful records in
// reverse completion order. Deletes cannot be reverted and produce a warning.
func (e *Engine) RollbackOperation(ctx context.Context, tenantID, id uuid.UUID) (*bulkops.BulkOperation, error) {
	op, err := e.ops.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !op.Status.IsTerminal() {
		return nil, shared.NewDomainError("OPERATION_RUNNING", "Only finished operations can be rolled back")
	}
	if op.Status == bulkops.OperationStatusRolledBack {
		return nil, shared.NewDomainError("ALREADY_ROLLED_BACK", "Operation has already been rolled back")
	}

	successful, err := e.records.ListSuccessful(ctx, id)
	if err != nil {
		return nil, err
	}
	e.rollback(ctx, op, successful)
	return op, nil
}

// rollback reverts the given records, which must already be ordered newest
// completion first
func (e *Engine) rollback(ctx context.Context, op *bulkops.BulkOperation, successful []*bulkops.BulkOperationRecord) {
	for _, record := range successful {
		if !record.CanRollback() {
			if record.Action == bulkops.RecordActionDelete {
				op.AddWarning(fmt.Sprintf("record %d: deletion cannot be rolled back", record.RecordIndex))
			}
			continue
		}

		var err error
		switch record.Action {
		case bulkops.RecordActionCreate:
			err = e.store.Delete(ctx, op.TenantID, op.Kind, *record.EntityID)
		case bulkops.RecordActionUpdate:
			_, _, err = e.store.Upsert(ctx, &sync.LocalRecord{
				ID:       *record.EntityID,
				TenantID: op.TenantID,
				Kind:     op.Kind,
				Fields:   record.BeforeData,
			})
		}
		if err != nil {
			op.AddWarning(fmt.Sprintf("record %d: rollback failed: %v", record.RecordIndex, err))
			continue
		}
		if err := record.MarkRolledBack(); err == nil {
			e.saveRecord(ctx, record)
		}
	}

	op.MarkRolledBack()
	if err := e.ops.Save(ctx, op); err != nil {
		e.logger.Error("persist rolled back operation", zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

func (e *Engine) writeReport(ctx context.Context, op *bulkops.BulkOperation) {
	if e.reports == nil {
		return
	}
	records, err := e.records.ListByOperation(ctx, op.ID)
	if err != nil {
		e.logger.Error("load records for report", zap.String("operation_id", op.ID.String()), zap.Error(err))
		return
	}
	key, err := e.reports.WriteReport(ctx, op, records)
	if err != nil {
		e.logger.Error("write bulk report", zap.String("operation_id", op.ID.String()), zap.Error(err))
		return
	}
	op.ReportFileKey = key
	if err := e.ops.Save(ctx, op); err != nil {
		e.logger.Error("persist report key", zap.String("operation_id", op.ID.String()), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (e *Engine) saveRecord(ctx context.Context, record *bulkops.BulkOperationRecord) {
	if err := e.records.Save(ctx, record); err != nil {
		e.logger.Error("persist bulk record",
			zap.String("operation_id", record.OperationID.String()),
			zap.Int("index", record.RecordIndex),
			zap.Error(err))
	}
}

func partition(rows []Row, records []*bulkops.BulkOperationRecord, size int) []chunk {
	var chunks []chunk
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, chunk{rows: rows[start:end], records: records[start:end]})
	}
	return chunks
}

func reverseCompletion(records []*bulkops.BulkOperationRecord) []*bulkops.BulkOperationRecord {
	out := make([]*bulkops.BulkOperationRecord, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

func actionFor(op *bulkops.BulkOperation) bulkops.RecordAction {
	if op.ValidateOnly {
		return bulkops.RecordActionValidate
	}
	switch op.Type {
	case bulkops.OperationTypeImport:
		return bulkops.RecordActionCreate
	case bulkops.OperationTypeUpdate:
		return bulkops.RecordActionUpdate
	case bulkops.OperationTypeDelete:
		return bulkops.RecordActionDelete
	default:
		return bulkops.RecordActionValidate
	}
}

func entityIDOf(row Row) (uuid.UUID, error) {
	raw := row.Values["id"]
	if raw == "" {
		return uuid.Nil, errors.New("row carries no id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func skuOf(fields map[string]any) string {
	if s, ok := fields["sku"].(string); ok {
		return s
	}
	return ""
}
