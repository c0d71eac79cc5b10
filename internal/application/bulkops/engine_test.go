package bulkopsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/commercesync/backend/internal/domain/bulkops"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memOpsRepo struct {
	mu  gosync.Mutex
	ops map[uuid.UUID]bulkops.BulkOperation
}

func newMemOpsRepo() *memOpsRepo {
	return &memOpsRepo{ops: make(map[uuid.UUID]bulkops.BulkOperation)}
}

func (r *memOpsRepo) Save(_ context.Context, op *bulkops.BulkOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.ID] = *op
	return nil
}

func (r *memOpsRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*bulkops.BulkOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.ops[id]; ok && op.TenantID == tenantID {
		cp := op
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memOpsRepo) List(_ context.Context, _ uuid.UUID, _ *bulkops.OperationStatus, _, _ int) ([]bulkops.BulkOperation, int64, error) {
	return nil, 0, nil
}

func (r *memOpsRepo) status(id uuid.UUID) bulkops.OperationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[id].Status
}

type memRecordRepo struct {
	mu      gosync.Mutex
	records map[uuid.UUID]*bulkops.BulkOperationRecord
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make(map[uuid.UUID]*bulkops.BulkOperationRecord)}
}

func (r *memRecordRepo) SaveBatch(_ context.Context, records []*bulkops.BulkOperationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		cp := *record
		r.records[record.ID] = &cp
	}
	return nil
}

func (r *memRecordRepo) Save(_ context.Context, record *bulkops.BulkOperationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records[record.ID] = &cp
	return nil
}

func (r *memRecordRepo) ListByOperation(_ context.Context, operationID uuid.UUID) ([]*bulkops.BulkOperationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bulkops.BulkOperationRecord
	for _, record := range r.records {
		if record.OperationID == operationID {
			cp := *record
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordIndex < out[j].RecordIndex })
	return out, nil
}

func (r *memRecordRepo) ListSuccessful(_ context.Context, operationID uuid.UUID) ([]*bulkops.BulkOperationRecord, error) {
	all, _ := r.ListByOperation(context.Background(), operationID)
	var out []*bulkops.BulkOperationRecord
	for _, record := range all {
		if record.Status == bulkops.RecordStatusSuccess {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProcessedAt.After(*out[j].ProcessedAt)
	})
	return out, nil
}

type gatedStore struct {
	mu      gosync.Mutex
	records map[uuid.UUID]*sync.LocalRecord
	// enter/release pause every upsert until the test lets it through
	enter   chan struct{}
	release chan struct{}
	failSKU string
}

func newGatedStore() *gatedStore {
	return &gatedStore{records: make(map[uuid.UUID]*sync.LocalRecord)}
}

func (s *gatedStore) Get(_ context.Context, _ uuid.UUID, _ sync.EntityKind, id uuid.UUID) (*sync.LocalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (s *gatedStore) GetPage(_ context.Context, _ uuid.UUID, _ sync.EntityKind, _ sync.PageFilters, _ string, _ int) (*sync.LocalPage, error) {
	return &sync.LocalPage{}, nil
}

func (s *gatedStore) Upsert(_ context.Context, record *sync.LocalRecord) (uuid.UUID, bool, error) {
	if s.enter != nil {
		s.enter <- struct{}{}
		<-s.release
	}
	if s.failSKU != "" && record.SKU == s.failSKU {
		return uuid.Nil, false, errors.New("constraint violation")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[record.ID]
	cp := *record
	s.records[record.ID] = &cp
	return record.ID, !existed, nil
}

func (s *gatedStore) Delete(_ context.Context, _ uuid.UUID, _ sync.EntityKind, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *gatedStore) snapshot(id uuid.UUID) *sync.LocalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (s *gatedStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// stubParser hands back pre-built rows regardless of the input reader
type stubParser struct {
	rows []Row
	err  error
}

func (p *stubParser) Parse(io.Reader, sync.EntityKind) ([]Row, error) {
	return p.rows, p.err
}

// stubConverter copies string values through, parsing quantity as a number
// and rejecting negatives
type stubConverter struct{}

func (stubConverter) Convert(_ sync.EntityKind, row Row) (map[string]any, error) {
	fields := make(map[string]any, len(row.Values))
	for k, v := range row.Values {
		fields[k] = v
	}
	if raw, ok := row.Values["quantity"]; ok {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("quantity %q is not a number", raw)
		}
		if qty < 0 {
			return nil, errors.New("quantity cannot be negative")
		}
		fields["quantity"] = qty
	}
	return fields, nil
}

type stubReports struct {
	mu     gosync.Mutex
	writes int
}

func (r *stubReports) WriteReport(_ context.Context, op *bulkops.BulkOperation, _ []*bulkops.BulkOperationRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	return "reports/" + op.ID.String() + ".csv", nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type engineHarness struct {
	tenantID uuid.UUID
	userID   uuid.UUID
	ops      *memOpsRepo
	records  *memRecordRepo
	store    *gatedStore
	reports  *stubReports
	parser   *stubParser
	engine   *Engine
}

func newEngineHarness(rows []Row) *engineHarness {
	h := &engineHarness{
		tenantID: uuid.New(),
		userID:   uuid.New(),
		ops:      newMemOpsRepo(),
		records:  newMemRecordRepo(),
		store:    newGatedStore(),
		reports:  &stubReports{},
		parser:   &stubParser{rows: rows},
	}
	h.engine = NewEngine(h.ops, h.records, h.store, h.parser, stubConverter{}, h.reports, zap.NewNop())
	return h
}

func (h *engineHarness) waitTerminal(t *testing.T, id uuid.UUID) *bulkops.BulkOperation {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ops.status(id).IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	op, err := h.ops.FindByID(context.Background(), h.tenantID, id)
	require.NoError(t, err)
	return op
}

func importRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{Index: i, Values: map[string]string{
			"sku":      fmt.Sprintf("SKU-%d", i),
			"quantity": strconv.Itoa(10 + i),
		}}
	}
	return rows
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestEngineImportCompletes(t *testing.T) {
	h := newEngineHarness(importRows(5))
	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type:      bulkops.OperationTypeImport,
		Kind:      sync.EntityKindInventory,
		ChunkSize: 2,
	}, h.userID)
	require.NoError(t, err)

	final := h.waitTerminal(t, op.ID)
	assert.Equal(t, bulkops.OperationStatusCompleted, final.Status)
	assert.Equal(t, 5, final.SuccessCount)
	assert.Equal(t, 0, final.FailedCount)
	assert.Equal(t, 5, h.store.count())
	require.Eventually(t, func() bool {
		op, err := h.ops.FindByID(context.Background(), h.tenantID, final.ID)
		return err == nil && op.ReportFileKey != ""
	}, 5*time.Second, 5*time.Millisecond, "report is written after the run settles")

	records, err := h.engine.ListRecords(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for _, r := range records {
		assert.Equal(t, bulkops.RecordStatusSuccess, r.Status)
		assert.Equal(t, bulkops.RecordActionCreate, r.Action)
	}
}

func TestEngineValidateOnly(t *testing.T) {
	rows := importRows(3)
	rows[1].Values["quantity"] = "-2"
	h := newEngineHarness(rows)

	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type:         bulkops.OperationTypeImport,
		Kind:         sync.EntityKindInventory,
		ValidateOnly: true,
	}, h.userID)
	require.NoError(t, err)

	final := h.waitTerminal(t, op.ID)
	assert.Equal(t, bulkops.OperationStatusCompletedWithErrors, final.Status)
	assert.Equal(t, 2, final.SuccessCount)
	assert.Equal(t, 1, final.FailedCount)
	assert.Zero(t, h.store.count(), "validate-only must not touch the store")
}

func TestEnginePartialFailureContinues(t *testing.T) {
	rows := importRows(6)
	rows[2].Values["quantity"] = "not-a-number"
	h := newEngineHarness(rows)

	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type:      bulkops.OperationTypeImport,
		Kind:      sync.EntityKindInventory,
		ChunkSize: 2,
	}, h.userID)
	require.NoError(t, err)

	final := h.waitTerminal(t, op.ID)
	assert.Equal(t, bulkops.OperationStatusCompletedWithErrors, final.Status)
	assert.Equal(t, 5, final.SuccessCount, "one bad row never blocks its siblings")
	assert.Equal(t, 1, final.FailedCount)
	assert.Equal(t, 5, h.store.count())

	records, err := h.engine.ListRecords(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, bulkops.RecordStatusFailed, records[2].Status)
	assert.Contains(t, records[2].Error, "not a number")
}

func TestEngineRollbackOnError(t *testing.T) {
	// seed three existing records, then bulk-update them with the third
	// row failing validation
	h := newEngineHarness(nil)
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		_, _, err := h.store.Upsert(context.Background(), &sync.LocalRecord{
			ID:       ids[i],
			TenantID: h.tenantID,
			Kind:     sync.EntityKindInventory,
			Fields:   map[string]any{"quantity": 100 + i},
		})
		require.NoError(t, err)
	}

	rows := []Row{
		{Index: 0, Values: map[string]string{"id": ids[0].String(), "quantity": "1"}},
		{Index: 1, Values: map[string]string{"id": ids[1].String(), "quantity": "2"}},
		{Index: 2, Values: map[string]string{"id": ids[2].String(), "quantity": "-3"}},
	}
	h.parser.rows = rows

	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type:            bulkops.OperationTypeUpdate,
		Kind:            sync.EntityKindInventory,
		ChunkSize:       1,
		MaxConcurrent:   1,
		RollbackOnError: true,
	}, h.userID)
	require.NoError(t, err)

	final := h.waitTerminal(t, op.ID)
	assert.Equal(t, bulkops.OperationStatusRolledBack, final.Status)

	// the two applied updates must be back at their original values
	assert.Equal(t, 100, h.store.snapshot(ids[0]).Fields["quantity"])
	assert.Equal(t, 101, h.store.snapshot(ids[1]).Fields["quantity"])
	assert.Equal(t, 102, h.store.snapshot(ids[2]).Fields["quantity"], "never-applied record stays untouched")

	records, err := h.engine.ListRecords(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, bulkops.RecordStatusRolledBack, records[0].Status)
	assert.Equal(t, bulkops.RecordStatusRolledBack, records[1].Status)
	assert.Equal(t, bulkops.RecordStatusFailed, records[2].Status)
}

func TestEngineExplicitRollback(t *testing.T) {
	h := newEngineHarness(nil)
	id := uuid.New()
	_, _, err := h.store.Upsert(context.Background(), &sync.LocalRecord{
		ID:       id,
		TenantID: h.tenantID,
		Kind:     sync.EntityKindInventory,
		Fields:   map[string]any{"quantity": 42},
	})
	require.NoError(t, err)

	h.parser.rows = []Row{{Index: 0, Values: map[string]string{"id": id.String(), "quantity": "7"}}}
	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type: bulkops.OperationTypeUpdate,
		Kind: sync.EntityKindInventory,
	}, h.userID)
	require.NoError(t, err)

	final := h.waitTerminal(t, op.ID)
	require.Equal(t, bulkops.OperationStatusCompleted, final.Status)
	require.Equal(t, 7, h.store.snapshot(id).Fields["quantity"])

	rolled, err := h.engine.RollbackOperation(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, bulkops.OperationStatusRolledBack, rolled.Status)
	assert.Equal(t, 42, h.store.snapshot(id).Fields["quantity"])

	// a second rollback is rejected
	_, err = h.engine.RollbackOperation(context.Background(), h.tenantID, op.ID)
	assert.Error(t, err)
}

func TestEngineDeleteRollbackWarning(t *testing.T) {
	h := newEngineHarness(nil)
	id := uuid.New()
	_, _, err := h.store.Upsert(context.Background(), &sync.LocalRecord{
		ID:       id,
		TenantID: h.tenantID,
		Kind:     sync.EntityKindInventory,
		Fields:   map[string]any{"quantity": 1},
	})
	require.NoError(t, err)

	h.parser.rows = []Row{{Index: 0, Values: map[string]string{"id": id.String()}}}
	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type:            bulkops.OperationTypeDelete,
		Kind:            sync.EntityKindInventory,
		RollbackOnError: true,
	}, h.userID)
	require.NoError(t, err)
	assert.NotEmpty(t, op.Warnings, "delete with rollback enabled warns up front")

	final := h.waitTerminal(t, op.ID)
	assert.Equal(t, bulkops.OperationStatusCompleted, final.Status)
	assert.Nil(t, h.store.snapshot(id))

	rolled, err := h.engine.RollbackOperation(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, bulkops.OperationStatusRolledBack, rolled.Status)
	assert.Nil(t, h.store.snapshot(id), "deletes stay deleted")
	assert.NotEmpty(t, rolled.Warnings)
}

func TestEngineCooperativeCancel(t *testing.T) {
	h := newEngineHarness(importRows(3))
	h.store.enter = make(chan struct{}, 3)
	h.store.release = make(chan struct{})

	op, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
		Type:          bulkops.OperationTypeImport,
		Kind:          sync.EntityKindInventory,
		ChunkSize:     1,
		MaxConcurrent: 1,
	}, h.userID)
	require.NoError(t, err)

	// cancel while the first record's write is still in flight, then let
	// everything already dispatched run to completion
	<-h.store.enter
	_, err = h.engine.CancelOperation(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	close(h.store.release)

	final := h.waitTerminal(t, op.ID)
	assert.Equal(t, bulkops.OperationStatusCancelled, final.Status)
	assert.Less(t, h.store.count(), 3, "chunks after the cancel point are never dispatched")

	records, err := h.engine.ListRecords(context.Background(), h.tenantID, op.ID)
	require.NoError(t, err)
	skipped := 0
	for _, r := range records {
		if r.Status == bulkops.RecordStatusSkipped {
			skipped++
		}
	}
	assert.Greater(t, skipped, 0)
}

func TestEngineRejectsBadInput(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		h := newEngineHarness(nil)
		_, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
			Type: bulkops.OperationTypeImport,
			Kind: sync.EntityKindInventory,
		}, h.userID)
		assert.Error(t, err)
	})

	t.Run("parser failure", func(t *testing.T) {
		h := newEngineHarness(nil)
		h.parser.err = errors.New("row 3: wrong column count")
		_, err := h.engine.StartOperation(context.Background(), h.tenantID, nil, Options{
			Type: bulkops.OperationTypeImport,
			Kind: sync.EntityKindInventory,
		}, h.userID)
		assert.Error(t, err)
	})
}
