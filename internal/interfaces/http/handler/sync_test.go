package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncapp "github.com/commercesync/backend/internal/application/sync"
	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/domain/sync"
)

// MockSyncJobRepository implements sync.SyncJobRepository for testing
type MockSyncJobRepository struct {
	mock.Mock
}

func (m *MockSyncJobRepository) Save(ctx context.Context, job *sync.SyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockSyncJobRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*sync.SyncJob, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.SyncJob), args.Error(1)
}

func (m *MockSyncJobRepository) FindRunning(ctx context.Context, tenantID uuid.UUID) ([]sync.SyncJob, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]sync.SyncJob), args.Error(1)
}

func (m *MockSyncJobRepository) List(ctx context.Context, tenantID uuid.UUID, filter sync.SyncJobFilter) ([]sync.SyncJob, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]sync.SyncJob), args.Get(1).(int64), args.Error(2)
}

func newSyncHandler(jobs sync.SyncJobRepository) *SyncHandler {
	service := syncapp.NewService(nil, jobs, zap.NewNop())
	return NewSyncHandler(service, nil)
}

func TestSyncHandlerGet(t *testing.T) {
	tenantID := uuid.New()

	t.Run("returns job", func(t *testing.T) {
		job, err := sync.NewSyncJob(tenantID, sync.EntityKindProduct, sync.DirectionPull, sync.SystemCodeShopify, sync.SystemCodeInternal)
		require.NoError(t, err)

		repo := new(MockSyncJobRepository)
		repo.On("FindByID", mock.Anything, tenantID, job.ID).Return(job, nil)

		r := newTestRouter(tenantID)
		r.GET("/sync/jobs/:id", newSyncHandler(repo).Get)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs/"+job.ID.String(), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), job.ID.String())
		repo.AssertExpectations(t)
	})

	t.Run("missing job maps to 404", func(t *testing.T) {
		id := uuid.New()
		repo := new(MockSyncJobRepository)
		repo.On("FindByID", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

		r := newTestRouter(tenantID)
		r.GET("/sync/jobs/:id", newSyncHandler(repo).Get)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs/"+id.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id is rejected", func(t *testing.T) {
		r := newTestRouter(tenantID)
		r.GET("/sync/jobs/:id", newSyncHandler(new(MockSyncJobRepository)).Get)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing tenant is rejected", func(t *testing.T) {
		r := newTestRouter(uuid.Nil)
		r.GET("/sync/jobs/:id", newSyncHandler(new(MockSyncJobRepository)).Get)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs/"+uuid.NewString(), nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSyncHandlerList(t *testing.T) {
	tenantID := uuid.New()

	t.Run("passes filters through", func(t *testing.T) {
		repo := new(MockSyncJobRepository)
		repo.On("List", mock.Anything, tenantID, mock.MatchedBy(func(f sync.SyncJobFilter) bool {
			return f.Kind != nil && *f.Kind == sync.EntityKindProduct &&
				f.Status != nil && *f.Status == sync.JobStatusPending &&
				f.Page == 2 && f.PageSize == 10
		})).Return([]sync.SyncJob{}, int64(0), nil)

		r := newTestRouter(tenantID)
		r.GET("/sync/jobs", newSyncHandler(repo).List)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs?kind=product&status=pending&page=2&page_size=10", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		r := newTestRouter(tenantID)
		r.GET("/sync/jobs", newSyncHandler(new(MockSyncJobRepository)).List)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs?kind=gadget", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandlerTrigger(t *testing.T) {
	tenantID := uuid.New()

	t.Run("rejects invalid direction", func(t *testing.T) {
		r := newTestRouter(tenantID)
		r.POST("/sync/jobs", newSyncHandler(new(MockSyncJobRepository)).Trigger)

		body, _ := json.Marshal(gin.H{"kind": "product", "direction": "sideways", "system": "SHOPIFY"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sync/jobs", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_DIRECTION")
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		r := newTestRouter(tenantID)
		r.POST("/sync/jobs", newSyncHandler(new(MockSyncJobRepository)).Trigger)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sync/jobs", bytes.NewReader([]byte(`{"kind":"product"}`)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandlerWebhookValidation(t *testing.T) {
	tenantID := uuid.New()

	t.Run("rejects unknown system", func(t *testing.T) {
		r := newTestRouter(tenantID)
		r.POST("/webhooks/:system", newSyncHandler(new(MockSyncJobRepository)).Webhook)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/ebay", bytes.NewReader([]byte(`{"id":1}`)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects non-JSON payload", func(t *testing.T) {
		r := newTestRouter(tenantID)
		r.POST("/webhooks/:system", newSyncHandler(new(MockSyncJobRepository)).Webhook)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", bytes.NewReader([]byte("not json")))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
