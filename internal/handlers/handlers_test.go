package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

type mockQueries struct {
	mock.Mock
}

func (m *mockQueries) GetByEmail(ctx context.Context, email string) (models.UserRecord, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.UserRecord), args.Error(1)
}

func (m *mockQueries) ScanAll(ctx context.Context) ([]models.UserRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]models.UserRecord)
	return recs, args.Error(1)
}

func (m *mockQueries) StaleAdminPasswords(ctx context.Context, days int) ([]models.UserRecord, error) {
	args := m.Called(ctx, days)
	recs, _ := args.Get(0).([]models.UserRecord)
	return recs, args.Error(1)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) Sync(ctx context.Context) (models.SyncReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.SyncReport), args.Error(1)
}

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) Ingest(ctx context.Context, link string) (models.FeedReport, error) {
	args := m.Called(ctx, link)
	return args.Get(0).(models.FeedReport), args.Error(1)
}

type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newRouter(q UserQueries, s SyncRunner, f FeedRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(RequestIDKey, "req_test")
		c.Next()
	})
	RegisterUserRoutes(r, q, s)
	RegisterAdminRoutes(r, q, 7)
	RegisterFeedRoutes(r, f)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLoginView(t *testing.T) {
	q := new(mockQueries)
	q.On("GetByEmail", mock.Anything, "a@x.com").Return(models.UserRecord{Email: "a@x.com", LastLogin: "2024-03-01T10:00:00.000Z"}, nil)
	q.On("GetByEmail", mock.Anything, "new@x.com").Return(models.UserRecord{Email: "new@x.com"}, nil)
	q.On("GetByEmail", mock.Anything, "ghost@x.com").Return(models.UserRecord{}, apperr.NotFound("query.GetByEmail", "user ghost@x.com not found"))
	r := newRouter(q, new(mockSync), new(mockFeed))

	w := do(r, http.MethodGet, "/users/a@x.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.LoginStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-03-01T10:00:00.000Z", resp.LastLogin)

	w = do(r, http.MethodGet, "/users/new@x.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "user has not logged in yet", resp.Message)

	w = do(r, http.MethodGet, "/users/ghost@x.com", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	errResp := decodeError(t, w)
	assert.Equal(t, "not_found", errResp.Code)
	assert.Equal(t, "user ghost@x.com not found", errResp.Message)
	assert.Equal(t, "req_test", errResp.RequestID)
}

func TestPasswordView_AdminsOnly(t *testing.T) {
	q := new(mockQueries)
	q.On("GetByEmail", mock.Anything, "admin@x.com").Return(models.UserRecord{Email: "admin@x.com", Admin: true, PasswordChanged: "2024-02-01T10:00:00.000Z"}, nil)
	q.On("GetByEmail", mock.Anything, "user@x.com").Return(models.UserRecord{Email: "user@x.com"}, nil)
	r := newRouter(q, new(mockSync), new(mockFeed))

	w := do(r, http.MethodGet, "/users/admin@x.com/password", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.PasswordStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-02-01T10:00:00.000Z", resp.PasswordChanged)

	w = do(r, http.MethodGet, "/users/user@x.com/password", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Code)
}

func TestScanAll(t *testing.T) {
	q := new(mockQueries)
	q.On("ScanAll", mock.Anything).Return([]models.UserRecord{{Email: "a@x.com"}}, nil).Once()
	q.On("ScanAll", mock.Anything).Return(nil, apperr.ScanFailure("query.ScanAll", errors.New("pq: connection reset"))).Once()
	r := newRouter(q, new(mockSync), new(mockFeed))

	w := do(r, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(r, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errResp := decodeError(t, w)
	assert.Equal(t, "scan_failure", errResp.Code)
	assert.NotContains(t, errResp.Message, "connection reset")
}

func TestSyncRoute(t *testing.T) {
	s := new(mockSync)
	s.On("Sync", mock.Anything).Return(models.SyncReport{RunID: "run-1", Inserted: 2}, nil).Twice()
	r := newRouter(new(mockQueries), s, new(mockFeed))

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		w := do(r, method, "/users/sync", "")
		require.Equal(t, http.StatusOK, w.Code, method)
		var report models.SyncReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 2, report.Inserted)
	}
	s.AssertExpectations(t)

	failing := new(mockSync)
	failing.On("Sync", mock.Anything).Return(models.SyncReport{}, apperr.New(apperr.KindFetchFailure, "reconcile.Sync", "identity provider returned no users"))
	r = newRouter(new(mockQueries), failing, new(mockFeed))
	w := do(r, http.MethodPost, "/users/sync", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "fetch_failure", decodeError(t, w).Code)
}

func TestStaleAdmins(t *testing.T) {
	q := new(mockQueries)
	q.On("StaleAdminPasswords", mock.Anything, 7).Return([]models.UserRecord{{Email: "old@x.com", Admin: true}}, nil)
	q.On("StaleAdminPasswords", mock.Anything, 30).Return([]models.UserRecord{}, nil)
	r := newRouter(q, new(mockSync), new(mockFeed))

	w := do(r, http.MethodGet, "/admins/stale-passwords", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.StaleAdminsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.ThresholdDays)
	assert.Equal(t, 1, resp.Count)

	w = do(r, http.MethodGet, "/admins/stale-passwords?days=30", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/admins/stale-passwords?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedScan(t *testing.T) {
	f := new(mockFeed)
	f.On("Ingest", mock.Anything, "https://bucket/events.csv").Return(models.FeedReport{Rows: 3, Applied: 2, Dropped: 1}, nil)
	f.On("Ingest", mock.Anything, "https://bucket/broken.csv").Return(models.FeedReport{}, apperr.ParseFailure("feed.Parse", errors.New("bare quote")))
	r := newRouter(new(mockQueries), new(mockSync), f)

	w := do(r, http.MethodPost, "/feeds/scan", `{"s3_link":"https://bucket/events.csv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.FeedReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Applied)

	w = do(r, http.MethodPost, "/feeds/scan", `{"s3_link":"https://bucket/broken.csv"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "parse_failure", decodeError(t, w).Code)

	w = do(r, http.MethodPost, "/feeds/scan", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/feeds/scan", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	okDep := new(mockPinger)
	okDep.On("Ping", mock.Anything).Return(nil)
	badDep := new(mockPinger)
	badDep.On("Ping", mock.Anything).Return(errors.New("dial tcp: refused"))

	r := gin.New()
	r.GET("/health", HealthHandler())
	r.GET("/ready", ReadyHandler(map[string]Pinger{"store": okDep}))
	r.GET("/ready-degraded", ReadyHandler(map[string]Pinger{"store": okDep, "cache": badDep}))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", "").Code)

	w := do(r, http.MethodGet, "/ready-degraded", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.Contains(t, resp.Checks["cache"], "refused")
}
