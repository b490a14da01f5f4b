package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/graph"
	"github.com/onnwee/forcegraph/internal/middleware"
)

type fakeStore struct{}

func (fakeStore) StoredPositions(ctx context.Context) ([]graph.Position, error) {
	return []graph.Position{{ID: "a", X: 1, Y: 1}}, nil
}

func (fakeStore) RecentRuns(ctx context.Context, limit int) ([]graph.Run, error) {
	return nil, nil
}

func (fakeStore) Ping(ctx context.Context) error { return nil }

func testConfig(t *testing.T, adminToken string) *config.Config {
	t.Helper()
	t.Setenv("ADMIN_API_TOKEN", adminToken)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://viz.example")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)
	return config.Load()
}

func testHandler(t *testing.T, adminToken string, store Store) http.Handler {
	cfg := testConfig(t, adminToken)
	p := cfg.LayoutParams()
	p.Iterations = 5
	return NewHandler(Deps{
		Config:  cfg,
		Service: graph.NewService(nil, cache.NewMockCache(), p, 0),
		Store:   store,
		Cache:   cache.NewMockCache(),
	})
}

func TestAdminAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	tests := []struct {
		name           string
		adminToken     string
		authHeader     string
		expectedStatus int
		expectedBody   string
	}{
		{"valid token", "test-admin-token-123", "Bearer test-admin-token-123", http.StatusOK, "OK"},
		{"invalid token", "test-admin-token-123", "Bearer wrong-token", http.StatusUnauthorized, "unauthorized\n"},
		{"missing token", "test-admin-token-123", "", http.StatusUnauthorized, "unauthorized\n"},
		{"malformed bearer token", "test-admin-token-123", "Bearertest-admin-token-123", http.StatusUnauthorized, "unauthorized\n"},
		{"wrong auth scheme", "test-admin-token-123", "Basic dGVzdDp0ZXN0", http.StatusUnauthorized, "unauthorized\n"},
		{"admin token not configured", "", "Bearer test-admin-token-123", http.StatusServiceUnavailable, "admin token not configured\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			adminAuth(tt.adminToken)(ok).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedBody, rr.Body.String())
		})
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	h := testHandler(t, "secret", fakeStore{})

	endpoints := []struct{ method, path string }{
		{http.MethodGet, "/api/admin/cache/stats"},
		{http.MethodPost, "/api/admin/cache/invalidate"},
		{http.MethodPost, "/api/admin/layout/precalculate"},
	}
	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(ep.method, ep.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRoutesRegistered(t *testing.T) {
	h := testHandler(t, "", fakeStore{})

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/layout/stored", http.StatusOK},
		{http.MethodGet, "/api/layout/runs", http.StatusOK},
		{http.MethodGet, "/api/layout", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestStoredEndpointsWithoutDatabase(t *testing.T) {
	h := testHandler(t, "", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/layout/stored", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLayoutEndpoint(t *testing.T) {
	h := testHandler(t, "", nil)
	payload := []byte(`{"graph":{"nodes":[{"id":"a"},{"id":"b"}],"links":[{"source":"a","target":"b"}]}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/layout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "MISS", rr.Header().Get(middleware.CacheStatusHeader))
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodPost, "/api/layout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "text/plain")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestStoredLayoutETag(t *testing.T) {
	h := testHandler(t, "", fakeStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/layout/stored", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/layout/stored", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := testHandler(t, "", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/layout", nil)
	req.Header.Set("Origin", "https://viz.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://viz.example", rr.Header().Get("Access-Control-Allow-Origin"))
}
