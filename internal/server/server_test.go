package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/forcegraph/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("METRICS_INTERVAL", "1h")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)
	return config.Load()
}

func TestOpenStoreWithoutDatabase(t *testing.T) {
	store, err := OpenStore(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestNewWithoutDatabase(t *testing.T) {
	s, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.job)
	assert.NotNil(t, s.cache)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"disabled"`)
}

func TestNewRejectsBadLayoutConfig(t *testing.T) {
	t.Setenv("LAYOUT_ITERATIONS", "0")
	_, err := New(testConfig(t), nil)
	assert.Error(t, err)
}

func TestNewWithCacheDisabled(t *testing.T) {
	t.Setenv("CACHE_MAX_SIZE_MB", "0")
	s, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.cache)
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/graph", redactURL("postgres://app:hunter2@db:5432/graph"))
	assert.Equal(t, "postgres://db/graph", redactURL("postgres://db/graph"))
	assert.Equal(t, "<dsn>", redactURL("host=db password=hunter2"))
}
