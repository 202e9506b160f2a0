package fleet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetfinance/internal/cache"
	"fleetfinance/internal/core"
)

func newTestServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/api/trucks/T1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"_id":"T1","registrationNo":"ABC-123"}`))
		case "/api/trucks/T2":
			_, _ = w.Write([]byte(`{"_id":"T2"}`))
		case "/api/trucks/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"registrationNo":"SLOW-1"}`))
		case "/api/trucks/bad":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.Error(w, `{"message":"Truck not found"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRegistration(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	c := NewClient(WithBaseURL(srv.URL+"/"), WithRateLimit(100))

	reg, err := c.Registration(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "ABC-123", reg)

	reg, err = c.Registration(context.Background(), "T2")
	require.NoError(t, err)
	assert.Equal(t, core.RegistrationPlaceholder, reg)
}

func TestRegistrationErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	c := NewClient(WithBaseURL(srv.URL))

	_, err := c.Registration(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/api/trucks/missing", apiErr.Endpoint)

	_, err = c.Registration(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestRegistrationHonoursContextDeadline(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	c := NewClient(WithBaseURL(srv.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Registration(ctx, "slow")
	require.Error(t, err)
}

func TestRegistrationCachesSuccessOnly(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	c := NewClient(WithBaseURL(srv.URL), WithCache(cache.NewLRUCache[string](10, time.Minute)))

	for i := 0; i < 3; i++ {
		reg, err := c.Registration(context.Background(), "T1")
		require.NoError(t, err)
		assert.Equal(t, "ABC-123", reg)
	}
	assert.Equal(t, int32(1), calls.Load())

	for i := 0; i < 2; i++ {
		_, err := c.Registration(context.Background(), "missing")
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}
