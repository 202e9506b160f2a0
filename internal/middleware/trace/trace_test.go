package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetfinance/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: log.FormatJSON, Component: log.ComponentHTTP, Output: &buf})
	mw := NewMiddleware(func(*http.Request) string { return "10.0.0.9" })

	var seenID string
	h := log.Middleware(logger)(mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNotFound)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/finance/truck/T2", nil))

	require.True(t, strings.HasPrefix(seenID, "req_"))
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inner, done map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inner))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &done))
	assert.Equal(t, seenID, inner[log.FieldRequestID])
	assert.Equal(t, "WARN", done["level"])
	assert.EqualValues(t, http.StatusNotFound, done[log.FieldStatusCode])
	assert.Equal(t, "10.0.0.9", done[log.FieldClientIP])
}

func TestMiddlewareKeepsUpstreamRequestID(t *testing.T) {
	mw := NewMiddleware(nil)
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream-1", GetRequestID(r.Context()))
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	m := mw.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRequests)
	assert.Equal(t, int64(1), m.ServerErrors)
}

func TestGetRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
