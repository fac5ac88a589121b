package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/store/journal"
)

func testServer(snap func() *ledger.Ledger) *Server {
	reg := prometheus.NewRegistry()
	return New(":0", snap, func() string { return "INACTIVE" }, nil, reg)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := testServer(func() *ledger.Ledger { return nil })

	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLedgerEndpoint(t *testing.T) {
	l := ledger.New("BTCUSDT", 1000)
	require.NoError(t, l.AddGridOrder(ledger.NewGridOrder(100, 1, time.Now())))
	s := testServer(func() *ledger.Ledger { return l.Clone() })

	w := get(t, s, "/api/ledger")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Ledger       ledger.Ledger `json:"ledger"`
		CascadeState string        `json:"cascade_state"`
		GridOrders   int           `json:"grid_orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BTCUSDT", body.Ledger.Symbol)
	assert.Equal(t, "INACTIVE", body.CascadeState)
	assert.Equal(t, 1, body.GridOrders)
}

func TestLedgerEndpointNoStateYet(t *testing.T) {
	s := testServer(func() *ledger.Ledger { return nil })

	w := get(t, s, "/api/ledger")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFillsEndpointWithoutJournal(t *testing.T) {
	s := testServer(func() *ledger.Ledger { return nil })

	w := get(t, s, "/api/fills")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActionsEndpoint(t *testing.T) {
	jr, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jr.Close() })
	o := ledger.NewGridOrder(100, 1, time.Now())
	require.NoError(t, jr.RecordAction(context.Background(), "BTCUSDT", journal.ActionPlace, o, ""))
	s := New(":0", func() *ledger.Ledger { return nil }, func() string { return "" }, jr, prometheus.NewRegistry())

	w := get(t, s, "/api/actions")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Actions []journal.ActionRecord `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Actions, 1)
	assert.Equal(t, journal.ActionPlace, body.Actions[0].Action)
	assert.Equal(t, 100.0, body.Actions[0].Price)
}

func TestActionsEndpointWithoutJournal(t *testing.T) {
	s := testServer(func() *ledger.Ledger { return nil })

	w := get(t, s, "/api/actions")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_metric", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(42)
	s := New(":0", func() *ledger.Ledger { return nil }, func() string { return "" }, nil, reg)

	w := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_metric 42")
}
