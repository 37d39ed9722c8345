package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Transition("confirm_pregnancy", nil)
	r.Transition("confirm_pregnancy", errors.New("x"))
	r.Rollback("ngrules")
	r.PairingCheck("flagged")

	require.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("confirm_pregnancy", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("confirm_pregnancy", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.rollbacks.WithLabelValues("ngrules")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), "breeding_pairing_checks_total")
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	r.Transition("x", nil)
	r.Rollback("x")
	r.PairingCheck("x")
}
