package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionCounters(t *testing.T) {
	m := New()
	m.Decision("confirmed")
	m.Decision("confirmed")
	m.Decision("waitlisted")
	m.Promotion("removal")
	m.BoundaryTimeout()
	m.Inconsistent()
	m.ObserveBoundary(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("waitlisted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotions.WithLabelValues("removal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.timeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inconsistencies))
}

func TestNilAdmissionIsNoop(t *testing.T) {
	var m *Admission
	assert.NotPanics(t, func() {
		m.Decision("confirmed")
		m.Promotion("manual")
		m.Removal("confirmed")
		m.BoundaryTimeout()
		m.Inconsistent()
		m.Repaired()
		m.ObserveBoundary(time.Second)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Decision("rejected")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `attendly_admission_decisions_total{status="rejected"} 1`)
}
