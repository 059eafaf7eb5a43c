package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.OrdersCreated.Inc()
	m.FillsRecorded.WithLabelValues("LONG").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FillsRecorded.WithLabelValues("LONG")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "klear_exec_orders_created_total 1")
	assert.Contains(t, string(body), `klear_exec_fills_recorded_total{direction="LONG"} 2`)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.NotificationsDropped.Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.NotificationsDropped))
}
