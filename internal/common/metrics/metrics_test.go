package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Command.Commands.WithLabelValues("update_status", "ok").Inc()
	m.Command.Commands.WithLabelValues("update_status", "invalid transition").Add(2)
	m.Realtime.Dropped.WithLabelValues("buffer_full").Inc()
	m.Realtime.Sessions.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "realtime_sessions 3")
	assert.Contains(t, body, `marketplace_orders_commands_total{command="update_status",result="invalid transition"} 2`)
	assert.Contains(t, body, `marketplace_realtime_events_dropped_total{reason="buffer_full"} 1`)
}

func TestMetrics_SeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
