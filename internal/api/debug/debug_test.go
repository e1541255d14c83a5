package debug

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/taskpulse/internal/domain/monitoring"
	"github.com/ahrav/taskpulse/pkg/metrics"
)

func TestMuxServesMetricsAndProfiles(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("taskpulse", reg, monitoring.ConnectionStateNames()...)
	m.IncConnects()

	mux, err := Mux(reg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taskpulse_stream_connects_total 1")
	assert.Contains(t, rec.Body.String(), `taskpulse_stream_state{state="connecting"} 0`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
