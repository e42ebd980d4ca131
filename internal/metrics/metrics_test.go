package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLifecycle(t *testing.T) {
	m := New()

	m.RunStarted("onemax")
	m.RunStarted("sphere")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeRuns))

	m.Generation("onemax", 12)
	m.Generation("onemax", 14)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.generations.WithLabelValues("onemax")))
	assert.Equal(t, 14.0, testutil.ToFloat64(m.bestFitness.WithLabelValues("onemax")))

	m.RunFinished("onemax", "completed", 250*time.Millisecond)
	m.RunFinished("sphere", "cancelled", time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsFinished.WithLabelValues("onemax", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsFinished.WithLabelValues("sphere", "cancelled")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.runDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RunStarted("target")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `darwin_runs_started_total{problem="target"} 1`)
	assert.Contains(t, string(body), "darwin_active_runs 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RunStarted("onemax")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.activeRuns))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.activeRuns))
}
