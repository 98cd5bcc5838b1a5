package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Imports(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ImportFinished("tasks", "ok", 10, 2, 1)
	r.ImportFinished("tasks", "ok", 5, 0, 0)
	r.ImportFinished("tasks", "empty", 0, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.imports.WithLabelValues("tasks", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.imports.WithLabelValues("tasks", "empty")))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.rows.WithLabelValues("tasks", "parsed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rows.WithLabelValues("tasks", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rows.WithLabelValues("tasks", "invalid")))
}

func TestRecorder_Commits(t *testing.T) {
	r := New(nil)

	r.CommitFinished("tasks", "saved", 4)
	r.CommitFinished("tasks", "failed", 3)
	r.CommitFinished("tasks", "refused", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.commits.WithLabelValues("tasks", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.savedRows.WithLabelValues("tasks")))
}

func TestRecorder_ResolutionAndAgent(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ResolutionObserved("tasks", 20*time.Millisecond, nil)
	r.ResolutionObserved("tasks", time.Second, errors.New("offline"))
	r.AgentRequest("ok", 300*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.resolution))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.agent.WithLabelValues("ok")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New(nil)
	r.ImportFinished("ssr_records", "ok", 1, 0, 0)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `closeplan_imports_total{outcome="ok",profile="ssr_records"} 1`)
}
