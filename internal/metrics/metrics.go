// Package metrics exposes import, commit and agent measurements to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "closeplan"

// Recorder implements core.Recorder and agent.Recorder.
type Recorder struct {
	gatherer prometheus.Gatherer

	imports    *prometheus.CounterVec
	rows       *prometheus.CounterVec
	resolution *prometheus.HistogramVec
	commits    *prometheus.CounterVec
	savedRows  *prometheus.CounterVec
	agent      *prometheus.CounterVec
	agentTime  prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Recorder{
		gatherer: reg,
		imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Spreadsheet imports by profile and outcome",
		}, []string{"profile", "outcome"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported rows by profile and kind (parsed, dropped, invalid)",
		}, []string{"profile", "kind"}),
		resolution: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Owner and dependency resolution latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"profile", "outcome"}),
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commit attempts by profile and outcome",
		}, []string{"profile", "outcome"}),
		savedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_rows_total",
			Help:      "Rows written by successful commits",
		}, []string{"profile"}),
		agent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_requests_total",
			Help:      "Chat requests by outcome",
		}, []string{"outcome"}),
		agentTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_request_duration_seconds",
			Help:      "Chat request latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ImportFinished counts one import and its row tallies.
func (r *Recorder) ImportFinished(profile, outcome string, parsed, dropped, invalid int) {
	r.imports.WithLabelValues(profile, outcome).Inc()
	r.rows.WithLabelValues(profile, "parsed").Add(float64(parsed))
	r.rows.WithLabelValues(profile, "dropped").Add(float64(dropped))
	r.rows.WithLabelValues(profile, "invalid").Add(float64(invalid))
}

// ResolutionObserved records how long a resolution pass took.
func (r *Recorder) ResolutionObserved(profile string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.resolution.WithLabelValues(profile, outcome).Observe(d.Seconds())
}

// CommitFinished counts one commit attempt. Rows count toward the saved
// total only for the "saved" outcome.
func (r *Recorder) CommitFinished(profile, outcome string, rows int) {
	r.commits.WithLabelValues(profile, outcome).Inc()
	if outcome == "saved" && rows > 0 {
		r.savedRows.WithLabelValues(profile).Add(float64(rows))
	}
}

// AgentRequest counts one chat request.
func (r *Recorder) AgentRequest(outcome string, d time.Duration) {
	r.agent.WithLabelValues(outcome).Inc()
	r.agentTime.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
