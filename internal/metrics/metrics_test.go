package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

func TestSearchMetricsRecordsIterations(t *testing.T) {
	m := NewSearchMetrics()

	m.OnIteration(scheduler.IterationStats{Iteration: 1, Candidates: 12, TabuCandidates: 3, Aspirated: true, CurrentScore: 0.2, BestScore: 0.3})
	m.OnIteration(scheduler.IterationStats{Iteration: 2, Candidates: 8, TabuCandidates: 1, Diversified: true, CurrentScore: 0.25, BestScore: 0.3})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.iterations))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tabuCandidates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aspirations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diversifications))
	assert.Zero(t, testutil.ToFloat64(m.intensifications))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.currentScore))
	assert.Equal(t, 0.3, testutil.ToFloat64(m.bestScore))
}

func TestSearchMetricsRecordsRuns(t *testing.T) {
	m := NewSearchMetrics()

	m.OnFinish(&scheduler.Result{StopReason: scheduler.StopNoImprovement, BestScore: 0.4, Elapsed: time.Second})
	m.OnFinish(&scheduler.Result{StopReason: scheduler.StopNoImprovement, BestScore: 0.5, Elapsed: time.Second})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("no_improvement")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.bestScore))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestSearchMetricsPush(t *testing.T) {
	var path string
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		body = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewSearchMetrics()
	m.OnIteration(scheduler.IterationStats{Candidates: 1})

	require.NoError(t, m.Push(context.Background(), srv.URL, "or_scheduler"))
	assert.Equal(t, "/metrics/job/or_scheduler", path)
	assert.NotEmpty(t, body)
}
