package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

// SearchMetrics 把禁忌搜索的迭代统计记录为 Prometheus 指标，实现了 scheduler.Observer
type SearchMetrics struct {
	registry         *prometheus.Registry
	iterations       prometheus.Counter
	candidates       prometheus.Histogram
	tabuCandidates   prometheus.Counter
	aspirations      prometheus.Counter
	diversifications prometheus.Counter
	intensifications prometheus.Counter
	currentScore     prometheus.Gauge
	bestScore        prometheus.Gauge
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
}

func NewSearchMetrics() *SearchMetrics {
	registry := prometheus.NewRegistry()

	m := &SearchMetrics{
		registry: registry,
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabu_search_iterations_total",
			Help: "禁忌搜索完成的迭代次数",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabu_search_candidates",
			Help:    "每次迭代生成的可行候选解数量",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tabuCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabu_search_tabu_candidates_total",
			Help: "被禁忌表命中的候选解数量",
		}),
		aspirations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabu_search_aspirations_total",
			Help: "通过特赦准则被接受的禁忌候选解数量",
		}),
		diversifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabu_search_diversifications_total",
			Help: "执行分散搜索的次数",
		}),
		intensifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabu_search_intensifications_total",
			Help: "执行集中搜索的次数",
		}),
		currentScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tabu_search_current_score",
			Help: "当前解的得分",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tabu_search_best_score",
			Help: "目前为止最优解的得分",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabu_search_runs_total",
			Help: "按停止原因统计的搜索次数",
		}, []string{"stop_reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tabu_search_duration_seconds",
			Help:    "一次搜索的耗时",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.iterations,
		m.candidates,
		m.tabuCandidates,
		m.aspirations,
		m.diversifications,
		m.intensifications,
		m.currentScore,
		m.bestScore,
		m.runs,
		m.runDuration,
	)

	return m
}

func (m *SearchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *SearchMetrics) OnIteration(stats scheduler.IterationStats) {
	m.iterations.Inc()
	m.candidates.Observe(float64(stats.Candidates))
	m.tabuCandidates.Add(float64(stats.TabuCandidates))
	if stats.Aspirated {
		m.aspirations.Inc()
	}
	if stats.Diversified {
		m.diversifications.Inc()
	}
	if stats.Intensified {
		m.intensifications.Inc()
	}
	m.currentScore.Set(stats.CurrentScore)
	m.bestScore.Set(stats.BestScore)
}

func (m *SearchMetrics) OnFinish(result *scheduler.Result) {
	m.runs.WithLabelValues(string(result.StopReason)).Inc()
	m.runDuration.Observe(result.Elapsed.Seconds())
	m.bestScore.Set(result.BestScore)
}

// Push 把所有指标推送到 Pushgateway，排班命令是一次性任务，无法被 Prometheus 主动抓取
func (m *SearchMetrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}
