// Package metrics 定义推荐链路的 Prometheus 指标。
//
// 指标在包初始化时通过 promauto 注册到默认 Registry，宿主进程自行暴露 /metrics。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommend 调用
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swipetime_recommend_requests_total",
			Help: "Total number of recommend calls",
		},
		[]string{"category", "mode", "status"}, // status: ok / error / empty
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swipetime_recommend_duration_seconds",
			Help:    "Duration of recommend calls in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"category", "mode"},
	)

	RecommendResultSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swipetime_recommend_result_size",
			Help:    "Number of items returned per recommend call",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"category"},
	)

	// 过滤
	FilterDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swipetime_filter_dropped_total",
			Help: "Total number of entities removed by a filter",
		},
		[]string{"filter"},
	)

	PreferencesMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swipetime_preferences_malformed_total",
			Help: "Total number of preference records that failed to decode",
		},
	)

	// 洗牌
	ShuffleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swipetime_shuffle_total",
			Help: "Total number of shuffles per category",
		},
		[]string{"category"},
	)

	ShuffleRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swipetime_shuffle_retries_total",
			Help: "Total number of shuffles that were redrawn because the order repeated the previous one",
		},
		[]string{"category"},
	)

	ShuffleHistoryCategories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swipetime_shuffle_history_categories",
			Help: "Current number of categories with a remembered presentation order",
		},
	)
)

// RecordRecommend 记录一次推荐调用。
func RecordRecommend(category, mode string, size int, duration time.Duration, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case size == 0:
		status = "empty"
	}
	RecommendRequests.WithLabelValues(category, mode, status).Inc()
	RecommendDuration.WithLabelValues(category, mode).Observe(duration.Seconds())
	if err == nil {
		RecommendResultSize.WithLabelValues(category).Observe(float64(size))
	}
}

// RecordFilterDropped 记录某个过滤器移除的数量，n <= 0 时忽略。
func RecordFilterDropped(filter string, n int) {
	if n <= 0 {
		return
	}
	FilterDropped.WithLabelValues(filter).Add(float64(n))
}

func RecordPreferencesMalformed() {
	PreferencesMalformed.Inc()
}

// RecordShuffle 记录一次洗牌；retried 表示触发了重洗。
func RecordShuffle(category string, retried bool) {
	ShuffleTotal.WithLabelValues(category).Inc()
	if retried {
		ShuffleRetries.WithLabelValues(category).Inc()
	}
}

func SetShuffleHistoryCategories(n int) {
	ShuffleHistoryCategories.Set(float64(n))
}
