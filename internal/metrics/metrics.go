package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ChatRequests    *prometheus.CounterVec
	ChatFailures    *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unichat",
				Name:      "chat_requests_total",
				Help:      "Total chat requests by provider",
			}, []string{"provider"}),
			ChatFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unichat",
				Name:      "chat_failures_total",
				Help:      "Total failed chat requests by provider",
			}, []string{"provider"}),
			UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "unichat",
				Name:      "upstream_latency_seconds",
				Help:      "Upstream call latency by provider",
				Buckets:   prometheus.DefBuckets,
			}, []string{"provider"}),
		}
		prometheus.MustRegister(global.ChatRequests, global.ChatFailures, global.UpstreamLatency)
	})
	return global
}
