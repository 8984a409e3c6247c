package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kiara_dispatch_queue_depth",
		Help: "Requests waiting in the dispatch queue.",
	})
	executedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kiara_dispatch_executed_total",
		Help: "Dispatched requests by outcome.",
	}, []string{"outcome"})
	waitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiara_dispatch_wait_seconds",
		Help:    "Time from enqueue to execution.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
)

func init() {
	prometheus.MustRegister(queueDepth, executedTotal, waitSeconds)
}
