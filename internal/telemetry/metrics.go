package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "webpptx_jobs_submitted_total", Help: "Jobs admitted, by kind"}, []string{"kind"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "webpptx_jobs_completed_total", Help: "Jobs that produced a result archive"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "webpptx_jobs_failed_total", Help: "Jobs that failed terminally"})
	ResultsRetrieved = prometheus.NewCounter(prometheus.CounterOpts{Name: "webpptx_results_retrieved_total", Help: "Result archives handed to callers"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "webpptx_rate_limit_rejects_total", Help: "Submissions rejected by the rate limiter"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "webpptx_jobs_in_flight", Help: "Jobs currently held by a worker"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "webpptx_queue_depth", Help: "Jobs waiting in the ready queue"})
)

func register() {
	prometheus.MustRegister(
		JobsSubmitted,
		JobsCompleted,
		JobsFailed,
		ResultsRetrieved,
		RateLimitRejects,
		InFlightGauge,
		QueueDepthGauge,
	)
}

// Handler exposes the metrics endpoint, registering collectors on first use.
func Handler() http.Handler {
	once.Do(register)
	return promhttp.Handler()
}
