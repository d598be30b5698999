package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var histogramBuckets = []float64{
	5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000,
}

var (
	reqCnt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, partitioned by status code, method and route.",
	}, []string{"code", "method", "route"})

	reqDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billing",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latencies in milliseconds.",
		Buckets:   histogramBuckets,
	}, []string{"code", "method", "route"})

	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Name:      "webhook_events_total",
		Help:      "Webhook events observed, partitioned by provider, event name and outcome.",
	}, []string{"provider", "event", "outcome"})
)

func init() {
	prometheus.MustRegister(reqCnt, reqDur, webhookEvents)
}

// Ingestion outcomes reported via ObserveWebhookEvent.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// ObserveWebhookEvent records the terminal outcome of one webhook delivery.
func ObserveWebhookEvent(provider, event, outcome string) {
	if event == "" {
		event = "unknown"
	}
	webhookEvents.WithLabelValues(provider, event, outcome).Inc()
}

// GinMiddleware records request counts and latencies per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		reqCnt.WithLabelValues(code, c.Request.Method, route).Inc()
		reqDur.WithLabelValues(code, c.Request.Method, route).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Serve starts a dedicated metrics listener exposing /metrics.
func Serve(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorw("metrics listener stopped", "addr", addr, "err", err)
		}
	}()
	log.Infow("metrics started", "addr", addr)
}
