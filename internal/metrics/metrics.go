// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bloodfinder"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RelaySends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_sends_total",
		Help:      "Messaging relay calls by outcome.",
	}, []string{"result"})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emergency_alerts_total",
		Help:      "Emergency alerts by dispatch mode and outcome.",
	}, []string{"mode", "result"})

	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_turns_total",
		Help:      "Chat turns against the AI endpoint by outcome.",
	}, []string{"result"})

	ChatConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chat_conversations",
		Help:      "Live chat conversations held in memory.",
	})

	ChatFeedback = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_feedback_total",
		Help:      "Thumbs up/down on assistant messages.",
	}, []string{"vote"})
)

// Result labels an outcome as ok or error.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// GinMiddleware records request counts and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
