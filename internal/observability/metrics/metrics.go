package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/target/oidc-gate/internal/domain/access"
	obserrors "github.com/target/oidc-gate/internal/observability/errors"
	"github.com/target/oidc-gate/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics provides observability for access decisions, login flows and HTTP traffic.
// Every series is mirrored to StatsD when a sink is configured.
type Metrics struct {
	// Decision outcomes by enforcement surface
	Decisions *prometheus.CounterVec

	// Login and logout attempts by flow and result
	AuthFlows *prometheus.CounterVec

	// Request latency by route pattern and status class
	RequestLatency *prometheus.HistogramVec

	sink statsd.Sink
}

// New registers the gate metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer, sink statsd.Sink) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcgate_access_decisions_total",
			Help: "Total access decisions by surface and outcome",
		}, []string{"surface", "decision"}),

		AuthFlows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oidcgate_auth_flows_total",
			Help: "Total login and logout attempts by flow and result",
		}, []string{"flow", "result", "error_class"}),

		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oidcgate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),

		sink: sink,
	}
}

// RecordDecision counts an access decision.
func (m *Metrics) RecordDecision(surface string, decision access.Decision) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(surface, decision.String()).Inc()
	if m.sink != nil {
		m.sink.Count("access.decision", 1, map[string]string{
			"surface":  surface,
			"decision": decision.String(),
		})
	}
}

// RecordAuthFlow counts a login or logout attempt. err is nil on success.
func (m *Metrics) RecordAuthFlow(flow string, err error) {
	if m == nil {
		return
	}
	result, class := ResultSuccess, ""
	if err != nil {
		result, class = ResultError, obserrors.Classify(err)
	}
	m.AuthFlows.WithLabelValues(flow, result, class).Inc()
	if m.sink != nil {
		tags := map[string]string{"flow": flow, "result": result}
		if class != "" {
			tags["error_class"] = class
		}
		m.sink.Count("auth.flow", 1, tags)
	}
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	class := statusClass(status)
	m.RequestLatency.WithLabelValues(route, class).Observe(d.Seconds())
	if m.sink != nil {
		m.sink.Timing("http.request", d, map[string]string{"route": route, "status": class})
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
