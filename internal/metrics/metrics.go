package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	gatherer prometheus.Gatherer

	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	ChargeOutcomes *prometheus.CounterVec
	GatewayMS      *prometheus.HistogramVec
}

// NewServerMetrics registers the collectors on reg. Pass nil to use the
// default registry.
func NewServerMetrics(service string, reg *prometheus.Registry) *ServerMetrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	service = subsystem(service)
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "charge_outcomes_total",
		Help:      "Classified charge outcomes by observation point.",
	}, []string{"source", "status"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "gateway_call_duration_ms",
		Help:      "Payment gateway call latency in milliseconds.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"operation", "result"})

	registerer.MustRegister(requests, latency, outcomes, gateway)
	return &ServerMetrics{
		gatherer:       gatherer,
		Requests:       requests,
		LatencyMS:      latency,
		ChargeOutcomes: outcomes,
		GatewayMS:      gateway,
	}
}

// Observe records one handled request.
func (m *ServerMetrics) Observe(handler string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, http.StatusText(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *ServerMetrics) Outcome(source, status string) {
	if m == nil {
		return
	}
	m.ChargeOutcomes.WithLabelValues(source, status).Inc()
}

func (m *ServerMetrics) GatewayCall(op string, err error, start time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayMS.WithLabelValues(op, result).Observe(float64(time.Since(start).Milliseconds()))
}

// Handler exposes the registry the metrics were registered on.
func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// subsystem maps a service name onto the metric name alphabet.
func subsystem(service string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, service)
}
