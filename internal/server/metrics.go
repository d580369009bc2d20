package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors of the HTTP surface.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests          *prometheus.CounterVec
	Durations         *prometheus.HistogramVec
	Builds            *prometheus.CounterVec
	Samples           prometheus.Histogram
	MissingElevations prometheus.Counter
}

// NewMetrics registers the collectors against reg, defaulting to the global
// Prometheus registry when nil. Registering twice returns the existing
// collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elevprofile_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route pattern, method and status code.",
	}, []string{"pattern", "method", "code"}), "elevprofile_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "elevprofile_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"pattern"}), "elevprofile_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	builds, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "elevprofile_builds_total",
		Help: "Total number of profile builds, labeled by result.",
	}, []string{"result"}), "elevprofile_builds_total")
	if err != nil {
		return nil, err
	}

	samples, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "elevprofile_route_samples",
		Help:    "Number of route samples per built profile.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 7),
	}), "elevprofile_route_samples")
	if err != nil {
		return nil, err
	}

	missing, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elevprofile_missing_elevations_total",
		Help: "Total number of route samples whose elevation could not be resolved.",
	}), "elevprofile_missing_elevations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:          gatherer,
		Requests:          requests,
		Durations:         durations,
		Builds:            builds,
		Samples:           samples,
		MissingElevations: missing,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(pattern, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	if pattern == "" {
		pattern = "unmatched"
	}
	m.Requests.WithLabelValues(pattern, method, strconv.Itoa(code)).Inc()
	m.Durations.WithLabelValues(pattern).Observe(d.Seconds())
}

// ObserveBuild records a profile build outcome.
func (m *Metrics) ObserveBuild(p *profile.Profile, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Builds.WithLabelValues("error").Inc()
		return
	}
	m.Builds.WithLabelValues("ok").Inc()
	m.Samples.Observe(float64(len(p.Samples)))
	m.MissingElevations.Add(float64(p.Diagnostics.MissingElevations))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}
