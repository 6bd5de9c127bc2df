// Package metrics exposes Prometheus metrics for the unify service.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Unifications    *prometheus.CounterVec
	CountryRuns     *prometheus.CounterVec
	RowsProduced    prometheus.Counter
	UnifyDuration   prometheus.Histogram
}

// New creates and registers the collectors. runtime adds the Go and process
// collectors.
func New(runtime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		Unifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unificar_runs_total",
				Help: "Unification requests by outcome",
			},
			[]string{"outcome"},
		),
		CountryRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unificar_country_runs_total",
				Help: "Successful unifications that included each country",
			},
			[]string{"country"},
		),
		RowsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unificar_rows_total",
			Help: "Rows written to unified workbooks",
		}),
		UnifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "unificar_duration_seconds",
			Help:    "Time spent reading, normalizing and writing a unification",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	if runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.Unifications,
		m.CountryRuns,
		m.RowsProduced,
		m.UnifyDuration,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and durations by route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			switch e := err.(type) {
			case *echo.HTTPError:
				status = e.Code
			case statusCoder:
				status = e.StatusCode()
			}
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			method := c.Request().Method
			m.RequestCounter.WithLabelValues(method, endpoint, statusClass(status)).Inc()
			m.RequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ObserveUnify records one unification request.
func (m *Metrics) ObserveUnify(outcome string, countries map[string]int, rows int, elapsed time.Duration) {
	m.Unifications.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	for country := range countries {
		m.CountryRuns.WithLabelValues(country).Inc()
	}
	m.RowsProduced.Add(float64(rows))
	m.UnifyDuration.Observe(elapsed.Seconds())
}

// Unification outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeInputError  = "input_error"
	OutcomeServerError = "server_error"
)

// statusCoder is an error that knows its HTTP status.
type statusCoder interface {
	StatusCode() int
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
