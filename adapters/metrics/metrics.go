// Package metrics provides Prometheus metrics collection for svcroute.
package metrics

import (
	"strconv"
	"time"

	"github.com/artpar/svcroute/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "svcroute"

// Collector holds all Prometheus metrics for svcroute.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Registry metrics
	Registrations      *prometheus.CounterVec
	Unregistrations    prometheus.Counter
	RegistrationErrors *prometheus.CounterVec
	ServicesDeployed   prometheus.Gauge

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of routing decisions by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent resolving the service and resource of a request",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"service"},
		),

		Registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_registrations_total",
				Help:      "Total number of service deployments",
			},
			[]string{"replaced"},
		),
		Unregistrations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_unregistrations_total",
				Help:      "Total number of service undeployments",
			},
		),
		RegistrationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_registration_errors_total",
				Help:      "Total number of rejected service deployments",
			},
			[]string{"service"},
		),
		ServicesDeployed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services_deployed",
				Help:      "Number of services currently deployed",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ServiceRegistered implements ports.RoutingMetrics.
func (c *Collector) ServiceRegistered(basePath string, replaced bool) {
	c.Registrations.WithLabelValues(strconv.FormatBool(replaced)).Inc()
}

// ServiceUnregistered implements ports.RoutingMetrics.
func (c *Collector) ServiceUnregistered(basePath string) {
	c.Unregistrations.Inc()
}

// RegistrationFailed implements ports.RoutingMetrics.
func (c *Collector) RegistrationFailed(service string) {
	c.RegistrationErrors.WithLabelValues(service).Inc()
}

// Dispatched implements ports.RoutingMetrics. Requests that resolved to no
// service are recorded under an empty service label.
func (c *Collector) Dispatched(service string, outcome ports.DispatchOutcome, d time.Duration) {
	c.DispatchTotal.WithLabelValues(service, string(outcome)).Inc()
	c.DispatchDuration.WithLabelValues(service).Observe(d.Seconds())
}

// SetServicesDeployed implements ports.RoutingMetrics.
func (c *Collector) SetServicesDeployed(n int) {
	c.ServicesDeployed.Set(float64(n))
}

// StatusClass buckets an HTTP status code into 1xx..5xx to bound label
// cardinality.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

var _ ports.RoutingMetrics = (*Collector)(nil)
