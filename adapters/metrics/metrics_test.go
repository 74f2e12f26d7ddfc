package metrics_test

import (
	"testing"
	"time"

	"github.com/artpar/svcroute/adapters/metrics"
	"github.com/artpar/svcroute/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m.RequestsTotal == nil || m.DispatchTotal == nil || m.Registrations == nil {
		t.Fatal("collector has nil metrics")
	}
	if m.ServicesDeployed == nil || m.ConfigReloads == nil {
		t.Fatal("collector has nil gauges")
	}
}

func TestRoutingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ServiceRegistered("/orders", false)
	m.ServiceRegistered("/orders", true)
	m.ServiceUnregistered("/orders")
	m.RegistrationFailed("broken")
	m.RegistrationFailed("broken")
	m.SetServicesDeployed(3)

	if got := testutil.ToFloat64(m.Registrations.WithLabelValues("true")); got != 1 {
		t.Errorf("replaced registrations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Registrations.WithLabelValues("false")); got != 1 {
		t.Errorf("new registrations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Unregistrations); got != 1 {
		t.Errorf("unregistrations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RegistrationErrors.WithLabelValues("broken")); got != 2 {
		t.Errorf("registration errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ServicesDeployed); got != 3 {
		t.Errorf("services deployed = %v, want 3", got)
	}
}

func TestDispatched(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.Dispatched("orders", ports.OutcomeMatched, 20*time.Microsecond)
	m.Dispatched("orders", ports.OutcomeMatched, 30*time.Microsecond)
	m.Dispatched("", ports.OutcomeNoService, time.Microsecond)

	if got := testutil.ToFloat64(m.DispatchTotal.WithLabelValues("orders", "matched")); got != 2 {
		t.Errorf("matched = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DispatchTotal.WithLabelValues("", "no_service")); got != 1 {
		t.Errorf("no_service = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.DispatchDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestRequestsInFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsInFlight.Inc()
	m.RequestsInFlight.Inc()
	m.RequestsInFlight.Dec()

	if got := testutil.ToFloat64(m.RequestsInFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsTotal.WithLabelValues("GET", "2xx").Inc()
	m.ConfigReloads.Inc()
	m.ConfigLastReload.SetToCurrentTime()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	want := map[string]bool{
		"svcroute_requests_total":               false,
		"svcroute_config_reloads_total":         false,
		"svcroute_config_last_reload_timestamp": false,
		"svcroute_services_deployed":            false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}

	for _, tt := range tests {
		if got := metrics.StatusClass(tt.status); got != tt.want {
			t.Errorf("StatusClass(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
