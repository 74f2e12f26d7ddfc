package app_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/artpar/svcroute/adapters/clock"
	"github.com/artpar/svcroute/adapters/idgen"
	"github.com/artpar/svcroute/app"
	"github.com/artpar/svcroute/domain/dispatch"
	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/ports"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func strPtr(s string) *string { return &s }

// recordingMetrics implements ports.RoutingMetrics for testing.
type recordingMetrics struct {
	mu           sync.Mutex
	registered   []string
	replaced     int
	unregistered []string
	failed       []string
	deployed     int
}

func (m *recordingMetrics) ServiceRegistered(basePath string, replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, basePath)
	if replaced {
		m.replaced++
	}
}

func (m *recordingMetrics) ServiceUnregistered(basePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregistered = append(m.unregistered, basePath)
}

func (m *recordingMetrics) RegistrationFailed(svc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, svc)
}

func (m *recordingMetrics) Dispatched(string, ports.DispatchOutcome, time.Duration) {}

func (m *recordingMetrics) SetServicesDeployed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployed = n
}

func newTestRegistry(metrics ports.RoutingMetrics) *app.Registry {
	return app.NewRegistry(
		clock.NewStepping(testStart, time.Second),
		idgen.NewCounter("dep-"),
		zerolog.Nop(),
		app.RegistryConfig{Metrics: metrics},
	)
}

func simpleDef(name, basePath string) service.Definition {
	return service.Definition{
		Name:     name,
		BasePath: basePath,
		Handlers: []resource.Handler{
			{Name: "index", Configs: []resource.Config{{Path: strPtr("/"), Methods: []string{"GET"}}}},
		},
	}
}

func mustRegister(t *testing.T, r *app.Registry, def service.Definition) *service.Service {
	t.Helper()
	svc, err := r.Register(context.Background(), def)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", def.Name, err)
	}
	return svc
}

func TestRegistry_ResolveBasePath(t *testing.T) {
	r := newTestRegistry(nil)
	mustRegister(t, r, simpleDef("foo", "/foo"))
	mustRegister(t, r, simpleDef("foobar", "/foo/bar"))
	mustRegister(t, r, simpleDef("api", "/api/v1"))

	tests := []struct {
		name     string
		path     string
		wantBase string
		wantOK   bool
	}{
		{"exact base path", "/foo", "/foo", true},
		{"longest prefix wins", "/foo/bar/baz", "/foo/bar", true},
		{"exact longer base path", "/foo/bar", "/foo/bar", true},
		{"shorter base path with sub path", "/foo/baz", "/foo", true},
		{"segment boundary", "/foobar", "", false},
		{"case insensitive containment", "/FOO/x", "/foo", true},
		{"unknown", "/nothing", "", false},
		{"contained but not prefix", "/bar/foo", "/foo", true},
		{"contained without separator", "/x/api/v1/y", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.ResolveBasePath(tt.path)
			if ok != tt.wantOK || got != tt.wantBase {
				t.Errorf("ResolveBasePath(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.wantBase, tt.wantOK)
			}
		})
	}
}

func TestRegistry_RootFallback(t *testing.T) {
	r := newTestRegistry(nil)
	mustRegister(t, r, simpleDef("root", "/"))
	mustRegister(t, r, simpleDef("foo", "/foo"))

	if got, ok := r.ResolveBasePath("/foobar"); !ok || got != "/" {
		t.Errorf("ResolveBasePath(/foobar) = (%q, %v), want (/, true)", got, ok)
	}

	svc, sub, ok := r.Lookup("/other/thing")
	if !ok || svc.Name != "root" {
		t.Fatalf("Lookup(/other/thing) = (%v, %q, %v)", svc, sub, ok)
	}
	if sub != "/other/thing" {
		t.Errorf("sub path = %q, want /other/thing", sub)
	}
}

func TestRegistry_SortedBasePaths(t *testing.T) {
	r := newTestRegistry(nil)
	for _, bp := range []string{"/a", "/abc/def", "/ab", "/zz"} {
		mustRegister(t, r, simpleDef(bp[1:], bp))
	}

	want := []string{"/abc/def", "/ab", "/zz", "/a"}
	if got := r.BasePaths(); !slices.Equal(got, want) {
		t.Errorf("BasePaths() = %v, want %v", got, want)
	}
}

func TestRegistry_LastWriterWins(t *testing.T) {
	metrics := &recordingMetrics{}
	r := newTestRegistry(metrics)

	first := mustRegister(t, r, simpleDef("one", "/shared"))
	second := mustRegister(t, r, simpleDef("two", "/shared"))

	got, ok := r.Get("/shared")
	if !ok || got.Name != "two" {
		t.Fatalf("Get(/shared) = %v, want service two", got)
	}
	if got := r.BasePaths(); !slices.Equal(got, []string{"/shared"}) {
		t.Errorf("BasePaths() = %v, want [/shared]", got)
	}
	if first.DeploymentID == second.DeploymentID {
		t.Errorf("deployment IDs should differ, both %q", first.DeploymentID)
	}
	if !second.DeployedAt.After(first.DeployedAt) {
		t.Errorf("second deployment %v not after first %v", second.DeployedAt, first.DeployedAt)
	}
	if metrics.replaced != 1 {
		t.Errorf("replaced = %d, want 1", metrics.replaced)
	}
	if metrics.deployed != 1 {
		t.Errorf("deployed = %d, want 1", metrics.deployed)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	metrics := &recordingMetrics{}
	r := newTestRegistry(metrics)
	mustRegister(t, r, simpleDef("foo", "/foo"))
	mustRegister(t, r, simpleDef("bar", "/bar"))

	if !r.Unregister(context.Background(), "/foo") {
		t.Fatal("Unregister(/foo) = false, want true")
	}
	if r.Unregister(context.Background(), "/foo") {
		t.Error("second Unregister(/foo) = true, want false")
	}
	if _, ok := r.ResolveBasePath("/foo/x"); ok {
		t.Error("/foo/x still resolves after unregister")
	}
	if got := r.BasePaths(); !slices.Equal(got, []string{"/bar"}) {
		t.Errorf("BasePaths() = %v, want [/bar]", got)
	}
	if !slices.Equal(metrics.unregistered, []string{"/foo"}) {
		t.Errorf("unregistered = %v", metrics.unregistered)
	}
}

func TestRegistry_FailedRegistrationPublishesNothing(t *testing.T) {
	metrics := &recordingMetrics{}
	r := newTestRegistry(metrics)
	mustRegister(t, r, simpleDef("orders", "/orders"))

	bad := service.Definition{
		Name:     "orders-v2",
		BasePath: "/orders",
		Handlers: []resource.Handler{
			{Name: "a", Configs: []resource.Config{{Path: strPtr("/items/{id}")}}},
			{Name: "b", Configs: []resource.Config{{Path: strPtr("/items/{other}")}}},
		},
	}

	_, err := r.Register(context.Background(), bad)
	var tmplErr *routeerr.RouteTemplateError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("error = %v, want *routeerr.RouteTemplateError", err)
	}
	if tmplErr.Resource != "b" {
		t.Errorf("failing resource = %q, want b", tmplErr.Resource)
	}

	got, _ := r.Get("/orders")
	if got.Name != "orders" {
		t.Errorf("service under /orders = %q, want original", got.Name)
	}
	if !slices.Equal(metrics.failed, []string{"orders-v2"}) {
		t.Errorf("failed = %v", metrics.failed)
	}
}

func TestRegistry_AmbiguousConfigRejected(t *testing.T) {
	r := newTestRegistry(nil)
	def := service.Definition{
		Name: "svc",
		Handlers: []resource.Handler{
			{Name: "x", Configs: []resource.Config{{Path: strPtr("/a")}, {Path: strPtr("/b")}}},
		},
	}

	_, err := r.Register(context.Background(), def)
	var cfgErr *routeerr.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *routeerr.ConfigError", err)
	}
	if len(r.BasePaths()) != 0 {
		t.Errorf("BasePaths() = %v, want empty", r.BasePaths())
	}
}

func TestRegistry_CanceledContext(t *testing.T) {
	r := newTestRegistry(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Register(ctx, simpleDef("foo", "/foo")); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if _, ok := r.Get("/foo"); ok {
		t.Error("service published despite canceled context")
	}
}

func TestRegistry_DefaultBasePath(t *testing.T) {
	r := newTestRegistry(nil)
	svc := mustRegister(t, r, simpleDef("greeting", "  "))
	if svc.BasePath != "/greeting" {
		t.Errorf("BasePath = %q, want /greeting", svc.BasePath)
	}

	svc = mustRegister(t, r, simpleDef("encoded", "/hello%20world/"))
	if svc.BasePath != "/hello world" {
		t.Errorf("BasePath = %q, want %q", svc.BasePath, "/hello world")
	}
}

func TestRegistry_EndToEnd(t *testing.T) {
	r := newTestRegistry(nil)
	mustRegister(t, r, service.Definition{
		Name:     "orders",
		BasePath: "/orders",
		Handlers: []resource.Handler{
			{
				Name:    "getItem",
				Params:  []resource.Param{{Name: "id", Kind: resource.KindString}},
				Configs: []resource.Config{{Path: strPtr("/items/{id}"), Methods: []string{"GET"}}},
			},
		},
	})

	svc, sub, ok := r.Lookup("/orders/items/42")
	if !ok {
		t.Fatal("Lookup(/orders/items/42) found nothing")
	}
	if sub != "/items/42" {
		t.Fatalf("sub path = %q, want /items/42", sub)
	}

	m, err := dispatch.Dispatch(svc, "GET", sub, "")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.Resource.Name != "getItem" || m.Args["id"] != "42" || len(m.Args) != 1 {
		t.Errorf("match = %s %v, want getItem {id:42}", m.Resource.Name, m.Args)
	}

	if _, err := dispatch.Dispatch(svc, "POST", sub, ""); err == nil {
		t.Error("POST should not match a GET-only resource")
	}
}

func TestRegistry_Services(t *testing.T) {
	r := newTestRegistry(nil)
	mustRegister(t, r, simpleDef("short", "/s"))
	mustRegister(t, r, simpleDef("long", "/long/path"))

	var names []string
	for _, svc := range r.Services() {
		names = append(names, svc.Name)
	}
	if !slices.Equal(names, []string{"long", "short"}) {
		t.Errorf("Services() = %v, want [long short]", names)
	}
}

func TestRegistry_ConcurrentRegisterAndLookup(t *testing.T) {
	r := newTestRegistry(&recordingMetrics{})
	mustRegister(t, r, simpleDef("stable", "/stable"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bp := fmt.Sprintf("/svc%d/%d", i, j)
				if _, err := r.Register(context.Background(), simpleDef(bp, bp)); err != nil {
					t.Errorf("Register(%s) failed: %v", bp, err)
					return
				}
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				svc, sub, ok := r.Lookup("/stable/x")
				if !ok || svc.Name != "stable" || sub != "/x" {
					t.Errorf("Lookup(/stable/x) = (%v, %q, %v)", svc, sub, ok)
					return
				}
			}
		}()
	}
	wg.Wait()

	paths := r.BasePaths()
	if len(paths) != 401 {
		t.Fatalf("len(BasePaths()) = %d, want 401", len(paths))
	}
	for i := 1; i < len(paths); i++ {
		if len(paths[i-1]) < len(paths[i]) {
			t.Fatalf("BasePaths() not sorted at %d: %q before %q", i, paths[i-1], paths[i])
		}
	}
}
