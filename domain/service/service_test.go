package service_test

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/artpar/svcroute/domain/cors"
	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/service"
)

func handler(name, path string, methods ...string) resource.Handler {
	cfg := resource.Config{Path: &path}
	if len(methods) > 0 {
		cfg.Methods = methods
	}
	return resource.Handler{Name: name, Configs: []resource.Config{cfg}}
}

func TestSanitizeBasePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"   ", "/"},
		{"/", "/"},
		{"//", "/"},
		{"orders", "/orders"},
		{"/orders", "/orders"},
		{"/orders/", "/orders"},
		{" /orders/ ", "/orders"},
		{"/orders//", "/orders"},
		{"/a /", "/a"},
		{"api/v1/", "/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := service.SanitizeBasePath(tt.in); got != tt.want {
				t.Errorf("SanitizeBasePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeBasePath_Idempotent(t *testing.T) {
	inputs := []string{
		"", " ", "/", "//", "///", "a", "/a", "a/", "/a/", " /a/ ", "/a / ", "/a/ /",
		"\t/x/y/\n", "/ x", "x /", "/%20/", "/a//b//", " / / ",
	}
	for _, in := range inputs {
		once := service.SanitizeBasePath(in)
		twice := service.SanitizeBasePath(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if !strings.HasPrefix(once, "/") {
			t.Errorf("SanitizeBasePath(%q) = %q, missing leading separator", in, once)
		}
		if len(once) > 1 && strings.HasSuffix(once, "/") {
			t.Errorf("SanitizeBasePath(%q) = %q, has trailing separator", in, once)
		}
	}
}

func TestDiscoverBasePath(t *testing.T) {
	tests := []struct {
		name      string
		service   string
		attribute string
		want      string
	}{
		{"no attribute", "orders", "", "/orders"},
		{"blank attribute", "orders", "  ", "/orders"},
		{"declared", "orders", "shop/orders/", "/shop/orders"},
		{"root", "orders", "/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.DiscoverBasePath(tt.service, tt.attribute); got != tt.want {
				t.Errorf("DiscoverBasePath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	svc, err := service.Build(service.Definition{
		Name:     "orders",
		BasePath: "/orders",
		Handlers: []resource.Handler{
			handler("getItem", "/items/{id}", "GET"),
			handler("createItem", "/items", "POST", "PUT"),
		},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if svc.BasePath != "/orders" {
		t.Errorf("BasePath = %q", svc.BasePath)
	}
	if len(svc.Resources) != 2 {
		t.Fatalf("got %d resources, want 2", len(svc.Resources))
	}
	if !slices.Equal(svc.AllowedMethods, []string{"GET", "POST", "PUT"}) {
		t.Errorf("AllowedMethods = %v, want [GET POST PUT]", svc.AllowedMethods)
	}

	params := make(map[string]string)
	res, ok := svc.Match("/items/42", params)
	if !ok || res.Name != "getItem" {
		t.Fatalf("Match = %v, %v", res, ok)
	}
	if params["id"] != "42" {
		t.Errorf("id = %q, want 42", params["id"])
	}

	if r, ok := svc.Resource("createItem"); !ok || r.Path != "/items" {
		t.Errorf("Resource(createItem) = %v, %v", r, ok)
	}
}

func TestBuild_AllowedMethodsWithUnrestrictedResource(t *testing.T) {
	svc, err := service.Build(service.Definition{
		Name:     "misc",
		Handlers: []resource.Handler{{Name: "any"}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, m := range cors.StandardMethods {
		if !svc.AllowsMethod(m) {
			t.Errorf("expected %s in AllowedMethods %v", m, svc.AllowedMethods)
		}
	}
	if svc.BasePath != "/misc" {
		t.Errorf("BasePath = %q, want /misc", svc.BasePath)
	}
}

func TestBuild_DecodesBasePath(t *testing.T) {
	svc, err := service.Build(service.Definition{Name: "s", BasePath: "/my%20shop/"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if svc.BasePath != "/my shop" {
		t.Errorf("BasePath = %q, want \"/my shop\"", svc.BasePath)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		def    service.Definition
		target any
	}{
		{
			name:   "bad base path encoding",
			def:    service.Definition{Name: "s", BasePath: "/bad%zz"},
			target: new(*routeerr.ConfigError),
		},
		{
			name: "malformed template",
			def: service.Definition{Name: "s", Handlers: []resource.Handler{
				handler("broken", "/items/{id"),
			}},
			target: new(*routeerr.RouteTemplateError),
		},
		{
			name: "duplicate template",
			def: service.Definition{Name: "s", Handlers: []resource.Handler{
				handler("a", "/items/{id}"),
				handler("b", "/items/{key}"),
			}},
			target: new(*routeerr.RouteTemplateError),
		},
		{
			name: "ambiguous config",
			def: service.Definition{Name: "s", Handlers: []resource.Handler{
				{Name: "dup", Configs: []resource.Config{{}, {}}},
			}},
			target: new(*routeerr.ConfigError),
		},
		{
			name: "unbindable parameter",
			def: service.Definition{Name: "s", Handlers: []resource.Handler{
				{Name: "p", Params: []resource.Param{{Name: "payload", Kind: resource.KindJSON}}},
			}},
			target: new(*routeerr.SignatureError),
		},
		{
			name: "malformed media type",
			def: service.Definition{Name: "s", Handlers: []resource.Handler{
				{Name: "m", Configs: []resource.Config{{Produces: []string{"json"}}}},
			}},
			target: new(*routeerr.MalformedMediaTypeError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Build(tt.def)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.As(err, tt.target) {
				t.Errorf("error %v (%T) does not match %T", err, err, tt.target)
			}
			if !service.IsConfigError(err) {
				t.Errorf("IsConfigError(%v) = false", err)
			}
		})
	}
}

func TestRouteTemplateError_PreservesCause(t *testing.T) {
	_, err := service.Build(service.Definition{Name: "s", Handlers: []resource.Handler{
		handler("broken", "/items/{id"),
	}})
	if err == nil || !strings.Contains(err.Error(), "unbalanced braces") {
		t.Errorf("error = %v, want cause message preserved", err)
	}
}

func TestWithDeployment(t *testing.T) {
	svc, err := service.Build(service.Definition{Name: "s"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stamped := svc.WithDeployment("dep-1", at)

	if stamped.DeploymentID != "dep-1" || !stamped.DeployedAt.Equal(at) {
		t.Errorf("stamped = %+v", stamped)
	}
	if svc.DeploymentID != "" {
		t.Error("original service was modified")
	}
}
