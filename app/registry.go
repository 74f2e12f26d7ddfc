// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/ports"
	"github.com/rs/zerolog"
)

// Registry holds the deployed services keyed by base path.
//
// Readers load an immutable snapshot and never block. Writers build a new
// snapshot under mu and swap it in, so a reader observes either the state
// before or after a registration, never a partial one.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[registrySnapshot]

	clock   ports.Clock
	ids     ports.IDGenerator
	metrics ports.RoutingMetrics
	logger  zerolog.Logger
}

type registrySnapshot struct {
	byBasePath map[string]*service.Service
	sorted     []string // descending length
}

// RegistryConfig contains optional registry collaborators.
type RegistryConfig struct {
	Metrics ports.RoutingMetrics
}

// NewRegistry creates an empty registry.
func NewRegistry(clock ports.Clock, ids ports.IDGenerator, logger zerolog.Logger, cfg RegistryConfig) *Registry {
	r := &Registry{
		clock:   clock,
		ids:     ids,
		metrics: cfg.Metrics,
		logger:  logger.With().Str("component", "registry").Logger(),
	}
	r.current.Store(&registrySnapshot{byBasePath: map[string]*service.Service{}})
	return r
}

// Register builds the service described by def and publishes it under its
// base path. A service already deployed under the same base path is
// replaced. Nothing is published when building fails.
func (r *Registry) Register(ctx context.Context, def service.Definition) (*service.Service, error) {
	svc, err := service.Build(def)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RegistrationFailed(def.Name)
		}
		r.logger.Error().Err(err).Str("service", def.Name).Msg("service deployment failed")
		return nil, fmt.Errorf("register service %s: %w", def.Name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svc = svc.WithDeployment(r.ids.New(), r.clock.Now())
	replaced := r.publish(svc)

	if replaced != nil {
		r.logger.Warn().
			Str("base_path", svc.BasePath).
			Str("service", svc.Name).
			Str("replaced", replaced.Name).
			Msg("base path already deployed, replacing service")
	}
	r.logger.Info().
		Str("service", svc.Name).
		Str("base_path", svc.BasePath).
		Int("resources", len(svc.Resources)).
		Str("deployment_id", svc.DeploymentID).
		Msg("service deployed")

	return svc, nil
}

func (r *Registry) publish(svc *service.Service) *service.Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	next := &registrySnapshot{
		byBasePath: maps.Clone(old.byBasePath),
		sorted:     slices.Clone(old.sorted),
	}

	replaced, exists := next.byBasePath[svc.BasePath]
	next.byBasePath[svc.BasePath] = svc
	if !exists {
		next.sorted = append(next.sorted, svc.BasePath)
		sortByLengthDesc(next.sorted)
	}
	r.current.Store(next)

	if r.metrics != nil {
		r.metrics.ServiceRegistered(svc.BasePath, exists)
		r.metrics.SetServicesDeployed(len(next.byBasePath))
	}
	return replaced
}

// Unregister removes the service deployed under basePath.
func (r *Registry) Unregister(ctx context.Context, basePath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	svc, ok := old.byBasePath[basePath]
	if !ok {
		return false
	}

	next := &registrySnapshot{
		byBasePath: maps.Clone(old.byBasePath),
		sorted:     slices.DeleteFunc(slices.Clone(old.sorted), func(k string) bool { return k == basePath }),
	}
	delete(next.byBasePath, basePath)
	r.current.Store(next)

	if r.metrics != nil {
		r.metrics.ServiceUnregistered(basePath)
		r.metrics.SetServicesDeployed(len(next.byBasePath))
	}
	r.logger.Info().
		Str("service", svc.Name).
		Str("base_path", basePath).
		Msg("service undeployed")
	return true
}

// Get returns the service deployed under exactly basePath.
func (r *Registry) Get(basePath string) (*service.Service, bool) {
	svc, ok := r.current.Load().byBasePath[basePath]
	return svc, ok
}

// Services returns the deployed services, most specific base path first.
func (r *Registry) Services() []*service.Service {
	snap := r.current.Load()
	out := make([]*service.Service, 0, len(snap.sorted))
	for _, k := range snap.sorted {
		out = append(out, snap.byBasePath[k])
	}
	return out
}

// BasePaths returns the deployed base paths in resolution order.
func (r *Registry) BasePaths() []string {
	return slices.Clone(r.current.Load().sorted)
}

// ResolveBasePath returns the most specific deployed base path for
// requestPath, falling back to the root base path when it is deployed.
func (r *Registry) ResolveBasePath(requestPath string) (string, bool) {
	return r.current.Load().resolve(requestPath)
}

// Lookup resolves requestPath to a service and the sub-path left after
// removing the base path.
func (r *Registry) Lookup(requestPath string) (*service.Service, string, bool) {
	snap := r.current.Load()
	basePath, ok := snap.resolve(requestPath)
	if !ok {
		return nil, "", false
	}
	return snap.byBasePath[basePath], subPath(requestPath, basePath), true
}

// resolve scans base paths longest first. A candidate is accepted when the
// request path contains it (case-insensitively, anywhere in the path) and
// the request path either ends at or has a separator right after the
// candidate's length.
func (s *registrySnapshot) resolve(requestPath string) (string, bool) {
	lowered := strings.ToLower(requestPath)
	for _, k := range s.sorted {
		if !strings.Contains(lowered, strings.ToLower(k)) {
			continue
		}
		if len(requestPath) <= len(k) {
			return k, true
		}
		if requestPath[len(k)] == '/' {
			return k, true
		}
	}
	if _, ok := s.byBasePath[service.Separator]; ok {
		return service.Separator, true
	}
	return "", false
}

func subPath(requestPath, basePath string) string {
	if basePath == service.Separator {
		return requestPath
	}
	if len(requestPath) <= len(basePath) {
		return ""
	}
	return requestPath[len(basePath):]
}

// sortByLengthDesc orders base paths longest first, keeping insertion
// order among equal lengths.
func sortByLengthDesc(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		return len(b) - len(a)
	})
}

var (
	_ ports.ServiceResolver = (*Registry)(nil)
	_ ports.ServiceDeployer = (*Registry)(nil)
)
