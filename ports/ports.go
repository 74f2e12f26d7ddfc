// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/service"
)

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ServiceStore persists service definitions deployed at runtime.
type ServiceStore interface {
	// List returns all stored definitions ordered by name.
	List(ctx context.Context) ([]service.Definition, error)

	// Get retrieves a definition by service name.
	Get(ctx context.Context, name string) (service.Definition, error)

	// Save creates or replaces a definition.
	Save(ctx context.Context, def service.Definition) error

	// Delete removes a definition.
	Delete(ctx context.Context, name string) error
}

// -----------------------------------------------------------------------------
// Registry Ports
// -----------------------------------------------------------------------------

// ServiceResolver resolves request paths to deployed services.
type ServiceResolver interface {
	// Lookup returns the service owning requestPath and the remaining sub-path.
	Lookup(requestPath string) (*service.Service, string, bool)
}

// ServiceDeployer deploys and undeploys services at runtime.
type ServiceDeployer interface {
	Register(ctx context.Context, def service.Definition) (*service.Service, error)
	Unregister(ctx context.Context, basePath string) bool
	Services() []*service.Service
}

// -----------------------------------------------------------------------------
// Handler Binding Ports
// -----------------------------------------------------------------------------

// Invocation is a dispatched request with its arguments bound to the
// resource signature.
type Invocation struct {
	Service  *service.Service
	Resource *resource.Resource
	Args     map[string]string // raw path and query arguments
	Values   map[string]any    // typed values per signature parameter
	Request  *http.Request
}

// ResourceHandler serves a dispatched request.
type ResourceHandler interface {
	ServeResource(w http.ResponseWriter, inv Invocation)
}

// ResourceHandlerFunc adapts a function to ResourceHandler.
type ResourceHandlerFunc func(w http.ResponseWriter, inv Invocation)

// ServeResource calls f(w, inv).
func (f ResourceHandlerFunc) ServeResource(w http.ResponseWriter, inv Invocation) {
	f(w, inv)
}

// HandlerLookup finds the implementation bound to a resource target.
type HandlerLookup interface {
	Handler(res *resource.Resource) (ResourceHandler, bool)
}

// -----------------------------------------------------------------------------
// Metrics Ports
// -----------------------------------------------------------------------------

// DispatchOutcome labels the result of routing a request.
type DispatchOutcome string

const (
	OutcomeMatched          DispatchOutcome = "matched"
	OutcomeNoService        DispatchOutcome = "no_service"
	OutcomeNoResource       DispatchOutcome = "no_resource"
	OutcomeMethodNotAllowed DispatchOutcome = "method_not_allowed"
	OutcomePreflight        DispatchOutcome = "preflight"
	OutcomeBindError        DispatchOutcome = "bind_error"
)

// RoutingMetrics records registry and dispatch events.
type RoutingMetrics interface {
	ServiceRegistered(basePath string, replaced bool)
	ServiceUnregistered(basePath string)
	RegistrationFailed(service string)
	Dispatched(service string, outcome DispatchOutcome, d time.Duration)
	SetServicesDeployed(n int)
}
