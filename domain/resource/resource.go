// Package resource provides the per-handler descriptor: the sub-path
// template, accepted methods, media types, body binding, CORS policy and
// validated parameter bindings of a single request handler.
package resource

import (
	"slices"
	"strings"

	"github.com/artpar/svcroute/domain/cors"
	"github.com/artpar/svcroute/domain/routeerr"
)

// DefaultPath is used when a resource declares an empty path.
const DefaultPath = "/"

// Config is the declarative configuration of a resource.
// A nil Path means "use the handler name"; nil Methods means "all methods".
type Config struct {
	Path     *string
	Methods  []string
	Consumes []string
	Produces []string
	Body     string // name of the parameter bound to the request body
	Cors     *cors.Policy
}

// Handler is a handler declaration as produced by the configuration stage.
// More than one entry in Configs is ambiguous and rejected by Build.
type Handler struct {
	Name    string
	Params  []Param
	Configs []Config
	Target  Target
}

// Target names the implementation serving a handler and its options,
// e.g. {Kind: "static", Options: {"body": "ok"}}.
type Target struct {
	Kind    string
	Options map[string]string
}

// Resource describes one request handler of a service (immutable after
// registration).
type Resource struct {
	Name                string
	ServiceName         string
	Path                string
	Methods             []string
	Consumes            []string
	Produces            []string
	ProducesSubtypes    []string
	EntityBodyAttribute string
	Cors                *cors.Policy
	Signature           SignatureParams
	Target              Target

	params []Param
}

// Build creates a resource from its handler declaration. serviceCors is the
// policy inherited when the resource declares none.
func Build(h Handler, serviceName string, serviceCors *cors.Policy) (*Resource, error) {
	if len(h.Configs) > 1 {
		return nil, &routeerr.ConfigError{
			Service:  serviceName,
			Resource: h.Name,
			Reason:   "multiple resource configurations found",
		}
	}

	r := &Resource{
		Name:        h.Name,
		ServiceName: serviceName,
		Target:      h.Target,
		params:      slices.Clone(h.Params),
	}

	if len(h.Configs) == 0 {
		r.SetPath(nil)
		r.Cors = cors.ResolveResource(nil, serviceCors, nil)
		return r, nil
	}

	cfg := h.Configs[0]
	r.SetPath(cfg.Path)
	// An empty method list means every method, the same as an absent one.
	if len(cfg.Methods) > 0 {
		r.Methods = slices.Clone(cfg.Methods)
	}
	r.Consumes = slices.Clone(cfg.Consumes)
	if err := r.SetProduces(cfg.Produces); err != nil {
		return nil, err
	}
	r.EntityBodyAttribute = strings.TrimSpace(cfg.Body)
	r.Cors = cors.ResolveResource(cfg.Cors.Clone(), serviceCors, r.Methods)

	return r, nil
}

// SetPath sets the sub-path template, defaulting to the resource name
// when nil and to DefaultPath when empty.
func (r *Resource) SetPath(path *string) {
	if path == nil {
		r.Path = r.Name
	} else {
		r.Path = *path
	}
	if r.Path == "" {
		r.Path = DefaultPath
	}
}

// SetProduces sets the produced media types and recomputes ProducesSubtypes.
func (r *Resource) SetProduces(produces []string) error {
	subtypes, err := mediaTypePrefixes(produces)
	if err != nil {
		return err
	}
	r.Produces = slices.Clone(produces)
	r.ProducesSubtypes = subtypes
	return nil
}

// AllowsMethod reports whether the resource accepts method. The comparison
// is exact; a resource without declared methods accepts every method.
func (r *Resource) AllowsMethod(method string) bool {
	if r.Methods == nil {
		return true
	}
	return slices.Contains(r.Methods, method)
}

// Params returns the declared handler parameters.
func (r *Resource) Params() []Param {
	return r.params
}

// QualifiedName returns "service.resource".
func (r *Resource) QualifiedName() string {
	return r.ServiceName + "." + r.Name
}

// mediaTypePrefixes returns the distinct "type" parts of type/subtype
// media types, in declaration order.
func mediaTypePrefixes(mediaTypes []string) ([]string, error) {
	if mediaTypes == nil {
		return nil, nil
	}
	out := make([]string, 0, len(mediaTypes))
	for _, mt := range mediaTypes {
		prefix, _, ok := strings.Cut(strings.TrimSpace(mt), "/")
		if !ok {
			return nil, &routeerr.MalformedMediaTypeError{MediaType: mt}
		}
		if !slices.Contains(out, prefix) {
			out = append(out, prefix)
		}
	}
	return out, nil
}
