// Package service groups resources under a base path and builds the
// URI-template dispatch tree used to select a resource for a sub-path.
package service

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/artpar/svcroute/domain/cors"
	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/uritemplate"
)

// Definition is the resolved declarative configuration of a service.
type Definition struct {
	Name     string
	BasePath string // raw base-path attribute; blank means "/" + Name
	Cors     *cors.Policy
	Handlers []resource.Handler
}

// Service is a deployed service. It is immutable once published to a registry.
type Service struct {
	Name           string
	BasePath       string
	Resources      []*resource.Resource
	AllowedMethods []string
	Cors           *cors.Policy

	DeploymentID string
	DeployedAt   time.Time

	tree *uritemplate.Tree[*resource.Resource]
}

// Build resolves the base path, builds and validates every resource and
// inserts the resource paths into the dispatch tree. Any failure aborts the
// whole service.
func Build(def Definition) (*Service, error) {
	basePath, err := DecodeBasePath(def.Name, DiscoverBasePath(def.Name, def.BasePath))
	if err != nil {
		return nil, err
	}

	svc := &Service{
		Name:     def.Name,
		BasePath: basePath,
		Cors:     def.Cors,
		tree:     uritemplate.New[*resource.Resource](),
	}

	for _, h := range def.Handlers {
		res, err := resource.Build(h, def.Name, def.Cors)
		if err != nil {
			return nil, fmt.Errorf("build resource %s.%s: %w", def.Name, h.Name, err)
		}
		if err := res.PrepareSignature(); err != nil {
			return nil, err
		}
		if err := svc.tree.Insert(res.Path, res); err != nil {
			return nil, &routeerr.RouteTemplateError{
				Service:  def.Name,
				Resource: res.Name,
				Pattern:  res.Path,
				Err:      err,
			}
		}
		svc.Resources = append(svc.Resources, res)
	}

	svc.AllowedMethods = allowedMethods(svc.Resources)
	return svc, nil
}

// Match selects the resource whose template matches key and writes the
// template variables to params.
func (s *Service) Match(key string, params map[string]string) (*resource.Resource, bool) {
	if s.tree == nil {
		return nil, false
	}
	return s.tree.Match(key, params)
}

// Resource returns the resource with the given name.
func (s *Service) Resource(name string) (*resource.Resource, bool) {
	for _, r := range s.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// AllowsMethod reports whether any resource of the service accepts method.
func (s *Service) AllowsMethod(method string) bool {
	return slices.Contains(s.AllowedMethods, method)
}

// WithDeployment returns a copy stamped with deployment metadata.
func (s *Service) WithDeployment(id string, at time.Time) *Service {
	c := *s
	c.DeploymentID = id
	c.DeployedAt = at
	return &c
}

// allowedMethods is the union of resource methods. A resource without
// declared methods contributes the standard method set.
func allowedMethods(resources []*resource.Resource) []string {
	set := make(map[string]struct{})
	for _, r := range resources {
		methods := r.Methods
		if methods == nil {
			methods = cors.StandardMethods
		}
		for _, m := range methods {
			set[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// IsConfigError reports whether err is a registration-time configuration
// problem (as opposed to a storage or transport failure).
func IsConfigError(err error) bool {
	var (
		cfgErr   *routeerr.ConfigError
		tmplErr  *routeerr.RouteTemplateError
		sigErr   *routeerr.SignatureError
		mediaErr *routeerr.MalformedMediaTypeError
	)
	return errors.As(err, &cfgErr) ||
		errors.As(err, &tmplErr) ||
		errors.As(err, &sigErr) ||
		errors.As(err, &mediaErr)
}
