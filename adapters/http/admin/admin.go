// Package admin provides the runtime administration API: listing, deploying
// and undeploying services, and resolving request paths against the live
// registry.
package admin

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/svcroute/app"
	"github.com/artpar/svcroute/config"
	"github.com/artpar/svcroute/domain/dispatch"
	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/pkg/jsonapi"
	"github.com/artpar/svcroute/ports"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// JSON:API resource types.
const (
	TypeService    = "services"
	TypeResolution = "resolutions"
)

const maxDefinitionBytes = 1 << 20

// Handler serves the admin API.
type Handler struct {
	deployments *app.DeploymentService
	token       string
	basePath    string
	logger      zerolog.Logger
}

// Deps contains dependencies for the admin handler.
type Deps struct {
	Deployments *app.DeploymentService
	Token       string // bearer token; empty disables authentication
	BasePath    string // mount point, used for resource links
	Logger      zerolog.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		deployments: deps.Deployments,
		token:       deps.Token,
		basePath:    strings.TrimSuffix(deps.BasePath, "/"),
		logger:      deps.Logger.With().Str("component", "admin").Logger(),
	}
}

// Router returns the admin routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	if h.token != "" {
		r.Use(h.AuthMiddleware)
	}

	r.Get("/services", h.ListServices)
	r.Post("/services", h.DeployService)
	r.Get("/services/{name}", h.GetService)
	r.Delete("/services/{name}", h.UndeployService)
	r.Get("/resolve", h.Resolve)
	return r
}

// AuthMiddleware requires "Authorization: Bearer <token>".
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
			jsonapi.WriteError(w, jsonapi.ErrUnauthorized("a valid bearer token is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListServices returns every deployed service, most specific base path first.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services := h.deployments.Registry().Services()
	out := make([]jsonapi.Resource, 0, len(services))
	for _, svc := range services {
		out = append(out, h.serviceResource(svc))
	}
	jsonapi.WriteCollection(w, http.StatusOK, out)
}

// GetService returns the deployed service called name.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, ok := h.findService(name)
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("service "+name+" is not deployed"))
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, h.serviceResource(svc))
}

// DeployService registers the posted service declaration and persists it.
func (h *Handler) DeployService(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDefinitionBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonapi.WriteError(w, jsonapi.ErrPayloadTooLarge(maxDefinitionBytes))
			return
		}
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("read request body: "+err.Error()))
		return
	}

	var sc config.ServiceConfig
	if err := sonic.ConfigStd.Unmarshal(body, &sc); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("invalid service declaration: "+err.Error()))
		return
	}
	if sc.Name == "" {
		jsonapi.WriteError(w, jsonapi.ErrValidation("name", "name is required"))
		return
	}
	if err := sc.Validate(); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrValidation("resources", err.Error()))
		return
	}

	svc, err := h.deployments.Deploy(r.Context(), sc.Definition())
	if err != nil {
		if svc == nil {
			jsonapi.WriteError(w, registrationError(err))
			return
		}
		// deployed but not persisted
		h.logger.Error().Err(err).Str("service", sc.Name).Msg("service deployed without persistence")
	}

	h.logger.Info().
		Str("service", svc.Name).
		Str("base_path", svc.BasePath).
		Msg("service deployed via admin API")
	jsonapi.WriteCreated(w, h.serviceResource(svc), h.serviceURL(svc.Name))
}

// UndeployService removes the service called name from the registry and store.
func (h *Handler) UndeployService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.deployments.Undeploy(r.Context(), name); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			jsonapi.WriteError(w, jsonapi.ErrNotFound("service "+name+" is not deployed"))
			return
		}
		h.logger.Error().Err(err).Str("service", name).Msg("undeploy failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal("undeploy failed"))
		return
	}
	jsonapi.WriteNoContent(w)
}

// Resolve reports which service and resource would serve ?method=&path=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	if method == "" {
		method = http.MethodGet
	}
	target := r.URL.Query().Get("path")
	if target == "" {
		jsonapi.WriteError(w, jsonapi.ErrInvalidParameter("path", "path is required"))
		return
	}

	res, err := Resolve(h.deployments.Registry(), method, target)
	if err != nil {
		var nmErr *routeerr.NoMatchingResourceError
		switch {
		case errors.Is(err, ports.ErrNotFound):
			jsonapi.WriteError(w, jsonapi.ErrNotFound("no service deployed for "+target))
		case errors.As(err, &nmErr):
			jsonapi.WriteError(w, jsonapi.ErrNotFound(nmErr.Error()))
		default:
			jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
		}
		return
	}

	jsonapi.WriteResource(w, http.StatusOK, jsonapi.NewResource(TypeResolution, res.Service+"."+res.Resource).
		Attr("method", method).
		Attr("path", target).
		Attr("service", res.Service).
		Attr("base_path", res.BasePath).
		Attr("resource", res.Resource).
		Attr("sub_path", res.SubPath).
		Attr("args", res.Args).
		Build())
}

func (h *Handler) findService(name string) (*service.Service, bool) {
	for _, svc := range h.deployments.Registry().Services() {
		if svc.Name == name {
			return svc, true
		}
	}
	return nil, false
}

func registrationError(err error) jsonapi.Error {
	if service.IsConfigError(err) {
		return jsonapi.NewError(http.StatusUnprocessableEntity, "invalid_service", "Invalid Service").
			Detail(err.Error()).
			Build()
	}
	return jsonapi.ErrInternal(err.Error())
}

func (h *Handler) serviceURL(name string) string {
	return h.basePath + "/services/" + url.PathEscape(name)
}

func (h *Handler) serviceResource(svc *service.Service) jsonapi.Resource {
	resources := make([]map[string]any, 0, len(svc.Resources))
	for _, res := range svc.Resources {
		entry := map[string]any{
			"name":    res.Name,
			"path":    res.Path,
			"methods": res.Methods,
			"handler": res.Target.Kind,
		}
		if len(res.Consumes) > 0 {
			entry["consumes"] = res.Consumes
		}
		if len(res.Produces) > 0 {
			entry["produces"] = res.Produces
		}
		resources = append(resources, entry)
	}

	return jsonapi.NewResource(TypeService, svc.Name).
		Self(h.serviceURL(svc.Name)).
		Attr("name", svc.Name).
		Attr("base_path", svc.BasePath).
		Attr("allowed_methods", svc.AllowedMethods).
		Attr("resources", resources).
		Meta("deployment_id", svc.DeploymentID).
		Meta("deployed_at", svc.DeployedAt.Format(time.RFC3339)).
		Build()
}

// Resolution is the outcome of resolving a request against a registry.
type Resolution struct {
	Service  string
	BasePath string
	Resource string
	SubPath  string
	Args     map[string]string
}

// Resolve runs the gateway's resolution for method and target, a path with
// an optional query, without serving anything. It returns ports.ErrNotFound
// when no service owns the path.
func Resolve(resolver ports.ServiceResolver, method, target string) (*Resolution, error) {
	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", rawPath, err)
	}
	svc, sub, ok := resolver.Lookup(path)
	if !ok {
		return nil, ports.ErrNotFound
	}
	sub = (&url.URL{Path: sub}).EscapedPath()
	m, err := dispatch.Dispatch(svc, method, sub, rawQuery)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Service:  svc.Name,
		BasePath: svc.BasePath,
		Resource: m.Resource.Name,
		SubPath:  sub,
		Args:     m.Args,
	}, nil
}
