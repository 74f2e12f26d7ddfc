// Package http provides the HTTP transport: the gateway that dispatches
// requests to deployed services, the admin API and the front router.
package http

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/artpar/svcroute/domain/dispatch"
	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/pkg/jsonapi"
	"github.com/artpar/svcroute/ports"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// DefaultMaxBodyBytes bounds request bodies when GatewayConfig leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// GatewayConfig holds optional gateway collaborators.
type GatewayConfig struct {
	Metrics      ports.RoutingMetrics
	MaxBodyBytes int64
}

// Gateway resolves requests to a deployed service, dispatches them to one of
// its resources and invokes the implementation bound to that resource.
type Gateway struct {
	resolver ports.ServiceResolver
	handlers ports.HandlerLookup
	metrics  ports.RoutingMetrics
	logger   zerolog.Logger
	maxBody  int64
}

// NewGateway creates a gateway.
func NewGateway(resolver ports.ServiceResolver, handlers ports.HandlerLookup, logger zerolog.Logger, cfg GatewayConfig) *Gateway {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Gateway{
		resolver: resolver,
		handlers: handlers,
		metrics:  cfg.Metrics,
		logger:   logger.With().Str("component", "gateway").Logger(),
		maxBody:  maxBody,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	svc, sub, ok := g.resolver.Lookup(r.URL.Path)
	if !ok {
		g.record("", ports.OutcomeNoService, start)
		writeError(w, r, jsonapi.ErrNotFound("no service deployed for "+r.URL.Path))
		return
	}
	// the dispatch tree matches escaped segments
	sub = (&url.URL{Path: sub}).EscapedPath()

	origin := r.Header.Get("Origin")
	if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
		g.preflight(w, r, svc, sub, origin, start)
		return
	}

	m, err := dispatch.Dispatch(svc, r.Method, sub, r.URL.RawQuery)
	if err != nil {
		g.noResource(w, r, svc, sub, err, start)
		return
	}
	res := m.Resource

	if origin != "" && res.Cors != nil {
		for k, v := range res.Cors.ActualHeaders(origin) {
			w.Header()[k] = v
		}
	}

	values, jerr := bindArgs(r, res, m.Args, g.maxBody)
	if jerr != nil {
		g.record(svc.Name, ports.OutcomeBindError, start)
		writeError(w, r, *jerr)
		return
	}

	h, ok := g.handlers.Handler(res)
	if !ok {
		g.record(svc.Name, ports.OutcomeMatched, start)
		g.logger.Warn().
			Str("resource", res.QualifiedName()).
			Str("target", res.Target.Kind).
			Msg("no handler bound to resource")
		writeError(w, r, jsonapi.ErrNotImplemented("handler "+res.Target.Kind))
		return
	}

	g.logger.Debug().
		Str("service", svc.Name).
		Str("resource", res.Name).
		Str("method", r.Method).
		Str("sub_path", sub).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request dispatched")

	h.ServeResource(w, ports.Invocation{
		Service:  svc,
		Resource: res,
		Args:     m.Args,
		Values:   values,
		Request:  r,
	})
	g.record(svc.Name, ports.OutcomeMatched, start)
}

// preflight answers a CORS preflight from the policy of the resource that
// would serve the requested method.
func (g *Gateway) preflight(w http.ResponseWriter, r *http.Request, svc *service.Service, sub, origin string, start time.Time) {
	method := r.Header.Get("Access-Control-Request-Method")
	m, err := dispatch.Dispatch(svc, method, sub, r.URL.RawQuery)
	if err != nil {
		if dispatch.MethodsFor(svc, sub) == nil {
			g.record(svc.Name, ports.OutcomeNoResource, start)
			writeError(w, r, jsonapi.ErrNotFound("no resource matches "+sub))
			return
		}
		g.record(svc.Name, ports.OutcomePreflight, start)
		writeCorsRejected(w, r, origin)
		return
	}

	headers := m.Resource.Cors.PreflightHeaders(origin, method, requestedHeaders(r))
	if headers == nil {
		g.record(svc.Name, ports.OutcomePreflight, start)
		writeCorsRejected(w, r, origin)
		return
	}
	for k, v := range headers {
		w.Header()[k] = v
	}
	g.record(svc.Name, ports.OutcomePreflight, start)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) noResource(w http.ResponseWriter, r *http.Request, svc *service.Service, sub string, err error, start time.Time) {
	var nmErr *routeerr.NoMatchingResourceError
	if !errors.As(err, &nmErr) {
		g.logger.Error().Err(err).Str("service", svc.Name).Msg("dispatch failed")
		writeError(w, r, jsonapi.ErrInternal("dispatch failed"))
		return
	}

	methods := dispatch.MethodsFor(svc, sub)
	if r.Method == http.MethodOptions {
		if methods == nil {
			methods = svc.AllowedMethods
		}
		g.record(svc.Name, ports.OutcomePreflight, start)
		w.Header().Set("Allow", allowHeader(methods))
		w.WriteHeader(http.StatusOK)
		return
	}
	if methods != nil {
		g.record(svc.Name, ports.OutcomeMethodNotAllowed, start)
		jsonapi.WriteMethodNotAllowed(w, r.Method, withOptions(methods))
		return
	}

	g.record(svc.Name, ports.OutcomeNoResource, start)
	writeError(w, r, jsonapi.NewError(http.StatusNotFound, "no_matching_resource", "No Matching Resource").
		Detail(nmErr.Error()).
		Meta("service", svc.Name).
		Build())
}

func (g *Gateway) record(svc string, outcome ports.DispatchOutcome, start time.Time) {
	if g.metrics != nil {
		g.metrics.Dispatched(svc, outcome, time.Since(start))
	}
}

func writeCorsRejected(w http.ResponseWriter, r *http.Request, origin string) {
	writeError(w, r, jsonapi.NewError(http.StatusForbidden, "cors_rejected", "CORS Request Rejected").
		Detailf("cross-origin request from %q is not allowed", origin).
		Header("Origin").
		Build())
}

// writeError tags the error with the request ID so clients can quote it.
func writeError(w http.ResponseWriter, r *http.Request, e jsonapi.Error) {
	if e.ID == "" {
		e.ID = middleware.GetReqID(r.Context())
	}
	jsonapi.WriteError(w, e)
}

func requestedHeaders(r *http.Request) []string {
	var out []string
	for _, v := range r.Header.Values("Access-Control-Request-Headers") {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

func withOptions(methods []string) []string {
	if slices.Contains(methods, http.MethodOptions) {
		return methods
	}
	out := append(slices.Clone(methods), http.MethodOptions)
	slices.Sort(out)
	return out
}

func allowHeader(methods []string) string {
	return strings.Join(withOptions(methods), ", ")
}
