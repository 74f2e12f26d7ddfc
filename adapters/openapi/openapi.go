// Package openapi renders an OpenAPI 3 document describing the services
// currently deployed in the registry.
package openapi

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/domain/uritemplate"
	"github.com/artpar/svcroute/pkg/jsonapi"
	"github.com/bytedance/sonic"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"
)

// Version of the OpenAPI specification emitted.
const Version = "3.0.3"

// wildcardParam names the path parameter standing in for a trailing "*".
const wildcardParam = "path"

// unrestrictedMethods are documented for resources accepting any method.
var unrestrictedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch,
}

// ServiceLister lists the deployed services.
type ServiceLister interface {
	Services() []*service.Service
}

// Generator builds documents from the live registry.
type Generator struct {
	services ServiceLister
	title    string
	version  string
	logger   zerolog.Logger
}

// NewGenerator creates a document generator.
func NewGenerator(services ServiceLister, title, version string, logger zerolog.Logger) *Generator {
	if version == "" {
		version = "dev"
	}
	return &Generator{
		services: services,
		title:    title,
		version:  version,
		logger:   logger.With().Str("component", "openapi").Logger(),
	}
}

// Document returns the OpenAPI document for the deployed services.
func (g *Generator) Document() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: Version,
		Info:    &openapi3.Info{Title: g.title, Version: g.version},
		Paths:   openapi3.NewPaths(),
	}

	services := g.services.Services()
	slices.SortFunc(services, func(a, b *service.Service) int { return strings.Compare(a.Name, b.Name) })

	for _, svc := range services {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: svc.Name})
		for _, res := range svc.Resources {
			path, pathVars := operationPath(svc.BasePath, res.Path)
			methods := res.Methods
			if methods == nil {
				methods = unrestrictedMethods
			}
			for _, method := range methods {
				op := buildOperation(svc, res, pathVars)
				op.OperationID = operationID(svc, res, method, len(methods) > 1)
				if !acceptsBody(method) {
					op.RequestBody = nil
				}
				doc.AddOperation(path, method, op)
			}
		}
	}
	return doc
}

// ServeHTTP writes the document as JSON.
func (g *Generator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := sonic.ConfigStd.Marshal(g.Document())
	if err != nil {
		g.logger.Error().Err(err).Msg("encode openapi document")
		jsonapi.WriteError(w, jsonapi.ErrInternal("encode openapi document"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Validate builds the document and checks it against the OpenAPI rules.
func (g *Generator) Validate(ctx context.Context) error {
	return g.Document().Validate(ctx)
}

// operationPath joins the base path and the path part of a resource
// template. A trailing wildcard becomes the {path} parameter.
func operationPath(basePath, resourcePath string) (string, []string) {
	pathPart, _, _ := strings.Cut(resourcePath, "?")
	vars := uritemplate.Variables(pathPart)

	pathPart = strings.TrimSuffix(pathPart, "/")
	if rest, ok := strings.CutSuffix(pathPart, "/*"); ok || pathPart == "*" {
		pathPart = rest + "/{" + wildcardParam + "}"
		vars = append(vars, wildcardParam)
	}

	full := strings.TrimSuffix(basePath, "/") + pathPart
	if full == "" {
		full = "/"
	}
	return full, vars
}

func operationID(svc *service.Service, res *resource.Resource, method string, perMethod bool) string {
	id := svc.Name + "." + res.Name
	if perMethod {
		id += "." + strings.ToLower(method)
	}
	return id
}

func buildOperation(svc *service.Service, res *resource.Resource, pathVars []string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Tags = []string{svc.Name}
	op.Summary = res.QualifiedName()

	declared := make(map[string]bool, len(res.Signature.Bindings))
	for _, b := range res.Signature.Bindings {
		declared[b.Param.Name] = true
		schema := schemaFor(b.Param.Kind)

		switch {
		case b.Source == resource.SourceBody:
			consumes := res.Consumes
			if len(consumes) == 0 {
				consumes = []string{"application/json"}
			}
			op.RequestBody = &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(false).
					WithContent(openapi3.NewContentWithSchema(schema, consumes)),
			}
		case b.Source == resource.SourceHeader:
			op.AddParameter(openapi3.NewHeaderParameter(b.Param.Name).WithSchema(schema))
		case slices.Contains(pathVars, b.Param.Name):
			op.AddParameter(openapi3.NewPathParameter(b.Param.Name).WithSchema(schema))
		default:
			op.AddParameter(openapi3.NewQueryParameter(b.Param.Name).WithSchema(schema))
		}
	}

	// every template variable must be documented
	for _, v := range pathVars {
		if !declared[v] {
			op.AddParameter(openapi3.NewPathParameter(v).WithSchema(openapi3.NewStringSchema()))
		}
	}

	produces := res.Produces
	if len(produces) == 0 {
		produces = []string{"application/json"}
	}
	op.Responses = openapi3.NewResponses(openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription("Handled by " + res.QualifiedName()).
			WithContent(openapi3.NewContentWithSchema(openapi3.NewSchema(), produces)),
	}))
	op.Responses.Set("default", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription("JSON:API error document").
			WithContent(openapi3.NewContentWithSchema(openapi3.NewObjectSchema(), []string{jsonapi.ContentType})),
	})
	return op
}

func schemaFor(kind resource.Kind) *openapi3.Schema {
	switch kind {
	case resource.KindInt:
		return openapi3.NewInt64Schema()
	case resource.KindFloat:
		return openapi3.NewFloat64Schema()
	case resource.KindBoolean:
		return openapi3.NewBoolSchema()
	case resource.KindJSON:
		return openapi3.NewSchema()
	case resource.KindBytes:
		return openapi3.NewStringSchema().WithFormat("binary")
	default:
		return openapi3.NewStringSchema()
	}
}

func acceptsBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}
