package openapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artpar/svcroute/adapters/clock"
	"github.com/artpar/svcroute/adapters/idgen"
	"github.com/artpar/svcroute/adapters/openapi"
	"github.com/artpar/svcroute/app"
	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/service"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"
)

func strPtr(s string) *string { return &s }

func setupGenerator(t *testing.T) *openapi.Generator {
	t.Helper()
	reg := app.NewRegistry(clock.NewStepping(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), time.Second), idgen.NewCounter("dep-"), zerolog.Nop(), app.RegistryConfig{})

	defs := []service.Definition{
		{
			Name:     "orders",
			BasePath: "/orders",
			Handlers: []resource.Handler{
				{
					Name:    "getItem",
					Params:  []resource.Param{{Name: "id", Kind: resource.KindInt}, {Name: "verbose", Kind: resource.KindBoolean}},
					Configs: []resource.Config{{Path: strPtr("/items/{id}"), Methods: []string{"GET"}}},
				},
				{
					Name:    "createItem",
					Params:  []resource.Param{{Name: "item", Kind: resource.KindJSON}, {Name: "X-Tenant", Header: true}},
					Configs: []resource.Config{{Path: strPtr("/items"), Methods: []string{"POST", "PUT"}, Consumes: []string{"application/json"}, Body: "item"}},
				},
				{
					Name:    "search",
					Configs: []resource.Config{{Path: strPtr("/search/{kind}?q={term}"), Methods: []string{"GET"}}},
				},
			},
		},
		{
			Name:     "files",
			BasePath: "/",
			Handlers: []resource.Handler{
				{Name: "serve", Configs: []resource.Config{{Path: strPtr("/static/*")}}},
			},
		},
	}
	for _, def := range defs {
		if _, err := reg.Register(context.Background(), def); err != nil {
			t.Fatalf("Register(%s) failed: %v", def.Name, err)
		}
	}
	return openapi.NewGenerator(reg, "svcroute", "1.0.0", zerolog.Nop())
}

func TestDocument_Validates(t *testing.T) {
	g := setupGenerator(t)
	if err := g.Validate(context.Background()); err != nil {
		t.Fatalf("document does not validate: %v", err)
	}
}

func TestDocument_Operations(t *testing.T) {
	doc := setupGenerator(t).Document()

	get := doc.Paths.Find("/orders/items/{id}")
	if get == nil || get.Get == nil {
		t.Fatalf("missing GET /orders/items/{id}, paths = %v", doc.Paths.InMatchingOrder())
	}
	if get.Get.OperationID != "orders.getItem" {
		t.Errorf("operationId = %q", get.Get.OperationID)
	}
	id := get.Get.Parameters.GetByInAndName(openapi3.ParameterInPath, "id")
	if id == nil || !id.Schema.Value.Type.Is(openapi3.TypeInteger) {
		t.Errorf("id parameter = %+v", id)
	}
	if q := get.Get.Parameters.GetByInAndName(openapi3.ParameterInQuery, "verbose"); q == nil {
		t.Error("verbose should be a query parameter")
	}

	items := doc.Paths.Find("/orders/items")
	if items == nil || items.Post == nil || items.Put == nil {
		t.Fatal("missing POST and PUT /orders/items")
	}
	if items.Post.OperationID != "orders.createItem.post" || items.Put.OperationID != "orders.createItem.put" {
		t.Errorf("operationIds = %q, %q", items.Post.OperationID, items.Put.OperationID)
	}
	if items.Post.RequestBody == nil || items.Post.RequestBody.Value.Content.Get("application/json") == nil {
		t.Error("POST should document an application/json body")
	}
	if h := items.Post.Parameters.GetByInAndName(openapi3.ParameterInHeader, "X-Tenant"); h == nil {
		t.Error("X-Tenant should be a header parameter")
	}

	search := doc.Paths.Find("/orders/search/{kind}")
	if search == nil || search.Get == nil {
		t.Fatal("query template should be stripped from the path")
	}
	if p := search.Get.Parameters.GetByInAndName(openapi3.ParameterInPath, "kind"); p == nil {
		t.Error("undeclared template variable kind should be documented")
	}

	static := doc.Paths.Find("/static/{path}")
	if static == nil || static.Get == nil || static.Delete == nil {
		t.Fatal("wildcard resource without methods should document the unrestricted methods")
	}
	if static.Get.RequestBody != nil {
		t.Error("GET operations should not document a request body")
	}
}

func TestGenerator_ServeHTTP(t *testing.T) {
	g := setupGenerator(t)

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	loaded, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("load served document: %v", err)
	}
	if loaded.Info.Title != "svcroute" || loaded.OpenAPI != openapi.Version {
		t.Errorf("info = %+v, openapi = %q", loaded.Info, loaded.OpenAPI)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tags, _ := raw["tags"].([]any); len(tags) != 2 {
		t.Errorf("tags = %v", raw["tags"])
	}
}
