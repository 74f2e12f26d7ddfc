package jsonapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/svcroute/pkg/jsonapi"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return doc
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonapi.WriteError(rec, jsonapi.ErrInvalidParameter("id", "not an int"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != jsonapi.ContentType {
		t.Errorf("Content-Type = %s", ct)
	}

	doc := decode(t, rec)
	errs := doc["errors"].([]any)
	first := errs[0].(map[string]any)
	if first["code"] != "invalid_parameter" {
		t.Errorf("code = %v", first["code"])
	}
	if first["source"].(map[string]any)["parameter"] != "id" {
		t.Errorf("source = %v", first["source"])
	}
}

func TestWriteError_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonapi.WriteError(rec)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonapi.WriteMethodNotAllowed(rec, "DELETE", []string{"GET", "POST"})

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q, want \"GET, POST\"", got)
	}
}

func TestWriteCollection(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonapi.WriteCollection(rec, http.StatusOK, []jsonapi.Resource{
		jsonapi.NewResource("services", "orders").Attr("base_path", "/orders").Build(),
	})

	doc := decode(t, rec)
	data := doc["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("len(data) = %d", len(data))
	}
	res := data[0].(map[string]any)
	if res["type"] != "services" || res["id"] != "orders" {
		t.Errorf("resource = %v", res)
	}
	if doc["meta"].(map[string]any)["total"] != float64(1) {
		t.Errorf("meta = %v", doc["meta"])
	}
}

func TestWriteCollection_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonapi.WriteCollection(rec, http.StatusOK, nil)
	if _, ok := decode(t, rec)["data"].([]any); !ok {
		t.Errorf("data should be an array, body %s", rec.Body.String())
	}
}

func TestWriteCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	jsonapi.WriteCreated(rec, jsonapi.NewResource("services", "x").Build(), "/admin/services/x")
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Header().Get("Location") != "/admin/services/x" {
		t.Errorf("Location = %s", rec.Header().Get("Location"))
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err  jsonapi.Error
		want int
	}{
		{jsonapi.ErrBadRequest("x"), 400},
		{jsonapi.ErrUnauthorized(""), 401},
		{jsonapi.ErrNotFound("x"), 404},
		{jsonapi.ErrMethodNotAllowed("GET", nil), 405},
		{jsonapi.ErrConflict("x"), 409},
		{jsonapi.ErrPayloadTooLarge(10), 413},
		{jsonapi.ErrUnsupportedMediaType("text/plain", []string{"application/json"}), 415},
		{jsonapi.ErrValidation("name", "required"), 422},
		{jsonapi.ErrInternal(""), 500},
		{jsonapi.ErrNotImplemented("x"), 501},
	}

	for _, tt := range tests {
		if got := tt.err.StatusCode(); got != tt.want {
			t.Errorf("%s: StatusCode() = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
