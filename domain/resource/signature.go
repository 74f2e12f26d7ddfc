package resource

import (
	"net/http"
	"slices"

	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/uritemplate"
)

// Kind is the declared type of a handler parameter.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindBoolean Kind = "boolean"
	KindJSON    Kind = "json"
	KindBytes   Kind = "bytes"
)

// Scalar reports whether values of the kind can be read from a single string.
func (k Kind) Scalar() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBoolean, "":
		return true
	default:
		return false
	}
}

// Source is where a parameter value comes from.
type Source string

const (
	SourcePath   Source = "path"
	SourceQuery  Source = "query"
	SourceBody   Source = "body"
	SourceHeader Source = "header"
)

// Param is a declared handler parameter. An empty Kind means string.
type Param struct {
	Name   string
	Kind   Kind
	Header bool // read from the request header of the same name
}

// Binding ties a parameter to its source.
type Binding struct {
	Param  Param
	Source Source
}

// SignatureParams holds the validated bindings of a resource.
type SignatureParams struct {
	Bindings []Binding
}

// Body returns the binding of the request body, if any.
func (s SignatureParams) Body() (Binding, bool) {
	for _, b := range s.Bindings {
		if b.Source == SourceBody {
			return b, true
		}
	}
	return Binding{}, false
}

// PrepareSignature binds every declared parameter to a request source and
// stores the result in r.Signature.
func (r *Resource) PrepareSignature() error {
	vars := uritemplate.Variables(r.Path)
	bindings := make([]Binding, 0, len(r.params))
	bodyBound := false
	seen := make(map[string]bool, len(r.params))

	for _, p := range r.params {
		if p.Name == "" {
			return r.signatureError(p.Name, "parameter has no name")
		}
		if seen[p.Name] {
			return r.signatureError(p.Name, "duplicate parameter")
		}
		seen[p.Name] = true

		switch {
		case p.Header:
			if !p.Kind.Scalar() {
				return r.signatureError(p.Name, "header parameters must be scalar")
			}
			bindings = append(bindings, Binding{Param: p, Source: SourceHeader})

		case r.EntityBodyAttribute != "" && p.Name == r.EntityBodyAttribute:
			if !r.acceptsBody() {
				return r.signatureError(p.Name, "body parameter on a resource limited to GET/HEAD")
			}
			bodyBound = true
			bindings = append(bindings, Binding{Param: p, Source: SourceBody})

		case slices.Contains(vars, p.Name):
			if !p.Kind.Scalar() {
				return r.signatureError(p.Name, "path parameters must be scalar")
			}
			bindings = append(bindings, Binding{Param: p, Source: SourcePath})

		case p.Kind.Scalar():
			bindings = append(bindings, Binding{Param: p, Source: SourceQuery})

		default:
			return r.signatureError(p.Name, "no request source for kind "+string(p.Kind))
		}
	}

	if r.EntityBodyAttribute != "" && !bodyBound {
		return r.signatureError(r.EntityBodyAttribute, "body attribute does not name a parameter")
	}

	r.Signature = SignatureParams{Bindings: bindings}
	return nil
}

func (r *Resource) acceptsBody() bool {
	if r.Methods == nil {
		return true
	}
	for _, m := range r.Methods {
		if m != http.MethodGet && m != http.MethodHead {
			return true
		}
	}
	return false
}

func (r *Resource) signatureError(param, reason string) error {
	return &routeerr.SignatureError{
		Service:  r.ServiceName,
		Resource: r.Name,
		Param:    param,
		Reason:   reason,
	}
}
