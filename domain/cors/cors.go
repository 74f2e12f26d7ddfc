// Package cors provides the cross-origin policy value type and the defaulting
// rules applied between service and resource scope.
package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Credentials is a tri-state flag for Access-Control-Allow-Credentials.
type Credentials int

const (
	CredentialsUnset Credentials = iota
	CredentialsTrue
	CredentialsFalse
)

// String returns the YAML/JSON spelling of the flag.
func (c Credentials) String() string {
	switch c {
	case CredentialsTrue:
		return "true"
	case CredentialsFalse:
		return "false"
	default:
		return "unset"
	}
}

// CredentialsFromBool converts an optional bool into the tri-state flag.
func CredentialsFromBool(b *bool) Credentials {
	if b == nil {
		return CredentialsUnset
	}
	if *b {
		return CredentialsTrue
	}
	return CredentialsFalse
}

// StandardMethods is the method set used when neither the policy nor the
// resource restricts methods.
var StandardMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodOptions,
}

// Policy describes cross-origin rules for a service or resource.
type Policy struct {
	AllowOrigins     []string
	AllowCredentials Credentials
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	MaxAge           int // seconds; 0 = not sent
}

// Available reports whether the policy allows any origin at all.
// Inheritance does not use it: see Declared.
func (p *Policy) Available() bool {
	return p != nil && len(p.AllowOrigins) > 0
}

// Declared reports whether any field of the policy was populated. A declared
// resource policy replaces the service policy entirely, so a resource that
// sets only MaxAge gets "*" origins rather than the service's origins.
func (p *Policy) Declared() bool {
	if p == nil {
		return false
	}
	return len(p.AllowOrigins) > 0 ||
		p.AllowCredentials != CredentialsUnset ||
		len(p.AllowMethods) > 0 ||
		len(p.AllowHeaders) > 0 ||
		len(p.ExposeHeaders) > 0 ||
		p.MaxAge > 0
}

// ResolveResource applies resource-scope defaulting. A resource without a
// declared policy shares the service policy as is. A declared policy gets
// "*" origins when none were given, and the resource methods (or the
// standard set) when no methods were given.
func ResolveResource(resource, service *Policy, resourceMethods []string) *Policy {
	if !resource.Declared() {
		return service
	}

	if len(resource.AllowOrigins) == 0 {
		resource.AllowOrigins = []string{"*"}
	}

	if len(resource.AllowMethods) > 0 {
		return resource
	}

	if len(resourceMethods) > 0 {
		resource.AllowMethods = slices.Clone(resourceMethods)
		return resource
	}
	resource.AllowMethods = slices.Clone(StandardMethods)
	return resource
}

// AllowsOrigin reports whether origin may access the resource.
func (p *Policy) AllowsOrigin(origin string) bool {
	if !p.Available() || origin == "" {
		return false
	}
	for _, o := range p.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// AllowsMethod reports whether method is listed in AllowMethods.
// An empty list allows the standard methods.
func (p *Policy) AllowsMethod(method string) bool {
	methods := p.AllowMethods
	if len(methods) == 0 {
		methods = StandardMethods
	}
	return slices.Contains(methods, method)
}

// AllowsHeaders reports whether every requested header is allowed.
// An empty AllowHeaders list allows any header.
func (p *Policy) AllowsHeaders(requested []string) bool {
	if len(p.AllowHeaders) == 0 {
		return true
	}
	for _, h := range requested {
		found := false
		for _, a := range p.AllowHeaders {
			if strings.EqualFold(a, h) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ActualHeaders returns the response headers for a simple (non-preflight)
// cross-origin request. Returns nil if the origin is not allowed.
func (p *Policy) ActualHeaders(origin string) http.Header {
	if !p.AllowsOrigin(origin) {
		return nil
	}
	h := make(http.Header)
	h.Set("Access-Control-Allow-Origin", p.allowOriginValue(origin))
	if p.AllowCredentials == CredentialsTrue {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(p.ExposeHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(p.ExposeHeaders, ", "))
	}
	h.Add("Vary", "Origin")
	return h
}

// PreflightHeaders returns the response headers for a preflight request,
// or nil if the request is not allowed by the policy.
func (p *Policy) PreflightHeaders(origin, method string, requestHeaders []string) http.Header {
	if !p.AllowsOrigin(origin) || !p.AllowsMethod(method) || !p.AllowsHeaders(requestHeaders) {
		return nil
	}
	h := make(http.Header)
	h.Set("Access-Control-Allow-Origin", p.allowOriginValue(origin))
	if p.AllowCredentials == CredentialsTrue {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Set("Access-Control-Allow-Methods", method)
	if len(requestHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(requestHeaders, ", "))
	}
	if p.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(p.MaxAge))
	}
	h.Add("Vary", "Origin")
	return h
}

// A wildcard cannot be combined with credentials, so the origin is echoed.
func (p *Policy) allowOriginValue(origin string) string {
	if slices.Contains(p.AllowOrigins, "*") && p.AllowCredentials != CredentialsTrue {
		return "*"
	}
	return origin
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	return &Policy{
		AllowOrigins:     slices.Clone(p.AllowOrigins),
		AllowCredentials: p.AllowCredentials,
		AllowMethods:     slices.Clone(p.AllowMethods),
		AllowHeaders:     slices.Clone(p.AllowHeaders),
		ExposeHeaders:    slices.Clone(p.ExposeHeaders),
		MaxAge:           p.MaxAge,
	}
}
