// Package routeerr defines the errors raised while registering services and
// dispatching requests. Registration errors are fatal for the service being
// deployed; NoMatchingResourceError is a normal per-request outcome.
package routeerr

import (
	"fmt"
)

// ConfigError reports malformed or ambiguous declarative configuration.
type ConfigError struct {
	Service  string
	Resource string // empty for service-level problems
	Reason   string
	Err      error
}

func (e *ConfigError) Error() string {
	where := e.Service
	if e.Resource != "" {
		where += "." + e.Resource
	}
	msg := fmt.Sprintf("config error in %s: %s", where, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RouteTemplateError reports a resource path that could not be inserted into
// the service dispatch tree. The cause message is preserved.
type RouteTemplateError struct {
	Service  string
	Resource string
	Pattern  string
	Err      error
}

func (e *RouteTemplateError) Error() string {
	return fmt.Sprintf("invalid route template %q for %s.%s: %v", e.Pattern, e.Service, e.Resource, e.Err)
}

func (e *RouteTemplateError) Unwrap() error { return e.Err }

// SignatureError reports a handler parameter that cannot be bound to any
// request source.
type SignatureError struct {
	Service  string
	Resource string
	Param    string
	Reason   string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("cannot bind parameter %q of %s.%s: %s", e.Param, e.Service, e.Resource, e.Reason)
}

// MalformedMediaTypeError reports a produced media type without a type/subtype shape.
type MalformedMediaTypeError struct {
	MediaType string
}

func (e *MalformedMediaTypeError) Error() string {
	return fmt.Sprintf("malformed media type %q: expected type/subtype", e.MediaType)
}

// NoMatchingResourceError is returned when no resource of a service accepts
// the request path and method.
type NoMatchingResourceError struct {
	Path   string
	Method string
}

func (e *NoMatchingResourceError) Error() string {
	return fmt.Sprintf("no matching resource found for path: %s, method: %s", e.Path, e.Method)
}
