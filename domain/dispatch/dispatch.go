// Package dispatch selects the resource of a service that handles a request
// and extracts its path and query arguments.
package dispatch

import (
	"net/url"
	"strings"

	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/routeerr"
	"github.com/artpar/svcroute/domain/service"
)

// Match is a successful dispatch.
type Match struct {
	Resource *resource.Resource
	Args     map[string]string
}

// Dispatch finds the resource of svc for method and subPath. rawQuery is the
// undecoded query string without "?"; empty means no query.
//
// Query parameters overwrite path variables of the same name.
func Dispatch(svc *service.Service, method, subPath, rawQuery string) (*Match, error) {
	subPath = strings.TrimSuffix(subPath, "/")

	key := subPath
	if rawQuery != "" {
		key += "?" + rawQuery
	}

	args := make(map[string]string)
	res, ok := svc.Match(key, args)
	if !ok || !res.AllowsMethod(method) {
		return nil, &routeerr.NoMatchingResourceError{Path: subPath, Method: method}
	}

	if rawQuery != "" {
		for k, v := range ParseQuery(rawQuery) {
			args[k] = v
		}
	}

	return &Match{Resource: res, Args: args}, nil
}

// ParseQuery decodes a raw query string into its first value per key.
// Malformed pairs are skipped.
func ParseQuery(rawQuery string) map[string]string {
	values, _ := url.ParseQuery(rawQuery)
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// MethodsFor returns the methods accepted by the resource matching subPath,
// or nil if no resource matches. A matched resource without declared
// methods reports the service-wide method set.
func MethodsFor(svc *service.Service, subPath string) []string {
	res, ok := svc.Match(strings.TrimSuffix(subPath, "/"), nil)
	if !ok {
		return nil
	}
	if res.Methods == nil {
		return svc.AllowedMethods
	}
	return res.Methods
}
