package service

import (
	"net/url"
	"strings"

	"github.com/artpar/svcroute/domain/routeerr"
)

// Separator is the path separator and the root base path.
const Separator = "/"

// DiscoverBasePath returns the base path declared by attribute, or
// Separator + serviceName when the attribute is blank.
func DiscoverBasePath(serviceName, attribute string) string {
	if strings.TrimSpace(attribute) == "" {
		// service names never start with the separator
		return Separator + serviceName
	}
	return SanitizeBasePath(attribute)
}

// SanitizeBasePath trims whitespace, ensures a leading separator and removes
// trailing separators (except for the root path). It is idempotent.
func SanitizeBasePath(p string) string {
	for {
		q := strings.TrimRight(strings.TrimSpace(p), Separator)
		if q == p {
			break
		}
		p = q
	}
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	return p
}

// DecodeBasePath percent-decodes a base path. A decode failure means the
// static configuration is malformed.
func DecodeBasePath(serviceName, basePath string) (string, error) {
	decoded, err := url.PathUnescape(basePath)
	if err != nil {
		return "", &routeerr.ConfigError{
			Service: serviceName,
			Reason:  "invalid base path encoding " + basePath,
			Err:     err,
		}
	}
	return decoded, nil
}
