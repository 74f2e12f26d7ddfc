package config

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/artpar/svcroute/domain/cors"
	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/domain/service"
	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Built-in handler types.
const (
	HandlerEcho   = "echo"
	HandlerStatic = "static"
)

// ServiceConfig declares a service and its resources. The same structure is
// accepted as JSON by the admin API.
type ServiceConfig struct {
	Name      string           `yaml:"name" json:"name"`
	BasePath  string           `yaml:"base_path" json:"base_path,omitempty"`
	Cors      *CorsConfig      `yaml:"cors" json:"cors,omitempty"`
	Resources []ResourceConfig `yaml:"resources" json:"resources"`
}

// CorsConfig declares a CORS policy.
type CorsConfig struct {
	AllowOrigins     []string `yaml:"allow_origins" json:"allow_origins,omitempty"`
	AllowCredentials *bool    `yaml:"allow_credentials" json:"allow_credentials,omitempty"`
	AllowMethods     []string `yaml:"allow_methods" json:"allow_methods,omitempty"`
	AllowHeaders     []string `yaml:"allow_headers" json:"allow_headers,omitempty"`
	ExposeHeaders    []string `yaml:"expose_headers" json:"expose_headers,omitempty"`
	MaxAge           int      `yaml:"max_age" json:"max_age,omitempty"`
}

// ResourceConfig declares a handler of a service.
type ResourceConfig struct {
	Name    string          `yaml:"name" json:"name"`
	Params  []ParamConfig   `yaml:"params" json:"params,omitempty"`
	Handler HandlerConfig   `yaml:"handler" json:"handler"`
	Config  ResourceConfigs `yaml:"config" json:"config,omitempty"`
}

// ParamConfig declares a handler parameter.
type ParamConfig struct {
	Name   string `yaml:"name" json:"name"`
	Kind   string `yaml:"kind" json:"kind,omitempty"`
	Header bool   `yaml:"header" json:"header,omitempty"`
}

// HandlerConfig selects the built-in implementation serving a resource.
type HandlerConfig struct {
	Type        string `yaml:"type" json:"type,omitempty"` // "echo" (default) or "static"
	Status      int    `yaml:"status" json:"status,omitempty"`
	Body        string `yaml:"body" json:"body,omitempty"`
	ContentType string `yaml:"content_type" json:"content_type,omitempty"`
}

// ResourceSettings is the resource configuration block.
type ResourceSettings struct {
	Path     *string     `yaml:"path" json:"path,omitempty"`
	Methods  []string    `yaml:"methods" json:"methods,omitempty"`
	Consumes []string    `yaml:"consumes" json:"consumes,omitempty"`
	Produces []string    `yaml:"produces" json:"produces,omitempty"`
	Body     string      `yaml:"body" json:"body,omitempty"`
	Cors     *CorsConfig `yaml:"cors" json:"cors,omitempty"`
}

// ResourceConfigs holds the configuration blocks of a resource. It decodes
// from a single mapping or from a sequence; more than one block is kept so
// that registration can reject it as ambiguous.
type ResourceConfigs []ResourceSettings

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ResourceConfigs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var one ResourceSettings
		if err := node.Decode(&one); err != nil {
			return err
		}
		*c = ResourceConfigs{one}
		return nil
	case yaml.SequenceNode:
		var many []ResourceSettings
		if err := node.Decode(&many); err != nil {
			return err
		}
		*c = many
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*c = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: resource config must be a mapping or a list of mappings", node.Line)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ResourceConfigs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = nil
		return nil
	case len(data) > 0 && data[0] == '{':
		var one ResourceSettings
		if err := sonic.ConfigStd.Unmarshal(data, &one); err != nil {
			return err
		}
		*c = ResourceConfigs{one}
		return nil
	default:
		var many []ResourceSettings
		if err := sonic.ConfigStd.Unmarshal(data, &many); err != nil {
			return err
		}
		*c = many
		return nil
	}
}

// Validate checks the parts of the declaration that do not depend on
// registration: names, parameter kinds and handler types.
func (s ServiceConfig) Validate() error {
	var errs []error
	names := make(map[string]bool, len(s.Resources))
	for i, r := range s.Resources {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("resources[%d].name is required", i))
			continue
		}
		if names[r.Name] {
			errs = append(errs, fmt.Errorf("resources[%d]: duplicate resource name %q", i, r.Name))
		}
		names[r.Name] = true

		switch r.Handler.Type {
		case "", HandlerEcho, HandlerStatic:
		default:
			errs = append(errs, fmt.Errorf("resource %s: unknown handler type %q", r.Name, r.Handler.Type))
		}
		if r.Handler.Status != 0 && (r.Handler.Status < 100 || r.Handler.Status > 599) {
			errs = append(errs, fmt.Errorf("resource %s: invalid handler status %d", r.Name, r.Handler.Status))
		}
		for _, p := range r.Params {
			if !validKind(resource.Kind(p.Kind)) {
				errs = append(errs, fmt.Errorf("resource %s: param %s: unknown kind %q", r.Name, p.Name, p.Kind))
			}
		}
	}
	return errors.Join(errs...)
}

func validKind(k resource.Kind) bool {
	switch k {
	case "", resource.KindString, resource.KindInt, resource.KindFloat,
		resource.KindBoolean, resource.KindJSON, resource.KindBytes:
		return true
	}
	return false
}

// Definitions converts the configured services.
func (c *Config) Definitions() []service.Definition {
	defs := make([]service.Definition, 0, len(c.Services))
	for _, s := range c.Services {
		defs = append(defs, s.Definition())
	}
	return defs
}

// Definition converts the declaration to its domain form.
func (s ServiceConfig) Definition() service.Definition {
	def := service.Definition{
		Name:     s.Name,
		BasePath: s.BasePath,
		Cors:     s.Cors.Policy(),
	}
	for _, r := range s.Resources {
		h := resource.Handler{
			Name:   r.Name,
			Target: r.Handler.Target(),
		}
		for _, p := range r.Params {
			h.Params = append(h.Params, resource.Param{Name: p.Name, Kind: resource.Kind(p.Kind), Header: p.Header})
		}
		for _, rc := range r.Config {
			h.Configs = append(h.Configs, resource.Config{
				Path:     rc.Path,
				Methods:  rc.Methods,
				Consumes: rc.Consumes,
				Produces: rc.Produces,
				Body:     rc.Body,
				Cors:     rc.Cors.Policy(),
			})
		}
		def.Handlers = append(def.Handlers, h)
	}
	return def
}

// Policy converts the declaration to a CORS policy. A nil declaration
// yields a nil policy.
func (c *CorsConfig) Policy() *cors.Policy {
	if c == nil {
		return nil
	}
	return &cors.Policy{
		AllowOrigins:     c.AllowOrigins,
		AllowCredentials: cors.CredentialsFromBool(c.AllowCredentials),
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		ExposeHeaders:    c.ExposeHeaders,
		MaxAge:           c.MaxAge,
	}
}

// Target converts the handler selection to a resource target.
func (h HandlerConfig) Target() resource.Target {
	kind := h.Type
	if kind == "" {
		kind = HandlerEcho
	}
	opts := map[string]string{}
	if h.Status != 0 {
		opts["status"] = strconv.Itoa(h.Status)
	}
	if h.Body != "" {
		opts["body"] = h.Body
	}
	if h.ContentType != "" {
		opts["content_type"] = h.ContentType
	}
	if len(opts) == 0 {
		opts = nil
	}
	return resource.Target{Kind: kind, Options: opts}
}
