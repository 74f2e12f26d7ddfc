package http

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/artpar/svcroute/domain/resource"
	"github.com/artpar/svcroute/pkg/jsonapi"
	"github.com/artpar/svcroute/ports"
	"github.com/bytedance/sonic"
)

// Handler kinds served by Builtins.
const (
	KindEcho   = "echo"
	KindStatic = "static"
)

// HandlerFactory creates the implementation for a resource target.
type HandlerFactory func(target resource.Target) ports.ResourceHandler

// Builtins resolves resource targets to handler implementations by kind.
// A target without a kind is served by the echo handler.
type Builtins struct {
	mu        sync.RWMutex
	factories map[string]HandlerFactory
}

// NewBuiltins creates a lookup with the echo and static handlers registered.
func NewBuiltins() *Builtins {
	b := &Builtins{factories: make(map[string]HandlerFactory)}
	b.Register(KindEcho, func(resource.Target) ports.ResourceHandler {
		return ports.ResourceHandlerFunc(serveEcho)
	})
	b.Register(KindStatic, newStatic)
	return b
}

// Register adds or replaces the factory for kind.
func (b *Builtins) Register(kind string, f HandlerFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factories[kind] = f
}

// Kinds returns the registered handler kinds.
func (b *Builtins) Kinds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.factories))
	for k := range b.factories {
		out = append(out, k)
	}
	return out
}

// Handler implements ports.HandlerLookup.
func (b *Builtins) Handler(res *resource.Resource) (ports.ResourceHandler, bool) {
	kind := res.Target.Kind
	if kind == "" {
		kind = KindEcho
	}
	b.mu.RLock()
	f, ok := b.factories[kind]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(res.Target), true
}

// echoResponse describes the dispatched request back to the caller.
type echoResponse struct {
	Service  string            `json:"service"`
	Resource string            `json:"resource"`
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Args     map[string]string `json:"args"`
	Values   map[string]any    `json:"values"`
}

func serveEcho(w http.ResponseWriter, inv ports.Invocation) {
	values := make(map[string]any, len(inv.Values))
	for k, v := range inv.Values {
		// raw bodies are reported as text
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values[k] = v
	}

	body, err := sonic.ConfigStd.Marshal(echoResponse{
		Service:  inv.Service.Name,
		Resource: inv.Resource.Name,
		Method:   inv.Request.Method,
		Path:     inv.Request.URL.Path,
		Args:     inv.Args,
		Values:   values,
	})
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrInternal("encode echo response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

type staticHandler struct {
	status      int
	body        string
	contentType string
}

// newStatic serves a fixed response. Options: status, body, content_type.
func newStatic(target resource.Target) ports.ResourceHandler {
	h := &staticHandler{status: http.StatusOK, contentType: "text/plain; charset=utf-8"}
	if s, err := strconv.Atoi(target.Options["status"]); err == nil && s >= 100 && s <= 599 {
		h.status = s
	}
	h.body = target.Options["body"]
	if ct := target.Options["content_type"]; ct != "" {
		h.contentType = ct
	}
	return h
}

func (h *staticHandler) ServeResource(w http.ResponseWriter, inv ports.Invocation) {
	if h.body != "" {
		w.Header().Set("Content-Type", h.contentType)
	}
	w.WriteHeader(h.status)
	if h.body != "" && inv.Request.Method != http.MethodHead {
		w.Write([]byte(h.body))
	}
}

var _ ports.HandlerLookup = (*Builtins)(nil)
