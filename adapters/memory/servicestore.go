// Package memory provides in-memory implementations for testing and for
// running without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/ports"
)

// ServiceStore is an in-memory implementation of ports.ServiceStore.
type ServiceStore struct {
	mu   sync.RWMutex
	defs map[string]service.Definition // by name
}

// NewServiceStore creates a new in-memory service store.
func NewServiceStore() *ServiceStore {
	return &ServiceStore{
		defs: make(map[string]service.Definition),
	}
}

// List returns all definitions ordered by name.
func (s *ServiceStore) List(ctx context.Context) ([]service.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]service.Definition, 0, len(s.defs))
	for _, d := range s.defs {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Get retrieves a definition by name.
func (s *ServiceStore) Get(ctx context.Context, name string) (service.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.defs[name]
	if !ok {
		return service.Definition{}, ports.ErrNotFound
	}
	return d, nil
}

// Save creates or replaces a definition.
func (s *ServiceStore) Save(ctx context.Context, def service.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defs[def.Name] = def
	return nil
}

// Delete removes a definition.
func (s *ServiceStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[name]; !ok {
		return ports.ErrNotFound
	}
	delete(s.defs, name)
	return nil
}

var _ ports.ServiceStore = (*ServiceStore)(nil)
