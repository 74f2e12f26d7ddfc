package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/svcroute/domain/service"
	"github.com/artpar/svcroute/ports"
	"github.com/rs/zerolog"
)

// DeploymentService keeps the registry in line with the service definitions
// coming from the configuration file and from the runtime store.
type DeploymentService struct {
	registry *Registry
	store    ports.ServiceStore // optional
	logger   zerolog.Logger

	mu sync.Mutex
	// base paths currently owned by the configuration file, by service name
	configOwned map[string]string
}

// NewDeploymentService creates a deployment service. store may be nil, in
// which case runtime deployments are not persisted.
func NewDeploymentService(registry *Registry, store ports.ServiceStore, logger zerolog.Logger) *DeploymentService {
	return &DeploymentService{
		registry:    registry,
		store:       store,
		logger:      logger.With().Str("service", "deployment").Logger(),
		configOwned: make(map[string]string),
	}
}

// SyncConfig deploys every definition from the configuration file and
// undeploys configuration services that are no longer present. Failing
// services are reported together; the others are still deployed.
func (d *DeploymentService) SyncConfig(ctx context.Context, defs []service.Definition) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	next := make(map[string]string, len(defs))
	for _, def := range defs {
		svc, err := d.registry.Register(ctx, def)
		if err != nil {
			errs = append(errs, err)
			// keep serving the previous version, if any
			if bp, ok := d.configOwned[def.Name]; ok {
				next[def.Name] = bp
			}
			continue
		}
		next[def.Name] = svc.BasePath
	}

	for name, bp := range d.configOwned {
		if newBP, ok := next[name]; ok && newBP == bp {
			continue
		}
		if owner, ok := d.registry.Get(bp); ok && owner.Name == name {
			d.registry.Unregister(ctx, bp)
		}
	}
	d.configOwned = next

	return errors.Join(errs...)
}

// LoadStored deploys every definition found in the store.
func (d *DeploymentService) LoadStored(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	defs, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored services: %w", err)
	}

	var errs []error
	for _, def := range defs {
		if _, err := d.registry.Register(ctx, def); err != nil {
			errs = append(errs, err)
		}
	}
	d.logger.Info().Int("services", len(defs)).Msg("stored services loaded")
	return errors.Join(errs...)
}

// Deploy registers def and persists it so it survives restarts.
// The definition is only stored once it registered successfully.
func (d *DeploymentService) Deploy(ctx context.Context, def service.Definition) (*service.Service, error) {
	svc, err := d.registry.Register(ctx, def)
	if err != nil {
		return nil, err
	}
	if d.store != nil {
		if err := d.store.Save(ctx, def); err != nil {
			return svc, fmt.Errorf("persist service %s: %w", def.Name, err)
		}
	}
	return svc, nil
}

// Undeploy removes the service called name from the registry and the store.
func (d *DeploymentService) Undeploy(ctx context.Context, name string) error {
	found := false
	for _, svc := range d.registry.Services() {
		if svc.Name == name {
			d.registry.Unregister(ctx, svc.BasePath)
			found = true
		}
	}

	if d.store != nil {
		err := d.store.Delete(ctx, name)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, ports.ErrNotFound):
			return fmt.Errorf("delete stored service %s: %w", name, err)
		}
	}

	if !found {
		return ports.ErrNotFound
	}
	return nil
}

// Registry returns the underlying registry.
func (d *DeploymentService) Registry() *Registry {
	return d.registry
}
