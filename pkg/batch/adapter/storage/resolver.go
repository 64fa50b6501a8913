package storage

import (
	storageconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "storage_resolver"

// ConnectionResolver routes named storage connections to the provider
// matching the configured backend type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	configs   map[string]storageconfig.StorageConfig
}

// NewConnectionResolver indexes providers by their Type.
func NewConnectionResolver(providers []StorageProvider, configs map[string]storageconfig.StorageConfig) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, configs: configs}
}

// Resolve returns the connection for the named configuration entry.
func (r *ConnectionResolver) Resolve(name string) (StorageConnection, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "storage configuration '%s' not found", name)
	}
	provider, ok := r.providers[cfg.Type]
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "no storage provider registered for type '%s' (connection '%s')", cfg.Type, name)
	}
	return provider.GetConnection(name)
}

// CloseAll closes every provider's connections.
func (r *ConnectionResolver) CloseAll() error {
	var errs []error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return exception.NewBatchErrorf(moduleName, "failed to close storage providers: %v", errs)
	}
	return nil
}
