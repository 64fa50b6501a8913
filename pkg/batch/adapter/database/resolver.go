// Package database resolves named database connections across the
// registered providers.
package database

import (
	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "database"

// ConnectionResolver maps connection names to providers using the named
// configuration's type.
type ConnectionResolver struct {
	providers map[string]adapter.DBProvider
	configs   map[string]dbconfig.DatabaseConfig
}

// NewConnectionResolver builds a resolver over the given providers and
// named configurations.
func NewConnectionResolver(providers []adapter.DBProvider, configs map[string]dbconfig.DatabaseConfig) *ConnectionResolver {
	byType := make(map[string]adapter.DBProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, configs: configs}
}

// Resolve returns the connection registered under name.
func (r *ConnectionResolver) Resolve(name string) (adapter.DBConnection, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "database configuration '%s' not found", name)
	}
	dbType := cfg.Type
	if dbType == "redshift" {
		dbType = "postgres"
	}
	provider, ok := r.providers[dbType]
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "no provider registered for database type '%s' (connection '%s')", cfg.Type, name)
	}
	return provider.GetConnection(name)
}

// CloseAll closes every connection of every provider.
func (r *ConnectionResolver) CloseAll() error {
	var firstErr error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
