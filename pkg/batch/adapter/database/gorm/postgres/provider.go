// Package postgres provides the PostgreSQL database provider.
package postgres

import (
	"gorm.io/driver/postgres"
	gormdriver "gorm.io/gorm"

	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
)

// ProviderType is the configuration type served by this provider.
const ProviderType = "postgres"

// NewProvider creates a DBProvider for PostgreSQL connections.
func NewProvider(configs map[string]dbconfig.DatabaseConfig) adapter.DBProvider {
	return gormadapter.NewProvider(ProviderType, func(dsn string) gormdriver.Dialector {
		return postgres.Open(dsn)
	}, configs)
}
