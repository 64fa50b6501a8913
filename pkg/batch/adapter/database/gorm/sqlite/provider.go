// Package sqlite provides the SQLite database provider.
package sqlite

import (
	"gorm.io/driver/sqlite"
	gormdriver "gorm.io/gorm"

	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
)

// ProviderType is the configuration type served by this provider.
const ProviderType = "sqlite"

// NewProvider creates a DBProvider for SQLite connections.
func NewProvider(configs map[string]dbconfig.DatabaseConfig) adapter.DBProvider {
	return gormadapter.NewProvider(ProviderType, func(dsn string) gormdriver.Dialector {
		return sqlite.Open(dsn)
	}, configs)
}
