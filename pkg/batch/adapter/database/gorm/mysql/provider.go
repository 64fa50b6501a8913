// Package mysql provides the MySQL database provider.
package mysql

import (
	"gorm.io/driver/mysql"
	gormdriver "gorm.io/gorm"

	dbconfig "github.com/tigerroll/passbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
)

// ProviderType is the configuration type served by this provider.
const ProviderType = "mysql"

// NewProvider creates a DBProvider for MySQL connections.
func NewProvider(configs map[string]dbconfig.DatabaseConfig) adapter.DBProvider {
	return gormadapter.NewProvider(ProviderType, func(dsn string) gormdriver.Dialector {
		return mysql.Open(dsn)
	}, configs)
}
