// Package adapter defines the resource connection ports the framework uses
// to reach external systems such as databases and object storage.
package adapter

import (
	"context"
	"database/sql"
)

// DBProviderGroup is the fx value-group name under which database providers
// are collected.
const DBProviderGroup = "db_providers"

// ResourceConnection is a generic handle on an external resource.
type ResourceConnection interface {
	// Close releases the connection.
	Close() error
	// Type returns the resource type identifier (e.g. "postgres", "gcs").
	Type() string
	// Name returns the configured connection name.
	Name() string
}

// DBOperation identifies the kind of mutation executed through a connection
// or transaction.
type DBOperation string

const (
	OperationCreate DBOperation = "CREATE"
	OperationUpdate DBOperation = "UPDATE"
	OperationDelete DBOperation = "DELETE"
)

// DBExecutor defines the query and mutation operations shared by direct
// connections and transactions. Query conditions are expressed as column
// to value maps so callers stay free of driver specifics.
type DBExecutor interface {
	// ExecuteQuery loads rows matching query into dest (a pointer to a
	// slice of models). orderBy may be empty; limit <= 0 means no limit.
	ExecuteQuery(ctx context.Context, dest interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error

	// Count returns the number of rows matching query.
	Count(ctx context.Context, tableName string, query map[string]interface{}) (int64, error)

	// ExecuteUpdate applies operation to model. For UPDATE and DELETE the
	// affected rows are selected by query.
	ExecuteUpdate(ctx context.Context, model interface{}, operation DBOperation, tableName string, query map[string]interface{}) error

	// ExecuteUpsert inserts models, resolving conflicts on conflictColumns.
	// With updateColumns empty the conflicting rows are left untouched.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) error
}

// DBConnection represents a live database connection.
type DBConnection interface {
	ResourceConnection
	DBExecutor

	// GetSQLDB exposes the underlying *sql.DB for components that issue
	// raw SQL, such as cursor readers and the schema migrator.
	GetSQLDB() (*sql.DB, error)
}

// DBProvider manages named database connections of one type.
type DBProvider interface {
	// Type returns the database type this provider serves.
	Type() string
	// GetConnection returns the connection registered under name, opening
	// it on first use.
	GetConnection(name string) (DBConnection, error)
	// ForceReconnect closes and re-establishes the named connection.
	ForceReconnect(name string) (DBConnection, error)
	// CloseAll closes every connection held by the provider.
	CloseAll() error
}
