// Package gorm implements the framework database ports on top of gorm.io.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "gorm_adapter"

// GormDBAdapter implements adapter.DBConnection over a *gorm.DB.
type GormDBAdapter struct {
	db     *gorm.DB
	name   string
	dbType string
}

var _ adapter.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps db as a DBConnection.
func NewGormDBAdapter(db *gorm.DB, name, dbType string) *GormDBAdapter {
	return &GormDBAdapter{db: db, name: name, dbType: dbType}
}

// GormDB exposes the underlying gorm handle for components that need
// dialect-aware query building.
func (a *GormDBAdapter) GormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to get underlying sql.DB for close", err, false, false)
	}
	return sqlDB.Close()
}

func (a *GormDBAdapter) Type() string { return a.dbType }

func (a *GormDBAdapter) Name() string { return a.name }

func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	return a.db.DB()
}

func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, dest interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error {
	return executeQuery(a.db.WithContext(ctx), dest, tableName, query, orderBy, limit)
}

func (a *GormDBAdapter) Count(ctx context.Context, tableName string, query map[string]interface{}) (int64, error) {
	return executeCount(a.db.WithContext(ctx), tableName, query)
}

func (a *GormDBAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation adapter.DBOperation, tableName string, query map[string]interface{}) error {
	return executeUpdate(a.db.WithContext(ctx), model, operation, tableName, query)
}

func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) error {
	return executeUpsert(a.db.WithContext(ctx), model, tableName, conflictColumns, updateColumns)
}

// The executor helpers below are shared between direct connections and
// transactions.

// applyConditions translates the query map into WHERE clauses. Plain
// keys are equality conditions; keys containing a '?' placeholder are
// condition expressions (for example "statistics_at >= ?") bound to
// their value, so callers can express range predicates.
func applyConditions(stmt *gorm.DB, query map[string]interface{}) *gorm.DB {
	if len(query) == 0 {
		return stmt
	}
	eq := make(map[string]interface{}, len(query))
	for k, v := range query {
		if strings.ContainsRune(k, '?') {
			stmt = stmt.Where(k, v)
			continue
		}
		eq[k] = v
	}
	if len(eq) > 0 {
		stmt = stmt.Where(eq)
	}
	return stmt
}

func executeQuery(db *gorm.DB, dest interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error {
	stmt := applyConditions(db.Table(tableName), query)
	if orderBy != "" {
		stmt = stmt.Order(orderBy)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(dest).Error; err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("query on table '%s' failed", tableName), err, false, false)
	}
	return nil
}

func executeCount(db *gorm.DB, tableName string, query map[string]interface{}) (int64, error) {
	var count int64
	stmt := applyConditions(db.Table(tableName), query)
	if err := stmt.Count(&count).Error; err != nil {
		return 0, exception.NewBatchError(moduleName, fmt.Sprintf("count on table '%s' failed", tableName), err, false, false)
	}
	return count, nil
}

func executeUpdate(db *gorm.DB, model interface{}, operation adapter.DBOperation, tableName string, query map[string]interface{}) error {
	stmt := db.Table(tableName)
	var err error
	switch operation {
	case adapter.OperationCreate:
		err = stmt.Create(model).Error
	case adapter.OperationUpdate:
		if len(query) == 0 {
			return exception.NewBatchErrorf(moduleName, "UPDATE on table '%s' requires a query", tableName)
		}
		err = stmt.Where(query).Updates(model).Error
	case adapter.OperationDelete:
		if len(query) == 0 {
			return exception.NewBatchErrorf(moduleName, "DELETE on table '%s' requires a query", tableName)
		}
		err = stmt.Where(query).Delete(model).Error
	default:
		return exception.NewBatchErrorf(moduleName, "unsupported operation '%s' on table '%s'", operation, tableName)
	}
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("%s on table '%s' failed", operation, tableName), err, false, false)
	}
	return nil
}

func executeUpsert(db *gorm.DB, model interface{}, tableName string, conflictColumns []string, updateColumns []string) error {
	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		columns = append(columns, clause.Column{Name: c})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}
	if err := db.Table(tableName).Clauses(onConflict).Create(model).Error; err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("upsert on table '%s' failed", tableName), err, false, false)
	}
	return nil
}
