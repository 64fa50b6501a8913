package gorm

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

// GormTxAdapter implements tx.Tx over an open gorm transaction.
type GormTxAdapter struct {
	tx *gorm.DB
}

var _ coretx.Tx = (*GormTxAdapter)(nil)

// NewGormTxAdapter wraps an open gorm transaction.
func NewGormTxAdapter(tx *gorm.DB) *GormTxAdapter {
	return &GormTxAdapter{tx: tx}
}

// GormTx exposes the underlying transaction handle.
func (a *GormTxAdapter) GormTx() *gorm.DB {
	return a.tx
}

func (a *GormTxAdapter) ExecuteQuery(ctx context.Context, dest interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error {
	return executeQuery(a.tx.WithContext(ctx), dest, tableName, query, orderBy, limit)
}

func (a *GormTxAdapter) Count(ctx context.Context, tableName string, query map[string]interface{}) (int64, error) {
	return executeCount(a.tx.WithContext(ctx), tableName, query)
}

func (a *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation adapter.DBOperation, tableName string, query map[string]interface{}) error {
	return executeUpdate(a.tx.WithContext(ctx), model, operation, tableName, query)
}

func (a *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) error {
	return executeUpsert(a.tx.WithContext(ctx), model, tableName, conflictColumns, updateColumns)
}

// GormTransactionManager implements tx.TransactionManager over a gorm
// connection.
type GormTransactionManager struct {
	db *gorm.DB
}

var _ coretx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager creates a transaction manager over db.
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (coretx.Tx, error) {
	gtx := m.db.WithContext(ctx).Begin(opts...)
	if gtx.Error != nil {
		return nil, exception.NewBatchError(moduleName, "failed to begin transaction", gtx.Error, false, false)
	}
	return NewGormTxAdapter(gtx), nil
}

func (m *GormTransactionManager) Commit(t coretx.Tx) error {
	gta, ok := t.(*GormTxAdapter)
	if !ok {
		return exception.NewBatchErrorf(moduleName, "cannot commit: transaction is not a gorm transaction")
	}
	if err := gta.tx.Commit().Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to commit transaction", err, false, false)
	}
	return nil
}

func (m *GormTransactionManager) Rollback(t coretx.Tx) error {
	gta, ok := t.(*GormTxAdapter)
	if !ok {
		return exception.NewBatchErrorf(moduleName, "cannot rollback: transaction is not a gorm transaction")
	}
	if err := gta.tx.Rollback().Error; err != nil {
		return exception.NewBatchError(moduleName, "failed to rollback transaction", err, false, false)
	}
	return nil
}

// GormTransactionManagerFactory builds transaction managers for gorm-backed
// connections.
type GormTransactionManagerFactory struct{}

var _ coretx.TransactionManagerFactory = (*GormTransactionManagerFactory)(nil)

// NewGormTransactionManagerFactory returns a factory instance.
func NewGormTransactionManagerFactory() *GormTransactionManagerFactory {
	return &GormTransactionManagerFactory{}
}

func (f *GormTransactionManagerFactory) NewTransactionManager(conn adapter.DBConnection) (coretx.TransactionManager, error) {
	ga, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "connection '%s' is not gorm-backed", conn.Name())
	}
	return NewGormTransactionManager(ga.GormDB()), nil
}
