package gorm_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gormadapter "github.com/tigerroll/passbatch/pkg/batch/adapter/database/gorm"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormTransactionManager_BeginCommit(t *testing.T) {
	db, mock := newMockGormDB(t)
	manager := gormadapter.NewGormTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	txn, err := manager.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, manager.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionManager_BeginRollback(t *testing.T) {
	db, mock := newMockGormDB(t)
	manager := gormadapter.NewGormTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	txn, err := manager.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, manager.Rollback(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxAdapter_CountRunsInsideTransaction(t *testing.T) {
	db, mock := newMockGormDB(t)
	manager := gormadapter.NewGormTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "passes" WHERE`).
		WithArgs("IN_PROGRESS").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	txn, err := manager.Begin(context.Background())
	require.NoError(t, err)

	count, err := txn.Count(context.Background(), "passes", map[string]interface{}{"status": "IN_PROGRESS"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	require.NoError(t, manager.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxAdapter_QueryAppliesConditionExpressions(t *testing.T) {
	db, mock := newMockGormDB(t)
	manager := gormadapter.NewGormTransactionManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "statistics" WHERE statistics_at >= \$1 AND .*status.* = \$2 ORDER BY statistics_at ASC`).
		WithArgs("2026-03-01", "DONE").
		WillReturnRows(sqlmock.NewRows([]string{"statistics_seq"}).AddRow(1))
	mock.ExpectCommit()

	txn, err := manager.Begin(context.Background())
	require.NoError(t, err)

	var rows []map[string]interface{}
	err = txn.ExecuteQuery(context.Background(), &rows, "statistics", map[string]interface{}{
		"statistics_at >= ?": "2026-03-01",
		"status":             "DONE",
	}, "statistics_at ASC", 0)
	require.NoError(t, err)

	require.NoError(t, manager.Commit(txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionManager_RejectsForeignTx(t *testing.T) {
	db, _ := newMockGormDB(t)
	manager := gormadapter.NewGormTransactionManager(db)

	err := manager.Commit(nil)
	require.Error(t, err)
	err = manager.Rollback(nil)
	require.Error(t, err)
}
