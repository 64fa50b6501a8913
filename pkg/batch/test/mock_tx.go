// Package test provides shared mocks for unit tests of the batch
// framework and of applications built on it.
package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
)

// MockTx is a testify mock of the tx.Tx interface. Tests program its
// executor methods with On(...) and inspect recorded calls afterwards.
type MockTx struct {
	mock.Mock
}

var _ coretx.Tx = (*MockTx)(nil)

func (m *MockTx) ExecuteQuery(ctx context.Context, dest interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error {
	return m.Called(ctx, dest, tableName, query, orderBy, limit).Error(0)
}

func (m *MockTx) Count(ctx context.Context, tableName string, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, tableName, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) ExecuteUpdate(ctx context.Context, model interface{}, operation adapter.DBOperation, tableName string, query map[string]interface{}) error {
	return m.Called(ctx, model, operation, tableName, query).Error(0)
}

func (m *MockTx) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) error {
	return m.Called(ctx, model, tableName, conflictColumns, updateColumns).Error(0)
}
