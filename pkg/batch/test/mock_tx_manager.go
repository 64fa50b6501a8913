package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
)

// MockTransactionManager is a testify mock of tx.TransactionManager.
type MockTransactionManager struct {
	mock.Mock
}

var _ coretx.TransactionManager = (*MockTransactionManager)(nil)

func (m *MockTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (coretx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(coretx.Tx), args.Error(1)
}

func (m *MockTransactionManager) Commit(tx coretx.Tx) error {
	return m.Called(tx).Error(0)
}

func (m *MockTransactionManager) Rollback(tx coretx.Tx) error {
	return m.Called(tx).Error(0)
}
