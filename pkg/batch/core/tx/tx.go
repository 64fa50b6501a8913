// Package tx defines the transaction ports of the batch framework. Each
// chunk and each tasklet runs inside exactly one transaction obtained from
// a TransactionManager.
package tx

import (
	"context"
	"database/sql"

	"github.com/tigerroll/passbatch/pkg/batch/core/adapter"
)

// Tx is an open transaction. It exposes the same executor surface as a
// direct connection so writers can run inside chunk boundaries.
type Tx interface {
	adapter.DBExecutor
}

// TransactionManager demarcates transactions over one database connection.
type TransactionManager interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits tx.
	Commit(tx Tx) error
	// Rollback rolls back tx.
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates TransactionManagers bound to a
// connection.
type TransactionManagerFactory interface {
	NewTransactionManager(conn adapter.DBConnection) (TransactionManager, error)
}

type txContextKey struct{}

// ContextWithTx stores tx in ctx so collaborators invoked inside a chunk
// can join the chunk transaction.
func ContextWithTx(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, if any.
func TxFromContext(ctx context.Context) (Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(Tx)
	return tx, ok
}
