// Package reader provides reusable item readers for chunk steps.
package reader

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "reader"

// positionKey is the ExecutionContext key under which readers persist the
// number of items already delivered.
const positionKey = "reader.position"

// RowMapper scans the current row of rows into an item.
type RowMapper[O any] func(rows *sql.Rows) (O, error)

// CursorReader streams rows of one SQL query through a single cursor.
// The query must carry a deterministic ORDER BY: on restart the reader
// re-executes it and, unless position restore is disabled, skips the
// rows delivered before the last checkpoint.
// Placeholders are written as '?' and rebound for PostgreSQL.
type CursorReader[O any] struct {
	name            string
	db              *sql.DB
	driverType      string
	query           string
	args            []interface{}
	mapper          RowMapper[O]
	restorePosition bool

	rows      *sql.Rows
	readCount int64
	ec        model.ExecutionContext
}

var _ port.ItemReader[any] = (*CursorReader[any])(nil)

// NewCursorReader builds a cursor reader over db. driverType selects the
// placeholder dialect ("postgres" rebinds '?' to $n).
func NewCursorReader[O any](name string, db *sql.DB, driverType, query string, args []interface{}, mapper RowMapper[O]) *CursorReader[O] {
	return &CursorReader[O]{
		name:            name,
		db:              db,
		driverType:      driverType,
		query:           query,
		args:            args,
		mapper:          mapper,
		restorePosition: true,
		ec:              model.NewExecutionContext(),
	}
}

// DisablePositionRestore stops Open from skipping checkpointed rows.
// Use it when committed chunks flip the very flag the predicate selects
// on: re-executing the query then already excludes the processed rows,
// and skipping would discard pending ones instead.
func (r *CursorReader[O]) DisablePositionRestore() *CursorReader[O] {
	r.restorePosition = false
	return r
}

// Open executes the query and skips past the checkpointed position.
func (r *CursorReader[O]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec.Copy()
	restored := int64(0)
	if r.restorePosition {
		if v, ok := ec.GetInt(positionKey); ok {
			restored = int64(v)
		}
	}

	rows, err := r.db.QueryContext(ctx, Rebind(r.driverType, r.query), r.args...)
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "reader '%s': query failed: %w", r.name, err)
	}
	r.rows = rows
	r.readCount = 0

	// Skip rows already delivered before the last checkpoint. The skip is
	// client-side so it behaves the same on every driver.
	for r.readCount < restored {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return exception.NewBatchErrorf(moduleName, "reader '%s': failed to skip to position %d: %w", r.name, restored, err)
			}
			break
		}
		r.readCount++
	}
	if restored > 0 {
		logger.Infof("reader '%s' resumed at position %d", r.name, r.readCount)
	}
	return nil
}

// Read returns the next item, or port.ErrNoMoreItems at end of input.
func (r *CursorReader[O]) Read(ctx context.Context) (O, error) {
	var zero O
	if r.rows == nil {
		return zero, exception.NewBatchErrorf(moduleName, "reader '%s': Read called before Open", r.name)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return zero, exception.NewBatchErrorf(moduleName, "reader '%s': row iteration failed: %w", r.name, err)
		}
		return zero, port.ErrNoMoreItems
	}
	item, err := r.mapper(r.rows)
	if err != nil {
		return zero, exception.NewBatchErrorf(moduleName, "reader '%s': failed to map row: %w", r.name, err)
	}
	r.readCount++
	return item, nil
}

// Close releases the cursor.
func (r *CursorReader[O]) Close(ctx context.Context) error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "reader '%s': failed to close cursor: %w", r.name, err)
	}
	return nil
}

func (r *CursorReader[O]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec.Copy()
	return nil
}

// GetExecutionContext reports the current position so the step can
// checkpoint it after each chunk commit.
func (r *CursorReader[O]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := r.ec.Copy()
	ec.Put(positionKey, r.readCount)
	return ec, nil
}

// Rebind converts '?' placeholders to the dialect of driverType.
// PostgreSQL uses $1..$n; other supported drivers take '?' as-is.
func Rebind(driverType, query string) string {
	if driverType != "postgres" && driverType != "redshift" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
