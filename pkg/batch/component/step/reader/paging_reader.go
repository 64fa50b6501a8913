package reader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

// PagingReader fetches rows page by page with LIMIT/OFFSET, holding no
// open cursor between chunks. Like CursorReader the query must carry a
// deterministic ORDER BY; the page offset is checkpointed so restarts
// continue from the last committed page boundary.
type PagingReader[O any] struct {
	name       string
	db         *sql.DB
	driverType string
	query      string
	args       []interface{}
	pageSize   int
	mapper     RowMapper[O]

	page      []O
	pageIndex int
	offset    int64
	exhausted bool
	opened    bool
	ec        model.ExecutionContext
}

var _ port.ItemReader[any] = (*PagingReader[any])(nil)

// NewPagingReader builds a paging reader over db. pageSize must be
// positive.
func NewPagingReader[O any](name string, db *sql.DB, driverType, query string, args []interface{}, pageSize int, mapper RowMapper[O]) *PagingReader[O] {
	return &PagingReader[O]{
		name:       name,
		db:         db,
		driverType: driverType,
		query:      query,
		args:       args,
		pageSize:   pageSize,
		mapper:     mapper,
		ec:         model.NewExecutionContext(),
	}
}

// Open restores the page offset from the checkpointed position.
func (r *PagingReader[O]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if r.pageSize <= 0 {
		return exception.NewBatchErrorf(moduleName, "reader '%s': pageSize must be positive", r.name)
	}
	r.ec = ec.Copy()
	r.offset = 0
	if v, ok := ec.GetInt(positionKey); ok {
		r.offset = int64(v)
	}
	r.page = nil
	r.pageIndex = 0
	r.exhausted = false
	r.opened = true
	return nil
}

// Read returns the next item, fetching the next page when the current one
// is consumed.
func (r *PagingReader[O]) Read(ctx context.Context) (O, error) {
	var zero O
	if !r.opened {
		return zero, exception.NewBatchErrorf(moduleName, "reader '%s': Read called before Open", r.name)
	}
	if r.pageIndex >= len(r.page) {
		if r.exhausted {
			return zero, port.ErrNoMoreItems
		}
		if err := r.fetchPage(ctx); err != nil {
			return zero, err
		}
		if len(r.page) == 0 {
			return zero, port.ErrNoMoreItems
		}
	}
	item := r.page[r.pageIndex]
	r.pageIndex++
	r.offset++
	return item, nil
}

func (r *PagingReader[O]) fetchPage(ctx context.Context) error {
	paged := fmt.Sprintf("%s LIMIT %d OFFSET %d", r.query, r.pageSize, r.offset)
	rows, err := r.db.QueryContext(ctx, Rebind(r.driverType, paged), r.args...)
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "reader '%s': page query failed at offset %d: %w", r.name, r.offset, err)
	}
	defer rows.Close()

	r.page = r.page[:0]
	r.pageIndex = 0
	for rows.Next() {
		item, err := r.mapper(rows)
		if err != nil {
			return exception.NewBatchErrorf(moduleName, "reader '%s': failed to map row: %w", r.name, err)
		}
		r.page = append(r.page, item)
	}
	if err := rows.Err(); err != nil {
		return exception.NewBatchErrorf(moduleName, "reader '%s': row iteration failed: %w", r.name, err)
	}
	if len(r.page) < r.pageSize {
		r.exhausted = true
	}
	return nil
}

func (r *PagingReader[O]) Close(ctx context.Context) error {
	r.page = nil
	r.opened = false
	return nil
}

func (r *PagingReader[O]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec.Copy()
	return nil
}

func (r *PagingReader[O]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	ec := r.ec.Copy()
	ec.Put(positionKey, r.offset)
	return ec, nil
}
