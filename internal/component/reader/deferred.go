// Package reader builds the SQL readers of the application jobs on the
// framework cursor and paging readers. Readers whose predicates depend on
// the wall clock or on job parameters are constructed lazily at Open so
// each run binds fresh values.
package reader

import (
	"context"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "app_reader"

// deferredReader delays delegate construction until Open, when the
// running StepExecution and the current time are available.
type deferredReader[O any] struct {
	build    func(ctx context.Context) (port.ItemReader[O], error)
	delegate port.ItemReader[O]
	ec       model.ExecutionContext
}

var _ port.ItemReader[any] = (*deferredReader[any])(nil)

func newDeferredReader[O any](build func(ctx context.Context) (port.ItemReader[O], error)) *deferredReader[O] {
	return &deferredReader[O]{build: build, ec: model.NewExecutionContext()}
}

func (r *deferredReader[O]) Open(ctx context.Context, ec model.ExecutionContext) error {
	delegate, err := r.build(ctx)
	if err != nil {
		return err
	}
	r.delegate = delegate
	return r.delegate.Open(ctx, ec)
}

func (r *deferredReader[O]) Read(ctx context.Context) (O, error) {
	var zero O
	if r.delegate == nil {
		return zero, exception.NewBatchErrorf(moduleName, "Read called before Open")
	}
	return r.delegate.Read(ctx)
}

func (r *deferredReader[O]) Close(ctx context.Context) error {
	if r.delegate == nil {
		return nil
	}
	return r.delegate.Close(ctx)
}

func (r *deferredReader[O]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec.Copy()
	if r.delegate != nil {
		return r.delegate.SetExecutionContext(ctx, ec)
	}
	return nil
}

func (r *deferredReader[O]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	if r.delegate != nil {
		return r.delegate.GetExecutionContext(ctx)
	}
	return r.ec.Copy(), nil
}
