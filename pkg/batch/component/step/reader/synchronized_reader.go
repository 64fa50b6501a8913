package reader

import (
	"context"
	"sync"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

// SynchronizedReader serializes access to a delegate reader so it can be
// shared by steps running in parallel branches of a split.
type SynchronizedReader[O any] struct {
	delegate port.ItemReader[O]
	mu       sync.Mutex
	opened   bool
	closed   bool
}

var _ port.ItemReader[any] = (*SynchronizedReader[any])(nil)

// NewSynchronizedReader wraps delegate with a mutex.
func NewSynchronizedReader[O any](delegate port.ItemReader[O]) *SynchronizedReader[O] {
	return &SynchronizedReader[O]{delegate: delegate}
}

// Open opens the delegate once; concurrent branches share the position.
func (r *SynchronizedReader[O]) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return nil
	}
	if err := r.delegate.Open(ctx, ec); err != nil {
		return err
	}
	r.opened = true
	return nil
}

func (r *SynchronizedReader[O]) Read(ctx context.Context) (O, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delegate.Read(ctx)
}

// Close closes the delegate on the first call; later calls from sibling
// branches are no-ops.
func (r *SynchronizedReader[O]) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.delegate.Close(ctx)
}

func (r *SynchronizedReader[O]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delegate.SetExecutionContext(ctx, ec)
}

func (r *SynchronizedReader[O]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delegate.GetExecutionContext(ctx)
}
