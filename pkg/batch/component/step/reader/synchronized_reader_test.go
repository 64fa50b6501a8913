package reader_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

// countingReader hands out sequential ints and records lifecycle calls.
type countingReader struct {
	limit  int
	next   int
	opens  int
	closes int
}

func (r *countingReader) Open(ctx context.Context, ec model.ExecutionContext) error {
	r.opens++
	return nil
}

func (r *countingReader) Read(ctx context.Context) (int, error) {
	if r.next >= r.limit {
		return 0, port.ErrNoMoreItems
	}
	r.next++
	return r.next, nil
}

func (r *countingReader) Close(ctx context.Context) error {
	r.closes++
	return nil
}

func (r *countingReader) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	return nil
}

func (r *countingReader) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return model.NewExecutionContext(), nil
}

func TestSynchronizedReader_OpensAndClosesDelegateOnce(t *testing.T) {
	ctx := context.Background()
	delegate := &countingReader{limit: 1}
	r := reader.NewSynchronizedReader[int](delegate)

	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	assert.Equal(t, 1, delegate.opens)

	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))
	assert.Equal(t, 1, delegate.closes)
}

func TestSynchronizedReader_ConcurrentReadersShareOneSequence(t *testing.T) {
	ctx := context.Background()
	delegate := &countingReader{limit: 200}
	r := reader.NewSynchronizedReader[int](delegate)
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))

	var (
		mu   sync.Mutex
		seen = make(map[int]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n, err := r.Read(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				// Every item must be delivered exactly once across branches.
				assert.False(t, seen[n])
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 200)
}
