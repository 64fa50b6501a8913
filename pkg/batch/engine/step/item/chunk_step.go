// Package item implements the chunk-oriented step: read up to chunk size,
// process, write, commit, checkpoint, repeat until the reader is exhausted.
package item

import (
	"context"
	"errors"
	"io"
	"reflect"
	"time"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/passbatch/pkg/batch/core/metrics"
	coretx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

const moduleName = "chunk_step"

// Execution context keys for restartable counters.
const (
	readCountKey  = "readCount"
	writeCountKey = "writeCount"
)

// ChunkStep executes a reader/processor/writer pipeline in chunks, one
// transaction per chunk. A chunk failure rolls back only that chunk;
// previously committed chunks stand.
type ChunkStep[I any, O any] struct {
	name      string
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	chunkSize int
	repo      repository.JobRepository
	txManager coretx.TransactionManager
	listeners []port.StepListener
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

var _ port.Step = (*ChunkStep[any, any])(nil)

// NewChunkStep assembles a chunk step. processor may be nil when the item
// type flows through unchanged (I and O must then be identical).
func NewChunkStep[I any, O any](
	name string,
	reader port.ItemReader[I],
	processor port.ItemProcessor[I, O],
	writer port.ItemWriter[O],
	chunkSize int,
	repo repository.JobRepository,
	txManager coretx.TransactionManager,
	listeners []port.StepListener,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *ChunkStep[I, O] {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &ChunkStep[I, O]{
		name:      name,
		reader:    reader,
		processor: processor,
		writer:    writer,
		chunkSize: chunkSize,
		repo:      repo,
		txManager: txManager,
		listeners: listeners,
		recorder:  recorder,
		tracer:    tracer,
	}
}

// StepName returns the step's name within the flow.
func (s *ChunkStep[I, O]) StepName() string { return s.name }

// Execute runs the chunk loop until the reader reports ErrNoMoreItems.
func (s *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) error {
	ctx, endSpan := s.tracer.StartStepSpan(ctx, s.name)
	defer endSpan()
	ctx = port.ContextWithStepExecution(ctx, stepExecution)

	s.recorder.RecordStepStart(ctx, stepExecution)
	defer s.recorder.RecordStepEnd(ctx, stepExecution)

	stepExecution.MarkAsStarted()
	if err := s.repo.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(moduleName, "failed to persist step start", err, false, false)
	}

	for _, l := range s.listeners {
		l.BeforeStep(ctx, stepExecution)
	}

	s.restoreCheckpoint(ctx, stepExecution)

	if err := s.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return s.failStep(ctx, stepExecution, exception.NewBatchError(moduleName, "failed to open reader", err, false, false))
	}
	if err := s.writer.Open(ctx, stepExecution.ExecutionContext); err != nil {
		_ = s.reader.Close(ctx)
		return s.failStep(ctx, stepExecution, exception.NewBatchError(moduleName, "failed to open writer", err, false, false))
	}

	loopErr := s.chunkLoop(ctx, stepExecution)

	if err := s.reader.Close(ctx); err != nil && loopErr == nil {
		loopErr = exception.NewBatchError(moduleName, "failed to close reader", err, false, false)
	}
	if err := s.writer.Close(ctx); err != nil && loopErr == nil {
		loopErr = exception.NewBatchError(moduleName, "failed to close writer", err, false, false)
	}

	if loopErr != nil {
		// Leave the ExecutionContext at the last committed checkpoint
		// (merged per-commit in saveCheckpoint). Merging the component
		// contexts here would record the position of the rolled-back
		// chunk, and a restart would skip its items.
		return s.failStep(ctx, stepExecution, loopErr)
	}

	s.mergeComponentContexts(ctx, stepExecution)

	stepExecution.MarkAsCompleted()
	for _, l := range s.listeners {
		l.AfterStep(ctx, stepExecution)
	}
	if err := s.repo.UpdateStepExecution(ctx, stepExecution); err != nil {
		return exception.NewBatchError(moduleName, "failed to persist step completion", err, false, false)
	}
	logger.Infof("step '%s' completed: read=%d filtered=%d written=%d commits=%d",
		s.name, stepExecution.ReadCount, stepExecution.FilterCount, stepExecution.WriteCount, stepExecution.CommitCount)
	return nil
}

func (s *ChunkStep[I, O]) chunkLoop(ctx context.Context, stepExecution *model.StepExecution) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		eof, err := s.executeChunk(ctx, stepExecution)
		if err != nil {
			return err
		}
		if eof {
			return nil
		}
	}
}

// executeChunk reads, processes and writes one chunk inside one
// transaction, then persists the checkpoint. It reports eof when the
// reader is exhausted.
func (s *ChunkStep[I, O]) executeChunk(ctx context.Context, stepExecution *model.StepExecution) (bool, error) {
	txn, err := s.txManager.Begin(ctx)
	if err != nil {
		return false, exception.NewBatchError(moduleName, "failed to begin chunk transaction", err, false, false)
	}
	txCtx := coretx.ContextWithTx(ctx, txn)

	eof := false
	outputs := make([]O, 0, s.chunkSize)
	readInChunk := 0

	for readInChunk < s.chunkSize {
		item, err := s.reader.Read(txCtx)
		if err != nil {
			if errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF) {
				eof = true
				break
			}
			s.rollbackChunk(ctx, txn, stepExecution)
			return false, exception.NewBatchError(moduleName, "read failed", err, false, false)
		}
		readInChunk++
		stepExecution.ReadCount++
		s.recorder.RecordItemRead(ctx, 1)

		out, err := s.processItem(txCtx, item)
		if err != nil {
			s.rollbackChunk(ctx, txn, stepExecution)
			return false, exception.NewBatchError(moduleName, "process failed", err, false, false)
		}
		if isNilItem(out) {
			stepExecution.FilterCount++
			s.recorder.RecordItemFiltered(ctx, 1)
			continue
		}
		s.recorder.RecordItemProcessed(ctx, 1)
		outputs = append(outputs, out)
	}

	if readInChunk == 0 && eof {
		// Nothing read in this pass; nothing to commit.
		if err := s.txManager.Rollback(txn); err != nil {
			logger.Warnf("step '%s': rollback of empty chunk failed: %v", s.name, err)
		}
		return true, nil
	}

	if len(outputs) > 0 {
		if err := s.writer.Write(txCtx, txn, outputs); err != nil {
			s.rollbackChunk(ctx, txn, stepExecution)
			return false, exception.NewBatchError(moduleName, "write failed", err, false, false)
		}
		stepExecution.WriteCount += len(outputs)
		s.recorder.RecordItemWritten(ctx, len(outputs))
	}

	if err := s.txManager.Commit(txn); err != nil {
		s.recorder.RecordChunkRollback(ctx)
		stepExecution.RollbackCount++
		return false, exception.NewBatchError(moduleName, "failed to commit chunk transaction", err, false, false)
	}
	stepExecution.CommitCount++
	s.recorder.RecordChunkCommit(ctx)

	if err := s.saveCheckpoint(ctx, stepExecution); err != nil {
		return false, err
	}
	return eof, nil
}

func (s *ChunkStep[I, O]) processItem(ctx context.Context, item I) (O, error) {
	if s.processor != nil {
		return s.processor.Process(ctx, item)
	}
	// Passthrough: the step was assembled without a processor, so I and O
	// are the same type.
	out, ok := any(item).(O)
	if !ok {
		var zero O
		return zero, exception.NewBatchErrorf(moduleName, "no processor configured and item type %T does not match output type", item)
	}
	return out, nil
}

func (s *ChunkStep[I, O]) rollbackChunk(ctx context.Context, txn coretx.Tx, stepExecution *model.StepExecution) {
	if err := s.txManager.Rollback(txn); err != nil {
		logger.Errorf("step '%s': chunk rollback failed: %v", s.name, err)
	}
	stepExecution.RollbackCount++
	s.recorder.RecordChunkRollback(ctx)
}

// restoreCheckpoint loads persisted checkpoint data, if any, into the
// step's ExecutionContext and restores the restartable counters.
func (s *ChunkStep[I, O]) restoreCheckpoint(ctx context.Context, stepExecution *model.StepExecution) {
	cp, err := s.repo.FindCheckpointData(ctx, stepExecution.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrCheckpointDataNotFound) {
			logger.Warnf("step '%s': failed to load checkpoint data: %v", s.name, err)
		}
	} else if cp != nil {
		stepExecution.ExecutionContext.Merge(cp.ExecutionContext)
	}
	if n, ok := stepExecution.ExecutionContext.GetInt(readCountKey); ok {
		stepExecution.ReadCount = n
	}
	if n, ok := stepExecution.ExecutionContext.GetInt(writeCountKey); ok {
		stepExecution.WriteCount = n
	}
}

// saveCheckpoint merges the component contexts into the step's
// ExecutionContext and persists it as the restart position.
func (s *ChunkStep[I, O]) saveCheckpoint(ctx context.Context, stepExecution *model.StepExecution) error {
	s.mergeComponentContexts(ctx, stepExecution)
	stepExecution.ExecutionContext.Put(readCountKey, stepExecution.ReadCount)
	stepExecution.ExecutionContext.Put(writeCountKey, stepExecution.WriteCount)

	cp := &model.CheckpointData{
		StepExecutionID:  stepExecution.ID,
		ExecutionContext: stepExecution.ExecutionContext.Copy(),
		LastUpdated:      time.Now(),
	}
	if err := s.repo.SaveCheckpointData(ctx, cp); err != nil {
		return exception.NewBatchError(moduleName, "failed to save checkpoint data", err, false, false)
	}
	return nil
}

func (s *ChunkStep[I, O]) mergeComponentContexts(ctx context.Context, stepExecution *model.StepExecution) {
	if readerEC, err := s.reader.GetExecutionContext(ctx); err == nil && readerEC != nil {
		stepExecution.ExecutionContext.Merge(readerEC)
	}
	if writerEC, err := s.writer.GetExecutionContext(ctx); err == nil && writerEC != nil {
		stepExecution.ExecutionContext.Merge(writerEC)
	}
}

func (s *ChunkStep[I, O]) failStep(ctx context.Context, stepExecution *model.StepExecution, cause error) error {
	s.tracer.RecordError(ctx, cause)
	stepExecution.MarkAsFailed(cause)
	for _, l := range s.listeners {
		l.AfterStep(ctx, stepExecution)
	}
	if err := s.repo.UpdateStepExecution(ctx, stepExecution); err != nil {
		logger.Errorf("step '%s': failed to persist failure: %v", s.name, err)
	}
	return cause
}

// isNilItem reports whether a processed item is nil, treating typed nil
// pointers the same as untyped nil. A nil item filters the input item.
func isNilItem(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
