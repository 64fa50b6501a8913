package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// ParquetWriterConfig configures a ParquetWriter.
type ParquetWriterConfig struct {
	// StorageRef names the storage connection that receives the files.
	StorageRef string
	// OutputBaseDir is the object prefix the files are written under.
	OutputBaseDir string
	// CompressionType is SNAPPY, GZIP or NONE. Defaults to SNAPPY.
	CompressionType string
}

// ParquetWriter buffers items by partition key and, on Close, renders one
// Parquet file per partition and uploads it to the configured storage
// connection under a Hive-style path (OutputBaseDir/<partition>/...).
// The chunk transaction is ignored; storage uploads are not transactional.
type ParquetWriter[T any] struct {
	name             string
	config           ParquetWriterConfig
	resolver         *storage.ConnectionResolver
	itemPrototype    *T
	partitionKeyFunc func(T) (string, error)

	conn     storage.StorageConnection
	buffered map[string][]T
	total    int64
	ec       model.ExecutionContext
}

var _ port.ItemWriter[any] = (*ParquetWriter[any])(nil)

// NewParquetWriter builds a writer. itemPrototype is a zero-value pointer
// used for schema reflection; partitionKeyFunc derives the partition
// directory (for example "dt=2026-01-02") from each item.
func NewParquetWriter[T any](
	name string,
	config ParquetWriterConfig,
	resolver *storage.ConnectionResolver,
	itemPrototype *T,
	partitionKeyFunc func(T) (string, error),
) (*ParquetWriter[T], error) {
	if config.StorageRef == "" {
		return nil, exception.NewBatchErrorf(moduleName, "parquet writer '%s' requires a storageRef", name)
	}
	if config.OutputBaseDir == "" {
		return nil, exception.NewBatchErrorf(moduleName, "parquet writer '%s' requires an outputBaseDir", name)
	}
	if config.CompressionType == "" {
		config.CompressionType = "SNAPPY"
	}
	if _, err := compressionCodec(config.CompressionType); err != nil {
		return nil, exception.NewBatchErrorf(moduleName, "parquet writer '%s': %w", name, err)
	}
	return &ParquetWriter[T]{
		name:             name,
		config:           config,
		resolver:         resolver,
		itemPrototype:    itemPrototype,
		partitionKeyFunc: partitionKeyFunc,
		buffered:         make(map[string][]T),
		ec:               model.NewExecutionContext(),
	}, nil
}

// Open resolves the storage connection and clears the buffer.
func (w *ParquetWriter[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	conn, err := w.resolver.Resolve(w.config.StorageRef)
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "parquet writer '%s': failed to resolve storage '%s': %w", w.name, w.config.StorageRef, err)
	}
	w.conn = conn
	w.ec = ec.Copy()
	w.buffered = make(map[string][]T)
	w.total = 0
	return nil
}

// Write buffers items by partition key. Files are only produced on Close.
func (w *ParquetWriter[T]) Write(ctx context.Context, txn tx.Tx, items []T) error {
	for _, item := range items {
		key, err := w.partitionKeyFunc(item)
		if err != nil {
			return exception.NewBatchErrorf(moduleName, "parquet writer '%s': failed to derive partition key: %w", w.name, err)
		}
		w.buffered[key] = append(w.buffered[key], item)
		w.total++
	}
	return nil
}

// Close renders and uploads one file per buffered partition. Failures are
// collected per partition so one bad partition does not block the rest.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	if w.total == 0 {
		logger.Infof("parquet writer '%s': nothing buffered, no files produced", w.name)
		return nil
	}
	codec, err := compressionCodec(w.config.CompressionType)
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "parquet writer '%s': %w", w.name, err)
	}

	var errs error
	for partitionKey, items := range w.buffered {
		if err := w.flushPartition(ctx, partitionKey, items, codec); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	w.buffered = make(map[string][]T)
	w.total = 0
	return errs
}

func (w *ParquetWriter[T]) flushPartition(ctx context.Context, partitionKey string, items []T, codec parquet.CompressionCodec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewBatchErrorf(moduleName, "parquet writer '%s': panic while rendering partition '%s': %v", w.name, partitionKey, r)
		}
	}()

	buf := new(bytes.Buffer)
	pw, err := parquetwriter.NewParquetWriterFromWriter(buf, w.itemPrototype, int64(len(items)))
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "parquet writer '%s': failed to create writer for partition '%s': %w", w.name, partitionKey, err)
	}
	pw.CompressionType = codec

	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return exception.NewBatchErrorf(moduleName, "parquet writer '%s': failed to write item in partition '%s': %w", w.name, partitionKey, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return exception.NewBatchErrorf(moduleName, "parquet writer '%s': failed to finalize partition '%s': %w", w.name, partitionKey, err)
	}

	fileName := fmt.Sprintf("data_%s_%s.parquet", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
	objectName := path.Join(w.config.OutputBaseDir, partitionKey, fileName)
	if err := w.conn.Upload(ctx, "", objectName, buf, "application/octet-stream"); err != nil {
		return exception.NewBatchErrorf(moduleName, "parquet writer '%s': failed to upload partition '%s' to '%s': %w", w.name, partitionKey, objectName, err)
	}
	logger.Infof("parquet writer '%s': uploaded %d records for partition '%s' to %s", w.name, len(items), partitionKey, objectName)
	return nil
}

func (w *ParquetWriter[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	w.ec = ec.Copy()
	return nil
}

func (w *ParquetWriter[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return w.ec.Copy(), nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
