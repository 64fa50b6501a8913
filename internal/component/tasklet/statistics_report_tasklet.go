package tasklet

import (
	"context"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/internal/params"
	fwwriter "github.com/tigerroll/passbatch/pkg/batch/component/step/writer"
	"github.com/tigerroll/passbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

// StatisticsRecord is one row of an exported statistics report.
type StatisticsRecord struct {
	PeriodStart    string `parquet:"name=period_start, type=BYTE_ARRAY, convertedtype=UTF8"`
	AllCount       int32  `parquet:"name=all_count, type=INT32"`
	AttendedCount  int32  `parquet:"name=attended_count, type=INT32"`
	CancelledCount int32  `parquet:"name=cancelled_count, type=INT32"`
}

// statisticsReportTasklet aggregates the statistics table over the job's
// [from, to) window into period buckets and exports them as one Parquet
// report through the storage adapter. Daily and weekly reports differ
// only in the bucketing function.
type statisticsReportTasklet struct {
	name         string
	resolver     *storage.ConnectionResolver
	writerConfig fwwriter.ParquetWriterConfig
	bucketStart  func(time.Time) time.Time
}

var _ port.Tasklet = (*statisticsReportTasklet)(nil)

// NewDailyStatisticsTasklet exports one report row per day.
func NewDailyStatisticsTasklet(resolver *storage.ConnectionResolver, writerConfig fwwriter.ParquetWriterConfig) port.Tasklet {
	return &statisticsReportTasklet{
		name:         "makeDailyStatistics",
		resolver:     resolver,
		writerConfig: writerConfig,
		bucketStart:  dayStart,
	}
}

// NewWeeklyStatisticsTasklet exports one report row per ISO week
// (Monday start).
func NewWeeklyStatisticsTasklet(resolver *storage.ConnectionResolver, writerConfig fwwriter.ParquetWriterConfig) port.Tasklet {
	return &statisticsReportTasklet{
		name:         "makeWeeklyStatistics",
		resolver:     resolver,
		writerConfig: writerConfig,
		bucketStart:  weekStart,
	}
}

func (t *statisticsReportTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	txn, ok := tx.TxFromContext(ctx)
	if !ok {
		return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "%s requires a transaction in context", t.name)
	}
	if stepExecution.JobExecution == nil {
		return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "%s requires a running job execution", t.name)
	}
	from, to, err := params.TimeRange(stepExecution.JobExecution.Parameters)
	if err != nil {
		return model.ExitStatusFailed, err
	}

	var rows []entity.Statistics
	window := map[string]interface{}{
		"statistics_at >= ?": from.UTC(),
		"statistics_at < ?":  to.UTC(),
	}
	if err := txn.ExecuteQuery(ctx, &rows, entity.Statistics{}.TableName(), window, "statistics_at ASC", 0); err != nil {
		return model.ExitStatusFailed, exception.NewBatchErrorf(moduleName, "%s: failed to load statistics: %w", t.name, err)
	}

	records := t.aggregate(rows, from, to)
	stepExecution.ReadCount += len(rows)

	if len(records) == 0 {
		logger.Infof("%s: no statistics in [%s, %s), no report produced", t.name, from, to)
		return model.ExitStatusCompleted, nil
	}

	writer, err := fwwriter.NewParquetWriter(t.name, t.writerConfig, t.resolver, new(StatisticsRecord), recordPartitionKey)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	if err := writer.Open(ctx, model.NewExecutionContext()); err != nil {
		return model.ExitStatusFailed, err
	}
	if err := writer.Write(ctx, nil, records); err != nil {
		writer.Close(ctx)
		return model.ExitStatusFailed, err
	}
	if err := writer.Close(ctx); err != nil {
		return model.ExitStatusFailed, err
	}
	stepExecution.WriteCount += len(records)

	logger.Infof("%s: exported %d report rows for [%s, %s)", t.name, len(records), from, to)
	return model.ExitStatusCompleted, nil
}

func (t *statisticsReportTasklet) Close(ctx context.Context) error { return nil }

// aggregate folds the window's buckets into period records, ordered by
// period start.
func (t *statisticsReportTasklet) aggregate(rows []entity.Statistics, from, to time.Time) []StatisticsRecord {
	index := make(map[string]int)
	var records []StatisticsRecord
	for _, row := range rows {
		at := row.StatisticsAt.UTC()
		if at.Before(from.UTC()) || !at.Before(to.UTC()) {
			continue
		}
		key := t.bucketStart(at).Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			records = append(records, StatisticsRecord{PeriodStart: key})
			i = len(records) - 1
			index[key] = i
		}
		records[i].AllCount += int32(row.AllCount)
		records[i].AttendedCount += int32(row.AttendedCount)
		records[i].CancelledCount += int32(row.CancelledCount)
	}
	return records
}

func recordPartitionKey(r StatisticsRecord) (string, error) {
	return "dt=" + r.PeriodStart, nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart returns the Monday of t's ISO week.
func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
