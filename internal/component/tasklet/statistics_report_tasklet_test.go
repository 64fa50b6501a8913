package tasklet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/internal/entity"
	fwwriter "github.com/tigerroll/passbatch/pkg/batch/component/step/writer"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/passbatch/pkg/batch/core/tx"
	testutil "github.com/tigerroll/passbatch/pkg/batch/test"
)

func TestDayStart(t *testing.T) {
	at := time.Date(2026, 3, 10, 17, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), dayStart(at))
}

func TestWeekStart_ReturnsMonday(t *testing.T) {
	// 2026-03-09 is a Monday.
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	for d := 0; d < 7; d++ {
		at := monday.AddDate(0, 0, d).Add(13 * time.Hour)
		assert.Equal(t, monday, weekStart(at), "day offset %d", d)
	}

	// A Sunday belongs to the week of the preceding Monday.
	sunday := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, weekStart(sunday))
}

func TestAggregate_BucketsWindowAndSkipsOutsideRows(t *testing.T) {
	reportTasklet := &statisticsReportTasklet{name: "makeDailyStatistics", bucketStart: dayStart}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	rows := []entity.Statistics{
		{StatisticsAt: time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC), AllCount: 9}, // before window
		{StatisticsAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), AllCount: 3, AttendedCount: 2},
		{StatisticsAt: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), AllCount: 2, CancelledCount: 1},
		{StatisticsAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), AllCount: 4, AttendedCount: 4},
		{StatisticsAt: to, AllCount: 9}, // 'to' is exclusive
	}

	records := reportTasklet.aggregate(rows, from, to)
	require.Len(t, records, 2)

	assert.Equal(t, "2026-03-01", records[0].PeriodStart)
	assert.Equal(t, int32(5), records[0].AllCount)
	assert.Equal(t, int32(2), records[0].AttendedCount)
	assert.Equal(t, int32(1), records[0].CancelledCount)

	assert.Equal(t, "2026-03-02", records[1].PeriodStart)
	assert.Equal(t, int32(4), records[1].AllCount)
}

func TestAggregate_WeeklyBucketsSpanDays(t *testing.T) {
	reportTasklet := &statisticsReportTasklet{name: "makeWeeklyStatistics", bucketStart: weekStart}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	rows := []entity.Statistics{
		{StatisticsAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), AllCount: 1}, // Tuesday
		{StatisticsAt: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), AllCount: 2}, // Friday, same week
		{StatisticsAt: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), AllCount: 4}, // next Monday
	}

	records := reportTasklet.aggregate(rows, from, to)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-03-09", records[0].PeriodStart)
	assert.Equal(t, int32(3), records[0].AllCount)
	assert.Equal(t, "2026-03-16", records[1].PeriodStart)
	assert.Equal(t, int32(4), records[1].AllCount)
}

func TestExecute_QueriesOnlyTheReportWindow(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	txn := new(testutil.MockTx)
	txn.On("ExecuteQuery", mock.Anything, mock.AnythingOfType("*[]entity.Statistics"), "statistics",
		map[string]interface{}{
			"statistics_at >= ?": from,
			"statistics_at < ?":  to,
		}, "statistics_at ASC", 0).Return(nil)

	jobParams := model.NewJobParameters()
	jobParams.Put("from", "2026-03-01")
	jobParams.Put("to", "2026-04-01")
	je := model.NewJobExecution(model.NewID(), "makeStatisticsJob", jobParams)
	se := model.NewStepExecution("makeDailyStatistics", je)

	reportTasklet := NewDailyStatisticsTasklet(nil, fwwriter.ParquetWriterConfig{})
	ctx := tx.ContextWithTx(context.Background(), txn)

	status, err := reportTasklet.Execute(ctx, se)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)
	txn.AssertExpectations(t)
}

func TestRecordPartitionKey(t *testing.T) {
	key, err := recordPartitionKey(StatisticsRecord{PeriodStart: "2026-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "dt=2026-03-01", key)
}
