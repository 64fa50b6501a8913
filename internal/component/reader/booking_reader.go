package reader

import (
	"context"
	"database/sql"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/internal/params"
	fwreader "github.com/tigerroll/passbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const upcomingBookingQuery = `
SELECT booking_seq, user_id, status, started_at, ended_at, statistics_at
FROM bookings
WHERE status = ? AND started_at <= ?
ORDER BY booking_seq`

const bookingRangeQuery = `
SELECT booking_seq, user_id, status, started_at, ended_at, statistics_at
FROM bookings
WHERE ended_at >= ? AND ended_at < ?
ORDER BY booking_seq`

// NewUpcomingBookingReader pages over READY bookings starting within the
// lead window. Page mode is safe here: the step writes notifications, not
// bookings, so the predicate's result set is stable during the run.
func NewUpcomingBookingReader(db *sql.DB, driverType string, leadWindow time.Duration, pageSize int, now func() time.Time) port.ItemReader[entity.Booking] {
	return newDeferredReader(func(ctx context.Context) (port.ItemReader[entity.Booking], error) {
		deadline := now().UTC().Add(leadWindow)
		args := []interface{}{entity.BookingStatusReady, deadline}
		return fwreader.NewPagingReader("upcomingBookingReader", db, driverType, upcomingBookingQuery, args, pageSize, scanBooking), nil
	})
}

// NewBookingRangeReader streams bookings whose class ended inside the
// job's [from, to) window. The window comes from the job parameters of
// the running execution.
func NewBookingRangeReader(db *sql.DB, driverType string) port.ItemReader[entity.Booking] {
	return newDeferredReader(func(ctx context.Context) (port.ItemReader[entity.Booking], error) {
		se, ok := port.StepExecutionFromContext(ctx)
		if !ok || se.JobExecution == nil {
			return nil, exception.NewBatchErrorf(moduleName, "booking range reader requires a running step execution")
		}
		from, to, err := params.TimeRange(se.JobExecution.Parameters)
		if err != nil {
			return nil, err
		}
		args := []interface{}{from.UTC(), to.UTC()}
		return fwreader.NewCursorReader("bookingRangeReader", db, driverType, bookingRangeQuery, args, scanBooking), nil
	})
}

func scanBooking(rows *sql.Rows) (entity.Booking, error) {
	var b entity.Booking
	err := rows.Scan(&b.BookingSeq, &b.UserID, &b.Status, &b.StartedAt, &b.EndedAt, &b.StatisticsAt)
	return b, err
}
