package reader

import (
	"database/sql"

	"github.com/tigerroll/passbatch/internal/entity"
	fwreader "github.com/tigerroll/passbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
)

const unsentNotificationQuery = `
SELECT notification_seq, booking_seq, user_id, event, sent
FROM notifications
WHERE event = ? AND sent = ?
ORDER BY notification_seq`

// NewUnsentNotificationReader streams unsent notifications of one event
// type through a single cursor, wrapped for shared use. The send step
// marks sent=true as it goes, so on restart the re-executed query is
// already reduced to the pending rows; position restore stays off or it
// would skip that many pending rows. The synchronized wrapper keeps the
// cursor safe if the step ever runs in a split.
func NewUnsentNotificationReader(db *sql.DB, driverType, event string) port.ItemReader[entity.Notification] {
	cursor := fwreader.NewCursorReader("unsentNotificationReader", db, driverType, unsentNotificationQuery,
		[]interface{}{event, false}, scanNotification).DisablePositionRestore()
	return fwreader.NewSynchronizedReader[entity.Notification](cursor)
}

func scanNotification(rows *sql.Rows) (entity.Notification, error) {
	var n entity.Notification
	err := rows.Scan(&n.NotificationSeq, &n.BookingSeq, &n.UserID, &n.Event, &n.Sent)
	return n, err
}
