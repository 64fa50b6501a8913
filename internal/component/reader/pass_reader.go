package reader

import (
	"context"
	"database/sql"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	fwreader "github.com/tigerroll/passbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
)

const expiringPassQuery = `
SELECT pass_seq, package_seq, user_id, status, remaining_count, started_at, ended_at, expired_at
FROM passes
WHERE status = ? AND ended_at <= ?
ORDER BY pass_seq`

// NewExpiringPassReader streams passes that are IN_PROGRESS with an
// elapsed validity window. The expiry cutoff is taken from now() at Open
// so every run evaluates against its own start time. The writer flips
// the status the predicate selects on, so on restart the re-executed
// query already excludes the committed rows; position restore stays off
// or pending rows would be skipped in their place.
func NewExpiringPassReader(db *sql.DB, driverType string, now func() time.Time) port.ItemReader[entity.Pass] {
	return newDeferredReader(func(ctx context.Context) (port.ItemReader[entity.Pass], error) {
		args := []interface{}{entity.PassStatusInProgress, now().UTC()}
		return fwreader.NewCursorReader("expiringPassReader", db, driverType, expiringPassQuery, args, scanPass).
			DisablePositionRestore(), nil
	})
}

func scanPass(rows *sql.Rows) (entity.Pass, error) {
	var p entity.Pass
	err := rows.Scan(&p.PassSeq, &p.PackageSeq, &p.UserID, &p.Status, &p.RemainingCount, &p.StartedAt, &p.EndedAt, &p.ExpiredAt)
	return p, err
}
