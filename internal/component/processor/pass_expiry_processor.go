// Package processor holds the pure item transformations of the
// application jobs.
package processor

import (
	"context"
	"time"

	"github.com/tigerroll/passbatch/internal/entity"
	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
)

// PassExpiryProcessor marks an in-progress pass expired once its validity
// window has elapsed. Passes outside the predicate are filtered, which
// guards against clock skew between the reader's query and this check.
type PassExpiryProcessor struct {
	now func() time.Time
}

var _ port.ItemProcessor[entity.Pass, *entity.Pass] = (*PassExpiryProcessor)(nil)

// NewPassExpiryProcessor builds a processor; now defaults to time.Now.
func NewPassExpiryProcessor(now func() time.Time) *PassExpiryProcessor {
	if now == nil {
		now = time.Now
	}
	return &PassExpiryProcessor{now: now}
}

func (p *PassExpiryProcessor) Process(ctx context.Context, item entity.Pass) (*entity.Pass, error) {
	nowAt := p.now().UTC()
	if item.Status != entity.PassStatusInProgress || item.EndedAt.After(nowAt) {
		return nil, nil
	}
	item.Status = entity.PassStatusExpired
	item.ExpiredAt = &nowAt
	item.UpdatedAt = nowAt
	return &item, nil
}
