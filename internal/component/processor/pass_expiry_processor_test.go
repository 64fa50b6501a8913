package processor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/passbatch/internal/component/processor"
	"github.com/tigerroll/passbatch/internal/entity"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func TestPassExpiryProcessor_ExpiresElapsedInProgressPass(t *testing.T) {
	p := processor.NewPassExpiryProcessor(nowFunc)

	out, err := p.Process(context.Background(), entity.Pass{
		PassSeq: 1,
		Status:  entity.PassStatusInProgress,
		EndedAt: fixedNow.Add(-time.Minute),
	})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, entity.PassStatusExpired, out.Status)
	require.NotNil(t, out.ExpiredAt)
	assert.Equal(t, fixedNow, *out.ExpiredAt)
	assert.Equal(t, fixedNow, out.UpdatedAt)
}

func TestPassExpiryProcessor_EndTimeExactlyNowExpires(t *testing.T) {
	p := processor.NewPassExpiryProcessor(nowFunc)

	out, err := p.Process(context.Background(), entity.Pass{
		Status:  entity.PassStatusInProgress,
		EndedAt: fixedNow,
	})
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestPassExpiryProcessor_FiltersStillValidPass(t *testing.T) {
	p := processor.NewPassExpiryProcessor(nowFunc)

	out, err := p.Process(context.Background(), entity.Pass{
		Status:  entity.PassStatusInProgress,
		EndedAt: fixedNow.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestPassExpiryProcessor_FiltersNonInProgressPass(t *testing.T) {
	p := processor.NewPassExpiryProcessor(nowFunc)

	for _, status := range []string{entity.PassStatusReady, entity.PassStatusExpired} {
		out, err := p.Process(context.Background(), entity.Pass{
			Status:  status,
			EndedAt: fixedNow.Add(-time.Hour),
		})
		require.NoError(t, err)
		assert.Nil(t, out, "status %s must be filtered", status)
	}
}
