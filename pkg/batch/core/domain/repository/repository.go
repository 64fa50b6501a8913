// Package repository defines persistence ports for batch execution metadata.
package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
)

// ErrCheckpointDataNotFound is returned when checkpoint data is not found.
var ErrCheckpointDataNotFound = errors.New("checkpoint data not found")

// CheckpointDataRepository defines operations for persisting and retrieving
// step restart positions.
type CheckpointDataRepository interface {
	// SaveCheckpointData persists or updates the ExecutionContext associated
	// with the given StepExecution ID.
	SaveCheckpointData(ctx context.Context, data *model.CheckpointData) error

	// FindCheckpointData retrieves the ExecutionContext associated with the
	// given StepExecution ID.
	FindCheckpointData(ctx context.Context, stepExecutionID string) (*model.CheckpointData, error)
}

// JobRepository persists and manages batch execution metadata. It embeds
// smaller repository interfaces to separate concerns.
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution
	CheckpointDataRepository

	// Close releases resources used by the repository.
	Close() error
}
