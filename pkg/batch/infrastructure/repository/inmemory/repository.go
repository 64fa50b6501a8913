// Package inmemory provides an in-memory implementation of the
// JobRepository interface. Execution metadata is process-local; the
// scheduler re-invokes jobs with predicates that exclude already-processed
// rows, so metadata does not need to outlive the process.
package inmemory

import (
	"sync"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
)

// InMemoryJobRepository holds all job-related data in in-memory maps.
type InMemoryJobRepository struct {
	jobInstances   map[string]*model.JobInstance
	jobExecutions  map[string]*model.JobExecution
	stepExecutions map[string]*model.StepExecution
	checkpointData map[string]*model.CheckpointData
	mu             sync.RWMutex
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates an empty repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*model.JobExecution),
		stepExecutions: make(map[string]*model.StepExecution),
		checkpointData: make(map[string]*model.CheckpointData),
	}
}

// Close releases resources used by the repository. The in-memory
// repository holds none.
func (r *InMemoryJobRepository) Close() error {
	return nil
}
