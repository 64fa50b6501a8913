package inmemory

import (
	"context"
	"fmt"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/core/domain/repository"
)

// SaveJobInstance persists a new JobInstance. Saving an existing ID is an
// error.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobInstances[instance.ID]; exists {
		return fmt.Errorf("job instance %s already exists", instance.ID)
	}
	r.jobInstances[instance.ID] = instance
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instance, ok := r.jobInstances[id]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	return instance, nil
}

// FindJobInstanceByJobNameAndParameters finds a JobInstance by job name
// and exact parameters.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ji := range r.jobInstances {
		if ji.JobName == jobName && ji.Parameters.Equal(params) {
			return ji, nil
		}
	}
	return nil, repository.ErrJobInstanceNotFound
}

// GetJobNames returns all distinct job names with recorded instances.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	unique := make(map[string]struct{})
	for _, ji := range r.jobInstances {
		unique[ji.JobName] = struct{}{}
	}
	names := make([]string, 0, len(unique))
	for name := range unique {
		names = append(names, name)
	}
	return names, nil
}
