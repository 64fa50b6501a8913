// Package job provides the registry through which applications expose
// their jobs to the launcher.
package job

import (
	"sort"
	"sync"

	"github.com/tigerroll/passbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "job_registry"

// Builder constructs a job instance on demand.
type Builder func() (port.Job, error)

// Registration binds a job name to its builder. Applications contribute
// registrations through the "jobs" value group.
type Registration struct {
	Name  string
	Build Builder
}

// Registry holds the registered job builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates a registry from the given registrations.
func NewRegistry(registrations []Registration) (*Registry, error) {
	r := &Registry{builders: make(map[string]Builder, len(registrations))}
	for _, reg := range registrations {
		if err := r.Register(reg.Name, reg.Build); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a builder under name; duplicate names are rejected.
func (r *Registry) Register(name string, build Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[name]; exists {
		return exception.NewBatchErrorf(moduleName, "job '%s' is already registered", name)
	}
	r.builders[name] = build
	return nil
}

// CreateJob builds the job registered under name.
func (r *Registry) CreateJob(name string) (port.Job, error) {
	r.mu.RLock()
	build, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchErrorf(moduleName, "job '%s' is not registered", name)
	}
	return build()
}

// JobNames returns the registered names, sorted.
func (r *Registry) JobNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
