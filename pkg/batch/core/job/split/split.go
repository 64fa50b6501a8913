// Package split defines the parallel flow element: a set of steps launched
// together and joined at a barrier.
package split

import "github.com/tigerroll/passbatch/pkg/batch/core/application/port"

// Split is a flow element whose steps run concurrently. The runner waits
// for every branch before evaluating transitions; one branch failing does
// not cancel its siblings.
type Split struct {
	name  string
	steps []port.Step
}

// NewSplit creates a split over the given steps.
func NewSplit(name string, steps ...port.Step) *Split {
	return &Split{name: name, steps: steps}
}

// Name returns the split's element name.
func (s *Split) Name() string { return s.name }

// Steps returns the branch steps.
func (s *Split) Steps() []port.Step { return s.steps }
