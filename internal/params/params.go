// Package params parses and validates job parameters shared by the
// application jobs.
package params

import (
	"time"

	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/exception"
)

const moduleName = "params"

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp parameter value.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, exception.NewBatchErrorf(moduleName, "unparseable timestamp %q", value)
}

// TimeRange extracts the required from/to parameters as a half-open
// interval [from, to).
func TimeRange(p model.JobParameters) (time.Time, time.Time, error) {
	fromRaw := p.GetString("from")
	if fromRaw == "" {
		return time.Time{}, time.Time{}, exception.NewBatchErrorf(moduleName, "required parameter 'from' is missing")
	}
	toRaw := p.GetString("to")
	if toRaw == "" {
		return time.Time{}, time.Time{}, exception.NewBatchErrorf(moduleName, "required parameter 'to' is missing")
	}
	from, err := ParseTime(fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, exception.NewBatchErrorf(moduleName, "invalid 'from' parameter: %w", err)
	}
	to, err := ParseTime(toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, exception.NewBatchErrorf(moduleName, "invalid 'to' parameter: %w", err)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, exception.NewBatchErrorf(moduleName, "'from' (%s) must be before 'to' (%s)", from, to)
	}
	return from, to, nil
}

// ValidateTimeRange is the parameter validator used by jobs that require
// a from/to window.
func ValidateTimeRange(p model.JobParameters) error {
	_, _, err := TimeRange(p)
	return err
}
