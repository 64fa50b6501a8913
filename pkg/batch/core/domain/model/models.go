// Package model defines the execution metadata of the batch framework:
// job instances, job/step executions, parameters, execution contexts and
// flow definitions.
package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewID returns a new unique identifier for execution metadata.
func NewID() string {
	return uuid.New().String()
}

// JobStatus represents the lifecycle status of a job or step execution.
type JobStatus string

const (
	BatchStatusStarting   JobStatus = "STARTING"
	BatchStatusStarted    JobStatus = "STARTED"
	BatchStatusStopping   JobStatus = "STOPPING"
	BatchStatusStopped    JobStatus = "STOPPED"
	BatchStatusFailed     JobStatus = "FAILED"
	BatchStatusCompleted  JobStatus = "COMPLETED"
	BatchStatusAbandoned  JobStatus = "ABANDONED"
	BatchStatusUnknown    JobStatus = "UNKNOWN"
	BatchStatusRestarting JobStatus = "RESTARTING"
)

// IsFinished reports whether the status is terminal.
func (s JobStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	}
	return false
}

// ExitStatus is the logical outcome of a job or step, used by flow
// transition rules.
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusExecuting ExitStatus = "EXECUTING"
)

// ToExitStatus maps a JobStatus to the corresponding ExitStatus.
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped, BatchStatusStopping:
		return ExitStatusStopped
	case BatchStatusStarted, BatchStatusStarting, BatchStatusRestarting:
		return ExitStatusExecuting
	default:
		return ExitStatusUnknown
	}
}

// ExecutionContext is a mutable key/value store carried by executions and
// components. Readers and writers persist their restart position in it.
type ExecutionContext map[string]interface{}

// NewExecutionContext returns an empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put stores a value under key.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get retrieves the value stored under key.
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

// GetInt retrieves an integer value. JSON round-trips store numbers as
// float64, so both forms are accepted.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// GetString retrieves a string value.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Copy returns a shallow copy of the context.
func (ec ExecutionContext) Copy() ExecutionContext {
	cp := make(ExecutionContext, len(ec))
	for k, v := range ec {
		cp[k] = v
	}
	return cp
}

// Merge copies all entries of other into ec, overwriting existing keys.
func (ec ExecutionContext) Merge(other ExecutionContext) {
	for k, v := range other {
		ec[k] = v
	}
}

// Value implements driver.Valuer so the context can be stored as JSON.
func (ec ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return nil, nil
	}
	b, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution context: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON-serialized contexts.
func (ec *ExecutionContext) Scan(value interface{}) error {
	if value == nil {
		*ec = NewExecutionContext()
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for execution context", value)
	}
	return json.Unmarshal(data, ec)
}

// JobParameters are the immutable input parameters of a job instance.
// Two parameter sets with the same content identify the same JobInstance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters returns an empty parameter set.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put stores a parameter value.
func (p JobParameters) Put(key string, value interface{}) {
	p.Params[key] = value
}

// GetString returns the string parameter for key, or "" when absent.
func (p JobParameters) GetString(key string) string {
	if v, ok := p.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Hash returns a stable digest of the parameters, computed over the
// canonical (sorted-key) JSON form.
func (p JobParameters) Hash() (string, error) {
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return "", fmt.Errorf("failed to marshal parameter key %q: %w", k, err)
		}
		vb, err := json.Marshal(p.Params[k])
		if err != nil {
			return "", fmt.Errorf("failed to marshal parameter %q: %w", k, err)
		}
		sb.Write(kb)
		sb.WriteByte(':')
		sb.Write(vb)
	}
	sb.WriteByte('}')

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether both parameter sets have identical content.
func (p JobParameters) Equal(other JobParameters) bool {
	if len(p.Params) != len(other.Params) {
		return false
	}
	return p.Contains(other) && other.Contains(p)
}

// Contains reports whether every entry of partial is present with an equal
// value. Numeric values compare with a small tolerance because parameter
// values round-trip through JSON as float64.
func (p JobParameters) Contains(partial JobParameters) bool {
	for k, pv := range partial.Params {
		v, ok := p.Params[k]
		if !ok {
			return false
		}
		if !parameterValueEqual(v, pv) {
			return false
		}
	}
	return true
}

func parameterValueEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return math.Abs(af-bf) < 1e-9
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var (
	maskedParameterKeys   = map[string]struct{}{}
	maskedParameterKeysMu sync.RWMutex
)

// SetMaskedParameterKeys registers parameter keys whose values are masked
// in log output.
func SetMaskedParameterKeys(keys []string) {
	maskedParameterKeysMu.Lock()
	defer maskedParameterKeysMu.Unlock()
	maskedParameterKeys = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		maskedParameterKeys[strings.ToLower(k)] = struct{}{}
	}
}

// String renders the parameters with masked keys redacted.
func (p JobParameters) String() string {
	maskedParameterKeysMu.RLock()
	defer maskedParameterKeysMu.RUnlock()

	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, masked := maskedParameterKeys[strings.ToLower(k)]; masked {
			parts = append(parts, fmt.Sprintf("%s=******", k))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, p.Params[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// JobInstance identifies a logical job run: a job name plus one distinct
// set of parameters.
type JobInstance struct {
	ID         string
	JobName    string
	Parameters JobParameters
	CreateTime time.Time
	Version    int
}

// NewJobInstance creates a JobInstance for the given job name and parameters.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	return &JobInstance{
		ID:         NewID(),
		JobName:    jobName,
		Parameters: params,
		CreateTime: time.Now(),
	}
}

// JobExecution represents one attempt at running a JobInstance.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	ExitCode         int
	Failures         []error
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	ExecutionContext ExecutionContext
	CurrentStepName  string
	StepExecutions   []*StepExecution

	mu sync.Mutex
}

// NewJobExecution creates a JobExecution in STARTING state.
func NewJobExecution(jobInstanceID, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		ExecutionContext: NewExecutionContext(),
		StepExecutions:   make([]*StepExecution, 0),
	}
}

func isValidJobTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case BatchStatusStarting, BatchStatusRestarting:
		return to == BatchStatusStarted || to == BatchStatusFailed || to == BatchStatusStopped || to == BatchStatusAbandoned
	case BatchStatusStarted:
		return to == BatchStatusCompleted || to == BatchStatusFailed || to == BatchStatusStopping || to == BatchStatusStopped
	case BatchStatusStopping:
		return to == BatchStatusStopped || to == BatchStatusFailed
	case BatchStatusFailed, BatchStatusStopped:
		return to == BatchStatusRestarting || to == BatchStatusAbandoned
	}
	return false
}

// TransitionTo moves the execution to the given status, validating the
// state machine.
func (je *JobExecution) TransitionTo(status JobStatus) error {
	je.mu.Lock()
	defer je.mu.Unlock()
	if !isValidJobTransition(je.Status, status) {
		return fmt.Errorf("invalid job status transition from %s to %s", je.Status, status)
	}
	je.Status = status
	je.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted moves the execution to STARTED and stamps the start time.
func (je *JobExecution) MarkAsStarted() {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = BatchStatusStarted
	je.ExitStatus = ExitStatusExecuting
	je.StartTime = time.Now()
	je.LastUpdated = je.StartTime
}

// MarkAsCompleted moves the execution to COMPLETED.
func (je *JobExecution) MarkAsCompleted() {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = BatchStatusCompleted
	je.ExitStatus = ExitStatusCompleted
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

// MarkAsFailed moves the execution to FAILED and records the failure.
func (je *JobExecution) MarkAsFailed(err error) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = BatchStatusFailed
	je.ExitStatus = ExitStatusFailed
	if err != nil {
		je.Failures = append(je.Failures, err)
	}
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

// MarkAsStopped moves the execution to STOPPED.
func (je *JobExecution) MarkAsStopped() {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = BatchStatusStopped
	je.ExitStatus = ExitStatusStopped
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

// MarkAsAbandoned moves the execution to ABANDONED. Abandoned executions
// are no longer restartable.
func (je *JobExecution) MarkAsAbandoned() {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = BatchStatusAbandoned
	je.ExitStatus = ExitStatusUnknown
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

// AddFailureException appends err to the recorded failures.
func (je *JobExecution) AddFailureException(err error) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Failures = append(je.Failures, err)
}

// AddStepExecution associates a StepExecution with this JobExecution.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.StepExecutions = append(je.StepExecutions, se)
}

// FindStepExecutionByName returns the most recent StepExecution for the
// given step name, or nil.
func (je *JobExecution) FindStepExecutionByName(stepName string) *StepExecution {
	je.mu.Lock()
	defer je.mu.Unlock()
	var found *StepExecution
	for _, se := range je.StepExecutions {
		if se.StepName == stepName {
			found = se
		}
	}
	return found
}

// StepExecution represents one attempt at running a step within a job
// execution.
type StepExecution struct {
	ID               string
	JobExecutionID   string
	StepName         string
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int

	// JobExecution is a back-reference, never persisted.
	JobExecution *JobExecution
}

// NewStepExecution creates a StepExecution in STARTING state.
func NewStepExecution(stepName string, jobExecution *JobExecution) *StepExecution {
	se := &StepExecution{
		ID:               NewID(),
		StepName:         stepName,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
		JobExecution:     jobExecution,
	}
	if jobExecution != nil {
		se.JobExecutionID = jobExecution.ID
		jobExecution.AddStepExecution(se)
	}
	return se
}

// MarkAsStarted moves the step to STARTED and stamps the start time.
func (se *StepExecution) MarkAsStarted() {
	se.Status = BatchStatusStarted
	se.ExitStatus = ExitStatusExecuting
	se.StartTime = time.Now()
	se.LastUpdated = se.StartTime
}

// MarkAsCompleted moves the step to COMPLETED.
func (se *StepExecution) MarkAsCompleted() {
	se.Status = BatchStatusCompleted
	se.ExitStatus = ExitStatusCompleted
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
}

// MarkAsFailed moves the step to FAILED and records the failure.
func (se *StepExecution) MarkAsFailed(err error) {
	se.Status = BatchStatusFailed
	se.ExitStatus = ExitStatusFailed
	if err != nil {
		se.Failures = append(se.Failures, err)
	}
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
}

// CheckpointData is the persisted restart position of a step: the
// serialized ExecutionContext keyed by StepExecution ID.
type CheckpointData struct {
	StepExecutionID  string
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
}

// CopyForRestart builds a fresh JobExecution for a restart of failedExecution.
// Completed steps keep their status so the flow can skip them; the
// ExecutionContext of the failed execution carries over the checkpoints.
func CopyForRestart(failedExecution *JobExecution) *JobExecution {
	restarted := NewJobExecution(failedExecution.JobInstanceID, failedExecution.JobName, failedExecution.Parameters)
	restarted.Status = BatchStatusRestarting
	restarted.ExecutionContext = failedExecution.ExecutionContext.Copy()
	for _, se := range failedExecution.StepExecutions {
		copied := NewStepExecution(se.StepName, restarted)
		copied.Status = se.Status
		copied.ExitStatus = se.ExitStatus
		copied.ReadCount = se.ReadCount
		copied.WriteCount = se.WriteCount
		copied.FilterCount = se.FilterCount
		copied.ExecutionContext = se.ExecutionContext.Copy()
	}
	return restarted
}
