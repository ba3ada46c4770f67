package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrorSeverity represents the severity of a collected failure
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// StepFailure records a failed render step of a scenario run.
type StepFailure struct {
	Scenario  string
	Step      int
	Code      string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// Error implements the error interface
func (sf *StepFailure) Error() string {
	return fmt.Sprintf("%s: step %d: %s: %s", sf.Scenario, sf.Step, sf.Severity, sf.Message)
}

// NewStepFailure classifies err into a StepFailure. Failures the scenario
// marked as expected are reported at info severity.
func NewStepFailure(scenario string, step int, err error, expected bool) StepFailure {
	sf := StepFailure{
		Scenario: scenario,
		Step:     step,
		Message:  err.Error(),
		Severity: ErrorSeverityError,
	}
	var ge *GlitError
	if errors.As(err, &ge) {
		sf.Code = ge.Code
		if ge.Type == ErrorTypeParse || ge.Type == ErrorTypeDirective {
			sf.Severity = ErrorSeverityWarning
		}
	}
	if expected {
		sf.Severity = ErrorSeverityInfo
	}
	return sf
}

// ErrorCollector collects step failures across scenario runs
type ErrorCollector struct {
	failures []StepFailure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make([]StepFailure, 0),
	}
}

// Add adds a failure to the collector
func (ec *ErrorCollector) Add(f StepFailure) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	ec.failures = append(ec.failures, f)
}

// Failures returns a copy of all collected failures
func (ec *ErrorCollector) Failures() []StepFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]StepFailure, len(ec.failures))
	copy(result, ec.failures)
	return result
}

// HasErrors reports whether any failure was collected at error severity.
// Info-level failures were expected by the scenario and do not count.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	for _, f := range ec.failures {
		if f.Severity >= ErrorSeverityWarning {
			return true
		}
	}
	return false
}

// Clear clears all failures
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = ec.failures[:0]
}

// ByScenario returns failures for one scenario
func (ec *ErrorCollector) ByScenario(name string) []StepFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var out []StepFailure
	for _, f := range ec.failures {
		if f.Scenario == name {
			out = append(out, f)
		}
	}
	return out
}
