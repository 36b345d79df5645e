package mrjob

import (
	"fmt"
)

// Phase is a descriptor of the phase (i.e. Map, Combine, or Reduce) of a Step
type Phase int

// Descriptors of a Step's phases
const (
	MapPhase Phase = iota
	CombinePhase
	ReducePhase
)

func (p Phase) String() string {
	switch p {
	case MapPhase:
		return "mapper"
	case CombinePhase:
		return "combiner"
	case ReducePhase:
		return "reducer"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ConfigurationError indicates an invalid or incomplete job setup, such as a
// step with no usable protocol at a required boundary or an unresolvable job
// name. It is surfaced before any records are processed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// RangeError indicates an execution range that violates
// 0 <= start < end <= number of steps.
type RangeError struct {
	Start    int
	End      int
	NumSteps int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid step range [%d, %d) for plan with %d steps",
		e.Start, e.End, e.NumSteps)
}

// RecordDecodeError carries the raw line that failed to decode and the step
// at whose input boundary the failure occurred.
type RecordDecodeError struct {
	StepNum int
	Line    []byte
	Err     error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("step %d: cannot decode record %q: %v", e.StepNum, e.Line, e.Err)
}

func (e *RecordDecodeError) Unwrap() error { return e.Err }

// PhaseExecutionError wraps an error raised inside user-supplied mapper,
// combiner, or reducer logic. The harness does not retry.
type PhaseExecutionError struct {
	StepNum int
	Phase   Phase
	Err     error
}

func (e *PhaseExecutionError) Error() string {
	return fmt.Sprintf("step %d %s failed: %v", e.StepNum, e.Phase, e.Err)
}

func (e *PhaseExecutionError) Unwrap() error { return e.Err }
