package mrjob

import "fmt"

// stepProtocols resolves the protocols that decode a step's input and encode
// its output, given the full plan and the range selected for this run.
//
// Input: the job input protocol for the true first step of the plan; the
// predecessor's internal protocol when the predecessor runs in this
// invocation; otherwise (a run starting mid-plan) the internal protocol
// declared at this step, since upstream data was left in internal form by a
// prior partial run.
//
// Output: the job output protocol only when the step is both the last step of
// the plan and the last step of this run; otherwise the step's internal
// protocol. This convention is what lets two invocations covering disjoint
// ranges of the same plan agree on the wire format at the split point.
func stepProtocols(plan *JobPlan, rng ExecutionRange, stepNum int) (input, output Protocol, err error) {
	switch {
	case stepNum == 0:
		input = plan.inputProtocol
	case stepNum > rng.Start:
		input = plan.stepInternalProtocol(stepNum - 1)
	default:
		input = plan.stepInternalProtocol(stepNum)
	}
	if input == nil {
		return nil, nil, &ConfigurationError{
			Reason: fmt.Sprintf("step %d has no input protocol", stepNum),
		}
	}

	if stepNum == plan.NumSteps()-1 && stepNum == rng.End-1 {
		output = plan.outputProtocol
	} else {
		output = plan.stepInternalProtocol(stepNum)
	}
	if output == nil {
		return nil, nil, &ConfigurationError{
			Reason: fmt.Sprintf("step %d has no output protocol", stepNum),
		}
	}

	return input, output, nil
}
