package mrjob

// Mapper transforms one input record into zero or more emitted records.
type Mapper interface {
	Map(key, value any, emitter Emitter) error
}

// Combiner pre-aggregates a key's values on the worker that produced them,
// before the shuffle. The harness invokes it exactly as declared and does not
// verify associativity or commutativity.
type Combiner interface {
	Combine(key any, values *ValueIterator, emitter Emitter) error
}

// Reducer receives one key together with all of its values and emits zero or
// more output records.
type Reducer interface {
	Reduce(key any, values *ValueIterator, emitter Emitter) error
}

// MapperFunc adapts a plain function to the Mapper interface.
type MapperFunc func(key, value any, emitter Emitter) error

func (f MapperFunc) Map(key, value any, emitter Emitter) error {
	return f(key, value, emitter)
}

// CombinerFunc adapts a plain function to the Combiner interface.
type CombinerFunc func(key any, values *ValueIterator, emitter Emitter) error

func (f CombinerFunc) Combine(key any, values *ValueIterator, emitter Emitter) error {
	return f(key, values, emitter)
}

// ReducerFunc adapts a plain function to the Reducer interface.
type ReducerFunc func(key any, values *ValueIterator, emitter Emitter) error

func (f ReducerFunc) Reduce(key any, values *ValueIterator, emitter Emitter) error {
	return f(key, values, emitter)
}

// Step is one unit of a job's processing plan. Each phase is optional; a nil
// Mapper passes decoded records through unchanged. SortValues requests that
// each key's values reach the reducer sorted by their encoded representation
// under the step's internal protocol.
type Step struct {
	Mapper   Mapper
	Combiner Combiner
	Reducer  Reducer

	SortValues bool

	// InternalProtocol overrides the plan-level internal protocol at this
	// step's boundaries.
	InternalProtocol Protocol
}

// JobPlan is the ordered sequence of steps declared by a job, together with
// the three protocol slots: input (first step's input), internal (every
// boundary between steps), and output (last step's output). A JobPlan is
// immutable once constructed and safe to share across workers.
type JobPlan struct {
	steps            []Step
	inputProtocol    Protocol
	internalProtocol Protocol
	outputProtocol   Protocol
}

// PlanOption configures a JobPlan at construction time.
type PlanOption func(*JobPlan)

// WithInputProtocol sets the protocol used to decode the job's raw input.
func WithInputProtocol(p Protocol) PlanOption {
	return func(plan *JobPlan) {
		plan.inputProtocol = p
	}
}

// WithInternalProtocol sets the protocol used at step boundaries.
func WithInternalProtocol(p Protocol) PlanOption {
	return func(plan *JobPlan) {
		plan.internalProtocol = p
	}
}

// WithOutputProtocol sets the protocol used to encode the job's final output.
func WithOutputProtocol(p Protocol) PlanOption {
	return func(plan *JobPlan) {
		plan.outputProtocol = p
	}
}

// NewJobPlan creates an immutable plan from a job's static step declarations.
// Protocols default to raw input lines and JSON elsewhere, matching the
// canonical streaming runner.
func NewJobPlan(steps []Step, options ...PlanOption) (*JobPlan, error) {
	if len(steps) == 0 {
		return nil, &ConfigurationError{Reason: "job plan declares no steps"}
	}

	plan := &JobPlan{
		steps:            append([]Step(nil), steps...),
		inputProtocol:    RawValueProtocol{},
		internalProtocol: JSONProtocol{},
		outputProtocol:   JSONProtocol{},
	}
	for _, option := range options {
		option(plan)
	}
	return plan, nil
}

// NumSteps returns the number of steps in the full plan.
func (p *JobPlan) NumSteps() int {
	return len(p.steps)
}

// Step returns the step at the given absolute index.
func (p *JobPlan) Step(stepNum int) Step {
	return p.steps[stepNum]
}

// OutputProtocol returns the protocol that encodes the job's final output.
func (p *JobPlan) OutputProtocol() Protocol {
	return p.outputProtocol
}

// stepInternalProtocol resolves the internal protocol in effect at a step,
// honoring a per-step override.
func (p *JobPlan) stepInternalProtocol(stepNum int) Protocol {
	if override := p.steps[stepNum].InternalProtocol; override != nil {
		return override
	}
	return p.internalProtocol
}

// ExecutionRange is the half-open interval of step indices selected for one
// harness invocation.
type ExecutionRange struct {
	Start int
	End   int
}

// resolveSteps validates an optional [start, end) selection against the plan
// and returns the steps to execute in original order. Nil selectors mean the
// whole plan. An invalid range is an error, never a silent truncation.
func resolveSteps(plan *JobPlan, start, end *int) ([]Step, ExecutionRange, error) {
	rng := ExecutionRange{Start: 0, End: plan.NumSteps()}
	if start != nil {
		rng.Start = *start
	}
	if end != nil {
		rng.End = *end
	}

	if rng.Start < 0 || rng.Start >= rng.End || rng.End > plan.NumSteps() {
		return nil, ExecutionRange{}, &RangeError{
			Start:    rng.Start,
			End:      rng.End,
			NumSteps: plan.NumSteps(),
		}
	}

	return plan.steps[rng.Start:rng.End], rng, nil
}

// JobConf holds a job's passthrough configuration options. The harness does
// not interpret the values, only relays them to the job factory unchanged.
type JobConf map[string]string

// Get returns the value for key, or empty string when unset.
func (c JobConf) Get(key string) string {
	return c[key]
}

// Bool reports whether key is set to a truthy flag value.
func (c JobConf) Bool(key string) bool {
	switch c[key] {
	case "", "0", "false", "no":
		return false
	}
	return true
}
