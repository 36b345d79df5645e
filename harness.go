package mrjob

import (
	"bytes"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/stug/mrjob/internal/pkg/engine"
)

// Harness adapts a JobPlan (or a contiguous subrange of it) onto the engine's
// native primitives: parallel record transformation and key-based grouping.
// It reproduces the canonical streaming runner's behavior record for record,
// up to ordering where no ordering is guaranteed.
type Harness struct {
	plan  *JobPlan
	steps []Step
	rng   ExecutionRange

	engine         *engine.Engine
	skipBadRecords bool
	stepDone       func(stepNum int)
}

type harnessOptions struct {
	startStep *int
	endStep   *int
	engine    *engine.Engine
	skipBad   bool
	stepDone  func(stepNum int)
}

// HarnessOption configures a Harness.
type HarnessOption func(*harnessOptions)

// WithStartStep selects the first step to execute. Omitting it starts at the
// beginning of the plan.
func WithStartStep(stepNum int) HarnessOption {
	return func(o *harnessOptions) {
		n := stepNum
		o.startStep = &n
	}
}

// WithEndStep selects the step index to stop before. Omitting it runs through
// the end of the plan.
func WithEndStep(stepNum int) HarnessOption {
	return func(o *harnessOptions) {
		n := stepNum
		o.endStep = &n
	}
}

// WithEngine sets the engine executing dataset operations.
func WithEngine(e *engine.Engine) HarnessOption {
	return func(o *harnessOptions) {
		o.engine = e
	}
}

// WithPermissiveDecode makes decode failures drop the offending line with a
// warning instead of aborting the step.
func WithPermissiveDecode() HarnessOption {
	return func(o *harnessOptions) {
		o.skipBad = true
	}
}

// WithStepCallback registers a callback invoked after each step completes.
func WithStepCallback(fn func(stepNum int)) HarnessOption {
	return func(o *harnessOptions) {
		o.stepDone = fn
	}
}

// NewHarness validates the selected range against the plan and returns a
// harness ready to run. Range violations surface as RangeError before any
// records are read.
func NewHarness(plan *JobPlan, options ...HarnessOption) (*Harness, error) {
	if plan == nil {
		return nil, &ConfigurationError{Reason: "no job plan"}
	}

	var opts harnessOptions
	for _, option := range options {
		option(&opts)
	}

	steps, rng, err := resolveSteps(plan, opts.startStep, opts.endStep)
	if err != nil {
		return nil, err
	}

	// Resolve every boundary up front so protocol gaps fail before execution.
	for stepNum := rng.Start; stepNum < rng.End; stepNum++ {
		if _, _, err := stepProtocols(plan, rng, stepNum); err != nil {
			return nil, err
		}
	}

	eng := opts.engine
	if eng == nil {
		eng = engine.New()
	}

	return &Harness{
		plan:           plan,
		steps:          steps,
		rng:            rng,
		engine:         eng,
		skipBadRecords: opts.skipBad,
		stepDone:       opts.stepDone,
	}, nil
}

// Range returns the step range this harness will execute.
func (h *Harness) Range() ExecutionRange {
	return h.rng
}

// Run executes the selected steps in order over the given raw input lines,
// threading each step's encoded output directly into the next step. Returns
// the final encoded output lines.
func (h *Harness) Run(lines [][]byte) ([][]byte, error) {
	items := make([]any, len(lines))
	for i, line := range lines {
		items[i] = line
	}
	ds := h.engine.Distribute(items)

	for stepNum := h.rng.Start; stepNum < h.rng.End; stepNum++ {
		var err error
		ds, err = h.runStep(ds, stepNum)
		if err != nil {
			return nil, err
		}
		log.Debugf("Step %d produced %d records", stepNum, ds.Count())
		if h.stepDone != nil {
			h.stepDone(stepNum)
		}
	}

	collected := ds.Collect()
	out := make([][]byte, len(collected))
	for i, item := range collected {
		out[i] = item.([]byte)
	}
	return out, nil
}

// runStep executes one step's decode, mapper, combiner, shuffle, secondary
// sort, reducer, and encode sequence over a dataset of encoded lines.
func (h *Harness) runStep(ds *engine.Dataset, stepNum int) (*engine.Dataset, error) {
	step := h.plan.Step(stepNum)
	inputProtocol, outputProtocol, err := stepProtocols(h.plan, h.rng, stepNum)
	if err != nil {
		return nil, err
	}
	internalProtocol := h.plan.stepInternalProtocol(stepNum)

	records, err := h.decodeLines(ds, inputProtocol, stepNum)
	if err != nil {
		return nil, err
	}

	if step.Mapper != nil {
		records, err = records.Transform(func(item any) ([]any, error) {
			rec := item.(*Record)
			emitter := &recordEmitter{}
			err := runPhase(stepNum, MapPhase, func() error {
				return step.Mapper.Map(rec.Key, rec.Value, emitter)
			})
			if err != nil {
				return nil, err
			}
			return asItems(emitter.take()), nil
		})
		if err != nil {
			return nil, err
		}
	}

	if step.Combiner != nil {
		records, err = records.TransformPartitions(func(items []any) ([]any, error) {
			return h.combinePartition(step.Combiner, items, stepNum)
		})
		if err != nil {
			return nil, err
		}
	}

	// Grouping happens whenever something downstream consumes per-key value
	// groups. With neither a reducer nor a sort request, records pass through
	// ungrouped.
	if step.Reducer != nil || step.SortValues {
		grouped, err := records.GroupBy(func(item any) (string, error) {
			return groupKey(item.(*Record).Key)
		})
		if err != nil {
			return nil, err
		}

		if step.SortValues {
			grouped, err = grouped.Transform(func(item any) ([]any, error) {
				g := item.(*engine.Group)
				if err := sortByEncodedValue(internalProtocol, g.Items); err != nil {
					return nil, err
				}
				return []any{g}, nil
			})
			if err != nil {
				return nil, err
			}
		}

		if step.Reducer != nil {
			records, err = grouped.Transform(func(item any) ([]any, error) {
				return h.reduceGroup(step.Reducer, item.(*engine.Group), stepNum)
			})
		} else {
			// Secondary sort without a reducer still groups; the grouped and
			// sorted values pass through unreduced.
			records, err = grouped.Transform(func(item any) ([]any, error) {
				return item.(*engine.Group).Items, nil
			})
		}
		if err != nil {
			return nil, err
		}
	}

	return records.Transform(func(item any) ([]any, error) {
		rec := item.(*Record)
		line, err := outputProtocol.Encode(rec.Key, rec.Value)
		if err != nil {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("step %d: cannot encode record: %v", stepNum, err),
			}
		}
		return []any{line}, nil
	})
}

func (h *Harness) decodeLines(ds *engine.Dataset, protocol Protocol, stepNum int) (*engine.Dataset, error) {
	return ds.Transform(func(item any) ([]any, error) {
		line := item.([]byte)
		key, value, err := protocol.Decode(line)
		if err != nil {
			if h.skipBadRecords {
				log.Warnf("Step %d: skipping undecodable record %q: %v", stepNum, line, err)
				return nil, nil
			}
			return nil, &RecordDecodeError{StepNum: stepNum, Line: line, Err: err}
		}
		return []any{&Record{Key: key, Value: value}}, nil
	})
}

// combinePartition runs the combiner over one worker's share of the mapper
// output, grouped by decoded-key equality, before anything is shuffled.
func (h *Harness) combinePartition(combiner Combiner, items []any, stepNum int) ([]any, error) {
	var order []string
	byKey := make(map[string][]*Record)
	for _, item := range items {
		rec := item.(*Record)
		fp, err := groupKey(rec.Key)
		if err != nil {
			return nil, err
		}
		if _, seen := byKey[fp]; !seen {
			order = append(order, fp)
		}
		byKey[fp] = append(byKey[fp], rec)
	}

	var out []any
	for _, fp := range order {
		group := byKey[fp]
		values := make([]any, len(group))
		for i, rec := range group {
			values[i] = rec.Value
		}

		emitter := &recordEmitter{}
		err := runPhase(stepNum, CombinePhase, func() error {
			return combiner.Combine(group[0].Key, newValueIterator(values), emitter)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, asItems(emitter.take())...)
	}
	return out, nil
}

func (h *Harness) reduceGroup(reducer Reducer, group *engine.Group, stepNum int) ([]any, error) {
	values := make([]any, len(group.Items))
	for i, item := range group.Items {
		values[i] = item.(*Record).Value
	}

	emitter := &recordEmitter{}
	err := runPhase(stepNum, ReducePhase, func() error {
		return reducer.Reduce(group.Items[0].(*Record).Key, newValueIterator(values), emitter)
	})
	if err != nil {
		return nil, err
	}
	return asItems(emitter.take()), nil
}

// sortByEncodedValue orders a group's records ascending by the bytes of their
// encoded representation under the given protocol. All keys within a group
// encode identically, so comparing whole encoded lines compares encoded
// values. The contract is byte order of the encoding, not the decoded
// values' natural ordering.
func sortByEncodedValue(protocol Protocol, items []any) error {
	type encodedItem struct {
		item any
		line []byte
	}

	encoded := make([]encodedItem, len(items))
	for i, item := range items {
		rec := item.(*Record)
		line, err := protocol.Encode(rec.Key, rec.Value)
		if err != nil {
			return fmt.Errorf("cannot encode value for secondary sort: %v", err)
		}
		encoded[i] = encodedItem{item: item, line: line}
	}

	sort.SliceStable(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i].line, encoded[j].line) < 0
	})
	for i := range encoded {
		items[i] = encoded[i].item
	}
	return nil
}

// runPhase invokes one user phase, converting returned errors and panics into
// PhaseExecutionError with the step and phase attached.
func runPhase(stepNum int, phase Phase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PhaseExecutionError{
				StepNum: stepNum,
				Phase:   phase,
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if phaseErr := fn(); phaseErr != nil {
		return &PhaseExecutionError{StepNum: stepNum, Phase: phase, Err: phaseErr}
	}
	return nil
}

func asItems(records []*Record) []any {
	items := make([]any, len(records))
	for i, rec := range records {
		items[i] = rec
	}
	return items
}
