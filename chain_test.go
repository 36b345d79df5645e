package mrjob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protocolChainPlan(t *testing.T, options ...PlanOption) *JobPlan {
	t.Helper()
	identity := MapperFunc(func(key, value any, emitter Emitter) error {
		return emitter.Emit(key, value)
	})
	base := []PlanOption{
		WithInputProtocol(TextValueProtocol{}),
		WithInternalProtocol(JSONProtocol{}),
		WithOutputProtocol(TextProtocol{}),
	}
	plan, err := NewJobPlan([]Step{
		{Mapper: identity},
		{Mapper: identity},
		{Mapper: identity},
	}, append(base, options...)...)
	require.NoError(t, err)
	return plan
}

func TestStepProtocolsFullRange(t *testing.T) {
	plan := protocolChainPlan(t)
	rng := ExecutionRange{Start: 0, End: 3}

	input, output, err := stepProtocols(plan, rng, 0)
	require.NoError(t, err)
	assert.IsType(t, TextValueProtocol{}, input)
	assert.IsType(t, JSONProtocol{}, output)

	input, output, err = stepProtocols(plan, rng, 1)
	require.NoError(t, err)
	assert.IsType(t, JSONProtocol{}, input)
	assert.IsType(t, JSONProtocol{}, output)

	input, output, err = stepProtocols(plan, rng, 2)
	require.NoError(t, err)
	assert.IsType(t, JSONProtocol{}, input)
	assert.IsType(t, TextProtocol{}, output)
}

func TestStepProtocolsMidPlanStart(t *testing.T) {
	// A run starting mid-plan assumes upstream data was left in internal form
	// by a prior partial run.
	plan := protocolChainPlan(t)
	rng := ExecutionRange{Start: 1, End: 3}

	input, _, err := stepProtocols(plan, rng, 1)
	require.NoError(t, err)
	assert.IsType(t, JSONProtocol{}, input)
}

func TestStepProtocolsMidPlanEnd(t *testing.T) {
	// The last step of the plan only gets the output protocol when it is also
	// the last step of this run.
	plan := protocolChainPlan(t)
	rng := ExecutionRange{Start: 0, End: 2}

	_, output, err := stepProtocols(plan, rng, 1)
	require.NoError(t, err)
	assert.IsType(t, JSONProtocol{}, output)
}

func TestStepProtocolsPerStepOverride(t *testing.T) {
	identity := MapperFunc(func(key, value any, emitter Emitter) error {
		return emitter.Emit(key, value)
	})
	plan, err := NewJobPlan([]Step{
		{Mapper: identity},
		{Mapper: identity, InternalProtocol: TextProtocol{}},
		{Mapper: identity},
	})
	require.NoError(t, err)
	rng := ExecutionRange{Start: 0, End: 3}

	// Step 1's output boundary and step 2's input boundary both use the
	// override; step 1's input boundary uses step 0's internal protocol.
	input, output, err := stepProtocols(plan, rng, 1)
	require.NoError(t, err)
	assert.IsType(t, JSONProtocol{}, input)
	assert.IsType(t, TextProtocol{}, output)

	input, _, err = stepProtocols(plan, rng, 2)
	require.NoError(t, err)
	assert.IsType(t, TextProtocol{}, input)
}

func TestStepProtocolsMissingProtocol(t *testing.T) {
	plan := protocolChainPlan(t, WithInputProtocol(nil))

	_, _, err := stepProtocols(plan, ExecutionRange{Start: 0, End: 3}, 0)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}
