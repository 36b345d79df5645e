package engine

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intItems(n int) []any {
	items := make([]any, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func TestDistributeAndCollectPreservesOrder(t *testing.T) {
	e := New(WithParallelism(4))

	ds := e.Distribute(intItems(10))
	assert.Equal(t, 4, ds.NumPartitions())
	assert.Equal(t, 10, ds.Count())
	assert.Equal(t, intItems(10), ds.Collect())
}

func TestDistributeFewerItemsThanPartitions(t *testing.T) {
	e := New(WithParallelism(8))

	ds := e.Distribute(intItems(3))
	assert.Equal(t, 3, ds.NumPartitions())
	assert.Equal(t, intItems(3), ds.Collect())
}

func TestTransform(t *testing.T) {
	e := New(WithParallelism(3))

	ds, err := e.Distribute(intItems(6)).Transform(func(item any) ([]any, error) {
		n := item.(int)
		if n%2 == 1 {
			return nil, nil // drop odd items
		}
		return []any{n, n}, nil // duplicate even ones
	})
	require.NoError(t, err)
	assert.Equal(t, []any{0, 0, 2, 2, 4, 4}, ds.Collect())
}

func TestTransformPropagatesFirstError(t *testing.T) {
	e := New(WithParallelism(2))

	_, err := e.Distribute(intItems(4)).Transform(func(item any) ([]any, error) {
		if item.(int) == 3 {
			return nil, fmt.Errorf("item 3 is broken")
		}
		return []any{item}, nil
	})
	require.EqualError(t, err, "item 3 is broken")
}

func TestTransformPartitions(t *testing.T) {
	e := New(WithParallelism(3))

	ds, err := e.Distribute(intItems(9)).TransformPartitions(func(items []any) ([]any, error) {
		sum := 0
		for _, item := range items {
			sum += item.(int)
		}
		return []any{sum}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Count())

	total := 0
	for _, item := range ds.Collect() {
		total += item.(int)
	}
	assert.Equal(t, 36, total)
}

func TestGroupByRoutesEqualFingerprintsTogether(t *testing.T) {
	e := New(WithParallelism(4))

	ds, err := e.Distribute(intItems(100)).GroupBy(func(item any) (string, error) {
		return strconv.Itoa(item.(int) % 5), nil
	})
	require.NoError(t, err)

	groups := ds.Collect()
	assert.Len(t, groups, 5)

	seen := make(map[string]int)
	for _, item := range groups {
		g := item.(*Group)
		seen[g.Fingerprint] = len(g.Items)
	}
	assert.Equal(t, map[string]int{"0": 20, "1": 20, "2": 20, "3": 20, "4": 20}, seen)
}

func TestGroupByPreservesArrivalOrderWithinGroup(t *testing.T) {
	e := New(WithParallelism(1))

	ds, err := e.Distribute(intItems(6)).GroupBy(func(item any) (string, error) {
		return strconv.Itoa(item.(int) % 2), nil
	})
	require.NoError(t, err)

	for _, item := range ds.Collect() {
		g := item.(*Group)
		prev := -1
		for _, v := range g.Items {
			assert.Greater(t, v.(int), prev)
			prev = v.(int)
		}
	}
}

func TestGroupByPropagatesFingerprintError(t *testing.T) {
	e := New(WithParallelism(2))

	_, err := e.Distribute(intItems(3)).GroupBy(func(item any) (string, error) {
		return "", fmt.Errorf("no fingerprint")
	})
	require.EqualError(t, err, "no fingerprint")
}
