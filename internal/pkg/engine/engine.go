// Package engine provides the execution primitives the harness targets: a
// partitioned in-memory collection supporting parallel record transformation
// and key-based grouping. Every operation fully materializes its result
// before returning, so each call is a barrier between stages.
package engine

import (
	"hash/fnv"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Engine executes dataset operations over a fixed number of partitions with
// bounded worker concurrency.
type Engine struct {
	parallelism    int
	maxConcurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism sets the number of partitions datasets are split into.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithMaxConcurrency bounds the number of partition workers running at once.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// New creates an Engine. Parallelism defaults to the number of CPUs.
func New(options ...Option) *Engine {
	e := &Engine{
		parallelism:    runtime.NumCPU(),
		maxConcurrency: runtime.NumCPU(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Parallelism returns the number of partitions the engine distributes over.
func (e *Engine) Parallelism() int {
	return e.parallelism
}

// Dataset is a distributed collection of opaque items.
type Dataset struct {
	engine     *Engine
	partitions [][]any
}

// Group is the element type produced by GroupBy: all items sharing one
// grouping fingerprint, in arrival order.
type Group struct {
	Fingerprint string
	Items       []any
}

// Distribute splits items across the engine's partitions.
func (e *Engine) Distribute(items []any) *Dataset {
	numParts := e.parallelism
	if numParts > len(items) && len(items) > 0 {
		numParts = len(items)
	}
	partitions := make([][]any, numParts)

	// Contiguous chunks keep input order within a partition.
	for i := range partitions {
		lo := i * len(items) / numParts
		hi := (i + 1) * len(items) / numParts
		partitions[i] = items[lo:hi]
	}

	return &Dataset{engine: e, partitions: partitions}
}

// forEachPartition runs fn over every partition in parallel, bounded by the
// engine's concurrency limit, and stores the result at the same partition
// index. The first error aborts the operation.
func (d *Dataset) forEachPartition(fn func(items []any) ([]any, error)) (*Dataset, error) {
	results := make([][]any, len(d.partitions))

	var group errgroup.Group
	group.SetLimit(d.engine.maxConcurrency)
	for i := range d.partitions {
		i := i
		group.Go(func() error {
			out, err := fn(d.partitions[i])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &Dataset{engine: d.engine, partitions: results}, nil
}

// Transform applies fn to every item independently, in parallel. Each item
// maps to zero or more output items; no ordering dependency exists between
// items.
func (d *Dataset) Transform(fn func(item any) ([]any, error)) (*Dataset, error) {
	return d.forEachPartition(func(items []any) ([]any, error) {
		var out []any
		for _, item := range items {
			mapped, err := fn(item)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped...)
		}
		return out, nil
	})
}

// TransformPartitions applies fn once per partition, giving it the whole
// partition at once. This is the hook for worker-local pre-aggregation.
func (d *Dataset) TransformPartitions(fn func(items []any) ([]any, error)) (*Dataset, error) {
	return d.forEachPartition(fn)
}

// GroupBy shuffles the dataset so that all items with the same fingerprint
// land in one Group on one partition. Groups preserve the arrival order of
// items from each source partition, scanned in partition order.
func (d *Dataset) GroupBy(fingerprint func(item any) (string, error)) (*Dataset, error) {
	numParts := d.engine.parallelism

	// Route items to target partitions by fingerprint hash.
	routed := make([][]any, numParts)
	groups := make([]map[string]*Group, numParts)
	for i := range groups {
		groups[i] = make(map[string]*Group)
	}

	for _, partition := range d.partitions {
		for _, item := range partition {
			fp, err := fingerprint(item)
			if err != nil {
				return nil, err
			}
			target := partitionFor(fp, numParts)
			g, ok := groups[target][fp]
			if !ok {
				g = &Group{Fingerprint: fp}
				groups[target][fp] = g
				routed[target] = append(routed[target], g)
			}
			g.Items = append(g.Items, item)
		}
	}

	return &Dataset{engine: d.engine, partitions: routed}, nil
}

// Collect gathers every item into one slice, in partition order.
func (d *Dataset) Collect() []any {
	var items []any
	for _, partition := range d.partitions {
		items = append(items, partition...)
	}
	return items
}

// Count returns the total number of items across all partitions.
func (d *Dataset) Count() int {
	n := 0
	for _, partition := range d.partitions {
		n += len(partition)
	}
	return n
}

// NumPartitions returns the dataset's partition count.
func (d *Dataset) NumPartitions() int {
	return len(d.partitions)
}

func partitionFor(fingerprint string, numParts int) int {
	h := fnv.New64()
	h.Write([]byte(fingerprint))
	return int(h.Sum64() % uint64(numParts))
}
