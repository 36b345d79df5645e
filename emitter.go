package mrjob

// Emitter enables mappers, combiners, and reducers to yield key-value pairs.
type Emitter interface {
	Emit(key, value any) error
}

// recordEmitter buffers emitted pairs in memory. Each phase invocation gets
// its own emitter, so no locking is needed.
type recordEmitter struct {
	records []*Record
}

func (e *recordEmitter) Emit(key, value any) error {
	e.records = append(e.records, &Record{Key: key, Value: value})
	return nil
}

func (e *recordEmitter) take() []*Record {
	records := e.records
	e.records = nil
	return records
}

// ValueIterator yields the values of one key's group, in secondary-sort order
// when the step requests it. It is single-use and not safe for concurrent
// callers.
type ValueIterator struct {
	values []any
	pos    int
}

func newValueIterator(values []any) *ValueIterator {
	return &ValueIterator{values: values}
}

// Next returns the next value in the group, or false when exhausted.
func (it *ValueIterator) Next() (any, bool) {
	if it.pos >= len(it.values) {
		return nil, false
	}
	v := it.values[it.pos]
	it.pos++
	return v, true
}

// Remaining returns all values not yet consumed.
func (it *ValueIterator) Remaining() []any {
	rest := it.values[it.pos:]
	it.pos = len(it.values)
	return rest
}
