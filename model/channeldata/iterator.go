package channeldata

// Iterator is a forward-only stream of channel-data records. Restarting
// requires re-fetching from the store.
type Iterator interface {
	// Next returns true if the iterator has not yet been exhausted or
	// failed, false otherwise.
	Next() bool
	// Record returns the current record held by the iterator.
	Record() *Record
	// Err returns any errors captured by the iterator.
	Err() error
	// Close closes the iterator. This function should be called once the
	// iterator is no longer needed.
	Close() error
}

type emptyIterator struct{}

// EmptyIterator returns a convenience iterator with no data.
func EmptyIterator() Iterator { return &emptyIterator{} }

func (*emptyIterator) Next() bool      { return false }
func (*emptyIterator) Record() *Record { return nil }
func (*emptyIterator) Err() error      { return nil }
func (*emptyIterator) Close() error    { return nil }

type sliceIterator struct {
	records []*Record
	current *Record
}

// NewSliceIterator returns an iterator over in-memory records.
func NewSliceIterator(records []*Record) Iterator {
	return &sliceIterator{records: records}
}

func (it *sliceIterator) Next() bool {
	if len(it.records) == 0 {
		return false
	}

	it.current = it.records[0]
	it.records = it.records[1:]
	return true
}

func (it *sliceIterator) Record() *Record { return it.current }
func (it *sliceIterator) Err() error      { return nil }
func (it *sliceIterator) Close() error    { return nil }

type rangeFilterIterator struct {
	it  Iterator
	rng Range
}

// NewRangeFilterIterator wraps an iterator, passing through only records
// whose primary index lies inside rng with closed containment.
func NewRangeFilterIterator(it Iterator, rng Range) Iterator {
	return &rangeFilterIterator{it: it, rng: rng}
}

func (it *rangeFilterIterator) Next() bool {
	for it.it.Next() {
		r := it.it.Record()
		if it.rng.EndsBefore(r.Index, false) {
			return false
		}
		if it.rng.Contains(r.Index, true) {
			return true
		}
	}

	return false
}

func (it *rangeFilterIterator) Record() *Record { return it.it.Record() }
func (it *rangeFilterIterator) Err() error      { return it.it.Err() }
func (it *rangeFilterIterator) Close() error    { return it.it.Close() }
