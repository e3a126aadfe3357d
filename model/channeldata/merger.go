package channeldata

import (
	"github.com/mongodb/grip"
)

// Merger combines the record stream of stored chunks with an incoming
// payload over an update range, producing a stream ready for rechunking.
// Output columns are the union of the existing and incoming channels, with
// the existing order preserved.
type Merger struct {
	incoming    *Reader
	updateRange Range
	out         ChannelSet
	exMap       []int
	inMap       []int
}

// NewMerger prepares a merge of the given incoming payload into streams
// with the existing channel schema. The update range is the span of the
// incoming payload: existing rows inside it are subject to clearing,
// existing rows outside it pass through untouched.
func NewMerger(existingSet ChannelSet, incoming *Reader, updateRange Range) *Merger {
	out := existingSet.Union(incoming.ChannelSet())

	return &Merger{
		incoming:    incoming,
		updateRange: updateRange,
		out:         out,
		exMap:       existingSet.Mapping(out),
		inMap:       incoming.ChannelSet().Mapping(out),
	}
}

// ChannelSet returns the merged column schema, for the bulk-write lists and
// header bookkeeping.
func (m *Merger) ChannelSet() ChannelSet { return m.out }

// Merge returns the merged record stream. Both inputs must be strictly
// monotonic in the incoming payload's direction.
func (m *Merger) Merge(existing Iterator) Iterator {
	return &mergeIterator{
		m:        m,
		existing: existing,
		incoming: m.incoming.Iterator(),
		catcher:  grip.NewBasicCatcher(),
	}
}

type mergeIterator struct {
	m        *Merger
	existing Iterator
	incoming Iterator

	exCur, inCur *Record
	exDone       bool
	inDone       bool
	started      bool
	carriedID    string
	item         *Record
	catcher      grip.Catcher
}

func (it *mergeIterator) init() {
	it.advanceExisting()
	it.advanceIncoming()
	it.started = true
}

func (it *mergeIterator) advanceExisting() {
	if it.existing.Next() {
		it.exCur = it.existing.Record()
		return
	}
	it.catcher.Add(it.existing.Err())
	it.exCur = nil
	it.exDone = true
}

func (it *mergeIterator) advanceIncoming() {
	if it.incoming.Next() {
		it.inCur = it.incoming.Record()
		return
	}
	it.catcher.Add(it.incoming.Err())
	it.inCur = nil
	it.inDone = true
}

// precedes reports whether a comes before b in log direction.
func (it *mergeIterator) precedes(a, b float64) bool {
	if it.m.incoming.Increasing() {
		return a < b
	}
	return a > b
}

func (it *mergeIterator) Next() bool {
	if !it.started {
		it.init()
	}
	if it.catcher.HasErrors() {
		return false
	}

	for {
		switch {
		case it.exDone && it.inDone:
			return false

		case it.exDone:
			// Remaining incoming rows land after every stored row.
			it.item = it.expandIncoming(it.inCur)
			it.advanceIncoming()
			return true

		case it.inDone:
			if it.emitExisting() {
				return true
			}

		case it.exCur.Index == it.inCur.Index:
			it.item = it.overwrite(it.exCur, it.inCur)
			it.carriedID = it.exCur.ChunkID
			it.advanceExisting()
			it.advanceIncoming()
			return true

		case it.precedes(it.inCur.Index, it.exCur.Index):
			it.item = it.expandIncoming(it.inCur)
			it.advanceIncoming()
			return true

		default:
			if it.emitExisting() {
				return true
			}
		}

		if it.catcher.HasErrors() {
			return false
		}
	}
}

// emitExisting applies the pass-through or clearing rule to the current
// existing row and consumes it. It reports whether a row was produced.
func (it *mergeIterator) emitExisting() bool {
	rec := it.exCur
	it.carriedID = rec.ChunkID
	it.advanceExisting()

	if !it.m.updateRange.Contains(rec.Index, true) {
		it.item = it.expand(rec, it.m.exMap, rec.ChunkID)
		return true
	}

	// The row sits inside the update range but the incoming payload has
	// no row at this index: clear every channel the payload covers here,
	// and drop the row if nothing is left.
	cleared := it.expand(rec, it.m.exMap, rec.ChunkID)
	for col := 1; col < it.m.incoming.ChannelSet().Len(); col++ {
		rng := it.m.incoming.ChannelRange(col)
		if rng == nil || !rng.Contains(rec.Index, true) {
			continue
		}
		if out := it.m.inMap[col]; out > 0 {
			cleared.Values[out] = nil
		}
	}

	if !it.hasValues(cleared) {
		return false
	}

	it.item = cleared
	return true
}

// overwrite merges an existing and incoming row with the same index. Each
// existing column is replaced when the incoming payload's sub-range for
// that channel covers the index; the merged row keeps the existing row's
// id.
func (it *mergeIterator) overwrite(existing, incoming *Record) *Record {
	merged := it.expand(existing, it.m.exMap, existing.ChunkID)
	for col := 1; col < it.m.incoming.ChannelSet().Len(); col++ {
		rng := it.m.incoming.ChannelRange(col)
		if rng == nil || !rng.Contains(existing.Index, true) {
			continue
		}
		if out := it.m.inMap[col]; out > 0 {
			var v any
			if col < len(incoming.Values) {
				v = incoming.Values[col]
			}
			merged.Values[out] = v
		}
	}

	return merged
}

func (it *mergeIterator) expandIncoming(rec *Record) *Record {
	out := it.expand(rec, it.m.inMap, it.carriedID)
	return out
}

// expand re-expresses a row in the merged column schema.
func (it *mergeIterator) expand(rec *Record, mapping []int, chunkID string) *Record {
	values := make([]any, it.m.out.Len())
	values[0] = rec.Values[0]
	for col := 1; col < len(mapping) && col < len(rec.Values); col++ {
		if out := mapping[col]; out > 0 {
			values[out] = rec.Values[col]
		}
	}

	return &Record{Index: rec.Index, Values: values, ChunkID: chunkID}
}

// hasValues reports whether any non-index column is non-null.
func (it *mergeIterator) hasValues(rec *Record) bool {
	for col := 1; col < len(rec.Values); col++ {
		if !IsNull(rec.Values[col], it.m.out.NullValue(col)) {
			return true
		}
	}

	return false
}

func (it *mergeIterator) Record() *Record { return it.item }

func (it *mergeIterator) Err() error { return it.catcher.Resolve() }

func (it *mergeIterator) Close() error {
	catcher := grip.NewBasicCatcher()
	catcher.Add(it.existing.Close())
	catcher.Add(it.incoming.Close())

	return catcher.Resolve()
}
