package channeldata

import (
	"github.com/mongodb/grip"
)

// UnionChannelSet returns the combined column schema of the given chunks.
// Chunks written before a channel was added carry narrower lists, so the
// union is the schema the reassembled stream is expressed in.
func UnionChannelSet(chunks []Chunk) ChannelSet {
	var set ChannelSet
	for i := range chunks {
		set = set.Union(chunks[i].ChannelSet())
	}
	return set
}

type chunkIterator struct {
	chunks   []Chunk
	set      ChannelSet
	reversed bool
	pos      int
	rows     []*Record
	rowPos   int
	item     *Record
	catcher  grip.Catcher
	closed   bool
}

// NewChunkIterator returns an iterator over the records of the given
// chunks, which must already be sorted in log direction. Chunk payloads are
// decoded one chunk at a time, and every row is re-expressed in the union
// schema of all the chunks.
func NewChunkIterator(chunks []Chunk) Iterator {
	return &chunkIterator{
		chunks:  chunks,
		set:     UnionChannelSet(chunks),
		catcher: grip.NewBasicCatcher(),
	}
}

// NewReversedChunkIterator returns an iterator that walks the given chunks,
// and the rows within each chunk, back to front. Used for latest-values
// retrieval.
func NewReversedChunkIterator(chunks []Chunk) Iterator {
	return &chunkIterator{
		chunks:   chunks,
		set:      UnionChannelSet(chunks),
		reversed: true,
		pos:      len(chunks) - 1,
		catcher:  grip.NewBasicCatcher(),
	}
}

// ChannelSet returns the union schema the iterator's records use.
func (it *chunkIterator) ChannelSet() ChannelSet { return it.set }

func (it *chunkIterator) Next() bool {
	if it.closed || it.catcher.HasErrors() {
		return false
	}

	for {
		if it.rowPos < len(it.rows) {
			it.item = it.rows[it.rowPos]
			it.rowPos++
			return true
		}

		if !it.loadNextChunk() {
			return false
		}
	}
}

func (it *chunkIterator) loadNextChunk() bool {
	if it.reversed {
		if it.pos < 0 {
			return false
		}
	} else if it.pos >= len(it.chunks) {
		return false
	}

	chunk := &it.chunks[it.pos]
	if it.reversed {
		it.pos--
	} else {
		it.pos++
	}

	rows, err := chunk.DecodeData()
	if err != nil {
		it.catcher.Add(err)
		return false
	}
	if len(rows) != chunk.RecordCount {
		it.catcher.Errorf("chunk '%s' holds %d records, expected %d", chunk.UID, len(rows), chunk.RecordCount)
		return false
	}

	mapping := chunk.ChannelSet().Mapping(it.set)
	it.rows = it.rows[:0]
	for _, row := range rows {
		if len(row) == 0 {
			it.catcher.Errorf("chunk '%s' holds an empty row", chunk.UID)
			return false
		}
		index, ok := row[0].(float64)
		if !ok {
			it.catcher.Errorf("chunk '%s' holds a non-numeric primary index", chunk.UID)
			return false
		}

		values := make([]any, it.set.Len())
		values[0] = row[0]
		for col := 1; col < len(mapping) && col < len(row); col++ {
			if out := mapping[col]; out > 0 {
				values[out] = row[col]
			}
		}
		it.rows = append(it.rows, &Record{Index: index, Values: values, ChunkID: chunk.UID})
	}
	if it.reversed {
		for i, j := 0, len(it.rows)-1; i < j; i, j = i+1, j-1 {
			it.rows[i], it.rows[j] = it.rows[j], it.rows[i]
		}
	}
	it.rowPos = 0

	return true
}

func (it *chunkIterator) Record() *Record { return it.item }

func (it *chunkIterator) Err() error { return it.catcher.Resolve() }

func (it *chunkIterator) Close() error {
	it.closed = true
	return nil
}
