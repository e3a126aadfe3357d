package channeldata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSet() ChannelSet {
	return ChannelSet{
		Mnemonics:  []string{"DEPTH", "GR", "ROP"},
		Units:      []string{"m", "gAPI", "m/h"},
		NullValues: []string{"", "-999.25", "-999.25"},
	}
}

func ropSet() ChannelSet {
	return ChannelSet{
		Mnemonics:  []string{"DEPTH", "ROP"},
		Units:      []string{"m", "m/h"},
		NullValues: []string{"", "-999.25"},
	}
}

func buildReader(t *testing.T, index ChannelIndexInfo, set ChannelSet, rows ...[]any) *Reader {
	reader, err := NewReader(index, set)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, reader.AddRow(row[0].(float64), row[1:]...))
	}
	return reader
}

func drain(t *testing.T, it Iterator) []*Record {
	var records []*Record
	for it.Next() {
		records = append(records, it.Record())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return records
}

func TestMergerOverwriteAndInterleave(t *testing.T) {
	existing := []*Record{
		{Index: 100, Values: []any{float64(100), float64(10), float64(20)}, ChunkID: "c0"},
		{Index: 200, Values: []any{float64(200), float64(10), float64(20)}, ChunkID: "c0"},
		{Index: 300, Values: []any{float64(300), float64(10), float64(20)}, ChunkID: "c0"},
	}
	incoming := buildReader(t, depthIndex(true), ropSet(),
		[]any{float64(200), float64(99)},
		[]any{float64(250), float64(99)},
		[]any{float64(300), float64(99)},
	)

	m := NewMerger(fullSet(), incoming, NewRange(200, 300, true))
	assert.Equal(t, []string{"DEPTH", "GR", "ROP"}, m.ChannelSet().Mnemonics)

	merged := drain(t, m.Merge(NewSliceIterator(existing)))
	require.Len(t, merged, 4)

	// Row 100 is outside the update range and passes through untouched.
	assert.Equal(t, []any{float64(100), float64(10), float64(20)}, merged[0].Values)
	assert.Equal(t, "c0", merged[0].ChunkID)

	// Equal-index rows overwrite only the channels the payload carries.
	assert.Equal(t, []any{float64(200), float64(10), float64(99)}, merged[1].Values)
	assert.Equal(t, "c0", merged[1].ChunkID)

	// The new row at 250 has no GR because the payload's GR sub-range
	// does not exist; it inherits the id carried from the preceding
	// stored row.
	assert.Equal(t, []any{float64(250), nil, float64(99)}, merged[2].Values)
	assert.Equal(t, "c0", merged[2].ChunkID)

	assert.Equal(t, []any{float64(300), float64(10), float64(99)}, merged[3].Values)
}

func TestMergerClearingDropsEmptiedRows(t *testing.T) {
	grSet := ChannelSet{
		Mnemonics:  []string{"DEPTH", "GR"},
		Units:      []string{"m", "gAPI"},
		NullValues: []string{"", "-999.25"},
	}
	existing := []*Record{
		{Index: 100, Values: []any{float64(100), float64(10)}, ChunkID: "c0"},
		{Index: 200, Values: []any{float64(200), float64(10)}, ChunkID: "c0"},
		{Index: 300, Values: []any{float64(300), float64(10)}, ChunkID: "c0"},
	}
	incoming := buildReader(t, depthIndex(true), grSet,
		[]any{float64(100), float64(55)},
		[]any{float64(300), float64(66)},
	)

	m := NewMerger(grSet, incoming, NewRange(100, 300, true))
	merged := drain(t, m.Merge(NewSliceIterator(existing)))

	// Row 200 lost its only channel to the clearing merge and is dropped.
	require.Len(t, merged, 2)
	assert.Equal(t, []any{float64(100), float64(55)}, merged[0].Values)
	assert.Equal(t, []any{float64(300), float64(66)}, merged[1].Values)
}

func TestMergerClearingKeepsRowsWithRemainingValues(t *testing.T) {
	existing := []*Record{
		{Index: 200, Values: []any{float64(200), float64(10), float64(20)}, ChunkID: "c0"},
	}
	incoming := buildReader(t, depthIndex(true), ropSet(),
		[]any{float64(100), float64(99)},
		[]any{float64(300), float64(99)},
	)

	m := NewMerger(fullSet(), incoming, NewRange(100, 300, true))
	merged := drain(t, m.Merge(NewSliceIterator(existing)))
	require.Len(t, merged, 3)

	// The first payload row precedes any stored row, so it carries no id.
	assert.Equal(t, []any{float64(100), nil, float64(99)}, merged[0].Values)
	assert.Empty(t, merged[0].ChunkID)

	// ROP is cleared at 200 but GR survives, so the row stays.
	assert.Equal(t, []any{float64(200), float64(10), nil}, merged[1].Values)
	assert.Equal(t, "c0", merged[1].ChunkID)

	// Payload rows after the last stored row inherit the carried id.
	assert.Equal(t, []any{float64(300), nil, float64(99)}, merged[2].Values)
	assert.Equal(t, "c0", merged[2].ChunkID)
}

func TestMergerNullPayloadValueLeavesExistingUntouched(t *testing.T) {
	existing := []*Record{
		{Index: 200, Values: []any{float64(200), float64(10), float64(20)}, ChunkID: "c0"},
		{Index: 300, Values: []any{float64(300), float64(10), float64(20)}, ChunkID: "c0"},
	}
	// ROP is null at 200, so the payload's ROP sub-range is [300,300] and
	// the stored value at 200 must not be overwritten.
	incoming := buildReader(t, depthIndex(true), ropSet(),
		[]any{float64(200), nil},
		[]any{float64(300), float64(99)},
	)

	m := NewMerger(fullSet(), incoming, NewRange(200, 300, true))
	merged := drain(t, m.Merge(NewSliceIterator(existing)))
	require.Len(t, merged, 2)
	assert.Equal(t, []any{float64(200), float64(10), float64(20)}, merged[0].Values)
	assert.Equal(t, []any{float64(300), float64(10), float64(99)}, merged[1].Values)
}

func TestMergerEmptyIncomingIsIdentity(t *testing.T) {
	existing := []*Record{
		{Index: 100, Values: []any{float64(100), float64(10), float64(20)}, ChunkID: "c0"},
		{Index: 1500, Values: []any{float64(1500), float64(11), float64(21)}, ChunkID: "c1"},
	}
	incoming := buildReader(t, depthIndex(true), ropSet())

	m := NewMerger(fullSet(), incoming, NewRange(0, 2000, true))
	merged := drain(t, m.Merge(NewSliceIterator(existing)))

	require.Len(t, merged, 2)
	for i := range existing {
		assert.Equal(t, existing[i].Values, merged[i].Values)
		assert.Equal(t, existing[i].ChunkID, merged[i].ChunkID)
	}
}

func TestMergerEmptyExistingPassesPayloadThrough(t *testing.T) {
	incoming := buildReader(t, depthIndex(true), ropSet(),
		[]any{float64(100), float64(1)},
		[]any{float64(200), float64(2)},
	)

	m := NewMerger(ChannelSet{}, incoming, NewRange(100, 200, true))
	assert.Equal(t, []string{"DEPTH", "ROP"}, m.ChannelSet().Mnemonics)

	merged := drain(t, m.Merge(EmptyIterator()))
	require.Len(t, merged, 2)
	assert.Equal(t, []any{float64(100), float64(1)}, merged[0].Values)
	assert.Empty(t, merged[0].ChunkID)
}

func TestMergerAddsNewChannels(t *testing.T) {
	grOnly := ChannelSet{
		Mnemonics:  []string{"DEPTH", "GR"},
		Units:      []string{"m", "gAPI"},
		NullValues: []string{"", "-999.25"},
	}
	existing := []*Record{
		{Index: 100, Values: []any{float64(100), float64(10)}, ChunkID: "c0"},
	}
	incoming := buildReader(t, depthIndex(true), ropSet(),
		[]any{float64(100), float64(99)},
	)

	m := NewMerger(grOnly, incoming, NewRange(100, 100, true))
	assert.Equal(t, []string{"DEPTH", "GR", "ROP"}, m.ChannelSet().Mnemonics)

	merged := drain(t, m.Merge(NewSliceIterator(existing)))
	require.Len(t, merged, 1)
	assert.Equal(t, []any{float64(100), float64(10), float64(99)}, merged[0].Values)
}

func TestMergerDecreasingDirection(t *testing.T) {
	existing := []*Record{
		{Index: 300, Values: []any{float64(300), float64(10), float64(20)}, ChunkID: "c0"},
		{Index: 100, Values: []any{float64(100), float64(10), float64(20)}, ChunkID: "c0"},
	}
	incoming := buildReader(t, depthIndex(false), ropSet(),
		[]any{float64(200), float64(99)},
	)

	m := NewMerger(fullSet(), incoming, NewRange(200, 200, false))
	merged := drain(t, m.Merge(NewSliceIterator(existing)))

	require.Len(t, merged, 3)
	assert.Equal(t, float64(300), merged[0].Index)
	assert.Equal(t, float64(200), merged[1].Index)
	assert.Equal(t, []any{float64(200), nil, float64(99)}, merged[1].Values)
	assert.Equal(t, "c0", merged[1].ChunkID)
	assert.Equal(t, float64(100), merged[2].Index)
}

// Chunk-then-rechunk round trip: what the chunker stores, the chunk
// iterator and an identity merge return unchanged.
func TestMergeChunkRoundTrip(t *testing.T) {
	set := fullSet()
	incoming := buildReader(t, depthIndex(true), set,
		[]any{float64(100), float64(10), float64(20)},
		[]any{float64(200), float64(11), float64(21)},
		[]any{float64(1500), float64(12), float64(22)},
	)

	chunker := Chunker{RangeSize: 1000}
	m := NewMerger(ChannelSet{}, incoming, NewRange(100, 1500, true))
	chunks, err := chunker.Chunk(m.Merge(EmptyIterator()), depthIndex(true))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// Simulate the store applying shared attributes and assigning ids.
	for i := range chunks {
		chunks[i].UID = fmt.Sprintf("uid%d", i)
		chunks[i].MnemonicList = set.MnemonicList()
		chunks[i].UnitList = set.UnitList()
		chunks[i].NullValueList = set.NullValueList()
	}

	identity := buildReader(t, depthIndex(true), set)
	m2 := NewMerger(set, identity, NewRange(0, 2000, true))
	records := drain(t, m2.Merge(NewChunkIterator(chunks)))

	require.Len(t, records, 3)
	assert.Equal(t, []any{float64(100), float64(10), float64(20)}, records[0].Values)
	assert.Equal(t, []any{float64(200), float64(11), float64(21)}, records[1].Values)
	assert.Equal(t, []any{float64(1500), float64(12), float64(22)}, records[2].Values)

	rechunked, err := chunker.Chunk(NewSliceIterator(records), depthIndex(true))
	require.NoError(t, err)
	require.Len(t, rechunked, 2)
	assert.Equal(t, 2, rechunked[0].RecordCount)
	assert.Equal(t, 1, rechunked[1].RecordCount)
}
