package channeldata

import (
	"github.com/pkg/errors"
)

// Chunker converts a record stream into chunks aligned to extents of
// RangeSize on the primary index axis. Emitted chunks carry only their
// payload, per-chunk index span, record count, and the uid of the first
// record in the chunk; the shared per-write attributes are applied by the
// store at bulk-write time.
type Chunker struct {
	RangeSize float64
}

// Chunk splits the stream in a single forward pass, validating every row.
// A repeated primary index fails with ErrDuplicateIndex and a monotonicity
// violation with ErrIndexOutOfOrder; in both cases no chunks are returned.
func (c Chunker) Chunk(it Iterator, index ChannelIndexInfo) ([]Chunk, error) {
	if c.RangeSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "chunk range size %f must be positive", c.RangeSize)
	}

	var (
		chunks     []Chunk
		rows       [][]any
		extent     Range
		startIdx   float64
		endIdx     float64
		uid        string
		previous   float64
		hasPrev    bool
		increasing = index.Increasing
		usedUIDs   = map[string]bool{}
	)

	emit := func() error {
		data, err := EncodeRows(rows)
		if err != nil {
			return err
		}

		chunkIndex := index
		chunkIndex.Start = startIdx
		chunkIndex.End = endIdx
		chunks = append(chunks, Chunk{
			UID:         uid,
			Indices:     []ChannelIndexInfo{chunkIndex},
			Data:        data,
			RecordCount: len(rows),
		})
		if uid != "" {
			usedUIDs[uid] = true
		}

		return nil
	}

	// Merged streams stamp the carried stored-chunk id onto incoming rows,
	// so the same id can reappear after its extent was emitted. A uid may
	// identify at most one chunk per pass; a repeat becomes an insert.
	adoptUID := func(id string) string {
		if id == "" || usedUIDs[id] {
			return ""
		}
		return id
	}

	for it.Next() {
		rec := it.Record()

		if hasPrev {
			if rec.Index == previous {
				return nil, errors.Wrapf(ErrDuplicateIndex, "index %f repeats", rec.Index)
			}
			if (increasing && previous > rec.Index) || (!increasing && previous < rec.Index) {
				return nil, errors.Wrapf(ErrIndexOutOfOrder, "index %f follows %f", rec.Index, previous)
			}
		}

		if !hasPrev {
			extent = ComputeRange(rec.Index, c.RangeSize, increasing)
			startIdx = rec.Index
			uid = adoptUID(rec.ChunkID)
		} else if !extent.Contains(rec.Index, false) {
			if err := emit(); err != nil {
				return nil, err
			}

			rows = nil
			extent = ComputeRange(rec.Index, c.RangeSize, increasing)
			startIdx = rec.Index
			uid = adoptUID(rec.ChunkID)
		}

		// Adopt the stored chunk id as soon as any accumulated record
		// carries one, so an extent that already has a chunk is updated
		// rather than duplicated.
		if uid == "" {
			uid = adoptUID(rec.ChunkID)
		}

		rows = append(rows, rec.Values)
		endIdx = rec.Index
		previous = rec.Index
		hasPrev = true
	}

	if err := it.Err(); err != nil {
		return nil, wrapKind(ErrRead, err)
	}

	if len(rows) > 0 {
		if err := emit(); err != nil {
			return nil, err
		}
	}

	return chunks, nil
}
