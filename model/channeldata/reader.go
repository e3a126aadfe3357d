package channeldata

import (
	"github.com/pkg/errors"
)

// Reader is an ordered multi-channel record payload headed into the engine:
// the rows a caller wants appended or updated, plus the column schema and
// index descriptor they are expressed in. Rows must be added in log
// direction.
type Reader struct {
	channels ChannelSet
	index    ChannelIndexInfo
	records  []*Record

	// per-column span of non-null values, computed lazily
	channelRanges []*Range
}

// NewReader returns a reader for the given index descriptor and channel
// schema. The schema's column 0 must be the primary index channel.
func NewReader(index ChannelIndexInfo, channels ChannelSet) (*Reader, error) {
	if channels.IsEmpty() {
		return nil, errors.Wrap(ErrInvalidRange, "reader requires at least the primary index channel")
	}
	if channels.Mnemonics[0] != index.Mnemonic {
		return nil, errors.Wrapf(ErrInvalidRange, "primary mnemonic '%s' must be column 0", index.Mnemonic)
	}
	if len(channels.Units) != channels.Len() || len(channels.NullValues) != channels.Len() {
		return nil, errors.Wrap(ErrInvalidRange, "channel lists must have equal arity")
	}

	return &Reader{channels: channels, index: index}, nil
}

// AddRow appends one row. values must be parallel to the non-index columns;
// the index value is prepended as column 0.
func (r *Reader) AddRow(index float64, values ...any) error {
	if len(values) != r.channels.Len()-1 {
		return errors.Wrapf(ErrInvalidRange, "row arity %d does not match %d channels", len(values)+1, r.channels.Len())
	}

	row := make([]any, 0, r.channels.Len())
	row = append(row, index)
	row = append(row, values...)
	r.records = append(r.records, &Record{Index: index, Values: row})
	r.channelRanges = nil

	return nil
}

// ChannelSet returns the reader's column schema.
func (r *Reader) ChannelSet() ChannelSet { return r.channels }

// IndexInfo returns the reader's primary index descriptor.
func (r *Reader) IndexInfo() ChannelIndexInfo { return r.index }

// Increasing reports the reader's index direction.
func (r *Reader) Increasing() bool { return r.index.Increasing }

// IsEmpty reports whether the reader carries no rows.
func (r *Reader) IsEmpty() bool { return len(r.records) == 0 }

// Count returns the number of rows.
func (r *Reader) Count() int { return len(r.records) }

// Iterator returns a forward iterator over the reader's rows.
func (r *Reader) Iterator() Iterator { return NewSliceIterator(r.records) }

// UpdateRange returns the primary-index span of the payload. The second
// return is false for an empty reader.
func (r *Reader) UpdateRange() (Range, bool) {
	if len(r.records) == 0 {
		return Range{}, false
	}

	return Range{
		Start:      r.records[0].Index,
		End:        r.records[len(r.records)-1].Index,
		Increasing: r.index.Increasing,
	}, true
}

// ChannelRange returns the span of indexes over which the given column
// carries non-null values, or nil when the column is absent or all-null.
func (r *Reader) ChannelRange(col int) *Range {
	if col < 0 || col >= r.channels.Len() {
		return nil
	}
	if r.channelRanges == nil {
		r.computeChannelRanges()
	}

	return r.channelRanges[col]
}

// ChannelRanges returns the observed per-mnemonic index spans, excluding
// all-null channels. The primary index channel spans the whole payload.
func (r *Reader) ChannelRanges() map[string]Range {
	ranges := map[string]Range{}
	for col, mnemonic := range r.channels.Mnemonics {
		if rng := r.ChannelRange(col); rng != nil {
			ranges[mnemonic] = *rng
		}
	}

	return ranges
}

func (r *Reader) computeChannelRanges() {
	r.channelRanges = make([]*Range, r.channels.Len())
	for _, rec := range r.records {
		for col := range r.channels.Mnemonics {
			if col > 0 && (col >= len(rec.Values) || IsNull(rec.Values[col], r.channels.NullValue(col))) {
				continue
			}
			if r.channelRanges[col] == nil {
				r.channelRanges[col] = &Range{Start: rec.Index, End: rec.Index, Increasing: r.index.Increasing}
			} else {
				r.channelRanges[col].End = rec.Index
			}
		}
	}
}

// Slice returns a reader projected onto the requested mnemonic subset. The
// primary index channel is always retained. Unknown mnemonics are ignored.
func (r *Reader) Slice(mnemonics []string) *Reader {
	if len(mnemonics) == 0 {
		return r
	}

	keep := []int{0}
	for col, m := range r.channels.Mnemonics {
		if col == 0 {
			continue
		}
		for _, requested := range mnemonics {
			if m == requested {
				keep = append(keep, col)
				break
			}
		}
	}
	if len(keep) == r.channels.Len() {
		return r
	}

	sliced := &Reader{index: r.index}
	for _, col := range keep {
		sliced.channels.Mnemonics = append(sliced.channels.Mnemonics, r.channels.Mnemonics[col])
		sliced.channels.Units = append(sliced.channels.Units, r.channels.Unit(col))
		sliced.channels.NullValues = append(sliced.channels.NullValues, r.channels.NullValue(col))
	}
	for _, rec := range r.records {
		values := make([]any, 0, len(keep))
		for _, col := range keep {
			if col < len(rec.Values) {
				values = append(values, rec.Values[col])
			} else {
				values = append(values, nil)
			}
		}
		sliced.records = append(sliced.records, &Record{Index: rec.Index, Values: values, ChunkID: rec.ChunkID})
	}

	return sliced
}
