package channeldata

import (
	"fmt"
	"strconv"
	"time"
)

// ChannelIndexInfo describes one index axis of a log. Time indexes are
// encoded as float64 microseconds since the Unix epoch so every range
// shares a numeric domain; UtcOffsetSeconds preserves the offset of the
// first observed value for date-time echoes. Start and End are populated
// only on the copies embedded in a chunk, where they bracket the records
// the chunk holds.
type ChannelIndexInfo struct {
	Mnemonic         string  `bson:"mnemonic" json:"mnemonic"`
	Unit             string  `bson:"unit" json:"unit"`
	Increasing       bool    `bson:"increasing" json:"increasing"`
	IsTimeIndex      bool    `bson:"isTimeIndex" json:"isTimeIndex"`
	UtcOffsetSeconds int     `bson:"utcOffsetSeconds,omitempty" json:"utcOffsetSeconds,omitempty"`
	Start            float64 `bson:"start" json:"start"`
	End              float64 `bson:"end" json:"end"`
}

// Range returns the index span recorded on a chunk-embedded descriptor.
func (i ChannelIndexInfo) Range() Range {
	return Range{Start: i.Start, End: i.End, Increasing: i.Increasing}
}

// ToMicroseconds encodes a timestamp in the numeric index domain.
func ToMicroseconds(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// FromMicroseconds decodes a numeric time index back into a UTC timestamp.
func FromMicroseconds(v float64) time.Time {
	return time.UnixMicro(int64(v)).UTC()
}

// Record is one row of a channel-data stream: a primary index value plus
// the parallel channel columns. Values[0] always holds the primary index.
// ChunkID carries the uid of the stored chunk the row originated from, or
// is empty for rows that have never been persisted.
type Record struct {
	Index   float64
	Values  []any
	ChunkID string
}

// Copy returns a deep copy of the record's column slice.
func (r *Record) Copy() *Record {
	values := make([]any, len(r.Values))
	copy(values, r.Values)

	return &Record{Index: r.Index, Values: values, ChunkID: r.ChunkID}
}

// IsNull reports whether the value in the given column is the channel's
// null sentinel. A nil value is always null; otherwise values match the
// sentinel textually or, when both parse, numerically.
func IsNull(v any, sentinel string) bool {
	if v == nil {
		return true
	}
	if sentinel == "" {
		return false
	}

	text := valueString(v)
	if text == sentinel {
		return true
	}

	nullNum, err := strconv.ParseFloat(sentinel, 64)
	if err != nil {
		return false
	}
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return false
	}

	return num == nullNum
}

// FormatValue renders a column value the way it appears in serialized rows.
func FormatValue(v any) string {
	return valueString(v)
}

// valueString renders a column value the way it appears in serialized rows.
func valueString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return fmt.Sprint(v)
	}
}
