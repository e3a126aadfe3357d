package log

import (
	"math"
	"time"

	"github.com/nilsbenson/witsml-server/model/channeldata"
)

// Collection holds log headers. Channel data lives in the chunk collection
// and is joined by URI.
const Collection = "logs"

// timeIndexFormat renders date-time index echoes, ISO-8601 with the offset
// preserved from the first observed reader.
const timeIndexFormat = "2006-01-02T15:04:05.000Z07:00"

// Curve describes one channel of a log and the index span over which it
// carries values. Numeric logs use MinIndex/MaxIndex; time logs use the
// date-time pair. The Specified flags distinguish zero values from absent
// ones.
type Curve struct {
	Mnemonic                  string  `bson:"mnemonic" json:"mnemonic"`
	Unit                      string  `bson:"unit" json:"unit"`
	NullValue                 string  `bson:"nullValue,omitempty" json:"nullValue,omitempty"`
	MinIndex                  float64 `bson:"minIndex,omitempty" json:"minIndex,omitempty"`
	MaxIndex                  float64 `bson:"maxIndex,omitempty" json:"maxIndex,omitempty"`
	MinIndexSpecified         bool    `bson:"minIndexSpecified" json:"minIndexSpecified"`
	MaxIndexSpecified         bool    `bson:"maxIndexSpecified" json:"maxIndexSpecified"`
	MinDateTimeIndex          string  `bson:"minDateTimeIndex,omitempty" json:"minDateTimeIndex,omitempty"`
	MaxDateTimeIndex          string  `bson:"maxDateTimeIndex,omitempty" json:"maxDateTimeIndex,omitempty"`
	MinDateTimeIndexSpecified bool    `bson:"minDateTimeIndexSpecified" json:"minDateTimeIndexSpecified"`
	MaxDateTimeIndexSpecified bool    `bson:"maxDateTimeIndexSpecified" json:"maxDateTimeIndexSpecified"`
}

// Log is a log header. The engine mutates only the index range fields; the
// rest is owned by the protocol surface.
type Log struct {
	UID              string  `bson:"uid" json:"uid"`
	URI              string  `bson:"uri" json:"uri"`
	WellURI          string  `bson:"wellUri" json:"wellUri"`
	WellboreURI      string  `bson:"wellboreUri" json:"wellboreUri"`
	Name             string  `bson:"name" json:"name"`
	IndexMnemonic    string  `bson:"indexMnemonic" json:"indexMnemonic"`
	IndexUnit        string  `bson:"indexUnit" json:"indexUnit"`
	Increasing       bool    `bson:"increasing" json:"increasing"`
	IsTimeIndex      bool    `bson:"isTimeIndex" json:"isTimeIndex"`
	UtcOffsetSeconds int     `bson:"utcOffsetSeconds,omitempty" json:"utcOffsetSeconds,omitempty"`
	Curves           []Curve `bson:"curves" json:"curves"`

	StartIndex                  float64 `bson:"startIndex,omitempty" json:"startIndex,omitempty"`
	EndIndex                    float64 `bson:"endIndex,omitempty" json:"endIndex,omitempty"`
	StartIndexSpecified         bool    `bson:"startIndexSpecified" json:"startIndexSpecified"`
	EndIndexSpecified           bool    `bson:"endIndexSpecified" json:"endIndexSpecified"`
	StartDateTimeIndex          string  `bson:"startDateTimeIndex,omitempty" json:"startDateTimeIndex,omitempty"`
	EndDateTimeIndex            string  `bson:"endDateTimeIndex,omitempty" json:"endDateTimeIndex,omitempty"`
	StartDateTimeIndexSpecified bool    `bson:"startDateTimeIndexSpecified" json:"startDateTimeIndexSpecified"`
	EndDateTimeIndexSpecified   bool    `bson:"endDateTimeIndexSpecified" json:"endDateTimeIndexSpecified"`
}

// PrimaryIndexInfo returns the log's primary index descriptor.
func (l *Log) PrimaryIndexInfo() channeldata.ChannelIndexInfo {
	return channeldata.ChannelIndexInfo{
		Mnemonic:         l.IndexMnemonic,
		Unit:             l.IndexUnit,
		Increasing:       l.Increasing,
		IsTimeIndex:      l.IsTimeIndex,
		UtcOffsetSeconds: l.UtcOffsetSeconds,
	}
}

// Curve returns the curve with the given mnemonic, or nil.
func (l *Log) Curve(mnemonic string) *Curve {
	for i := range l.Curves {
		if l.Curves[i].Mnemonic == mnemonic {
			return &l.Curves[i]
		}
	}
	return nil
}

// NullValue returns the null sentinel declared for the given mnemonic.
func (l *Log) NullValue(mnemonic string) string {
	if c := l.Curve(mnemonic); c != nil {
		return c.NullValue
	}
	return ""
}

// Copy returns a copy of the header with its own curve slice, for
// projection and echo without touching the stored document.
func (l *Log) Copy() *Log {
	dup := *l
	dup.Curves = append([]Curve{}, l.Curves...)
	return &dup
}

// ApplyIndexRanges widens the per-curve and log-level index range fields to
// cover the given observed per-mnemonic ranges. Curves for unknown
// mnemonics are appended with the given units and null sentinels. It
// reports whether anything changed.
func (l *Log) ApplyIndexRanges(ranges map[string]channeldata.Range, channels channeldata.ChannelSet) bool {
	changed := false
	for mnemonic, rng := range ranges {
		curve := l.Curve(mnemonic)
		if curve == nil {
			col := channels.Column(mnemonic)
			l.Curves = append(l.Curves, Curve{
				Mnemonic:  mnemonic,
				Unit:      channels.Unit(col),
				NullValue: channels.NullValue(col),
			})
			curve = &l.Curves[len(l.Curves)-1]
			changed = true
		}

		lo, hi := rng.Sorted()
		if l.widenCurve(curve, lo, hi) {
			changed = true
		}
	}

	if changed {
		l.recomputeLogRange()
	}

	return changed
}

func (l *Log) widenCurve(curve *Curve, lo, hi float64) bool {
	changed := false
	if l.IsTimeIndex {
		if !curve.MinDateTimeIndexSpecified || lo < l.parseTimeIndex(curve.MinDateTimeIndex) {
			curve.MinDateTimeIndex = l.FormatTimeIndex(lo)
			curve.MinDateTimeIndexSpecified = true
			changed = true
		}
		if !curve.MaxDateTimeIndexSpecified || hi > l.parseTimeIndex(curve.MaxDateTimeIndex) {
			curve.MaxDateTimeIndex = l.FormatTimeIndex(hi)
			curve.MaxDateTimeIndexSpecified = true
			changed = true
		}
		return changed
	}

	if !curve.MinIndexSpecified || lo < curve.MinIndex {
		curve.MinIndex = lo
		curve.MinIndexSpecified = true
		changed = true
	}
	if !curve.MaxIndexSpecified || hi > curve.MaxIndex {
		curve.MaxIndex = hi
		curve.MaxIndexSpecified = true
		changed = true
	}

	return changed
}

// recomputeLogRange derives the log-level start and end from the curve
// ranges, respecting direction: start is the first index in log direction.
func (l *Log) recomputeLogRange() {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	any := false
	for i := range l.Curves {
		c := &l.Curves[i]
		if l.IsTimeIndex {
			if !c.MinDateTimeIndexSpecified || !c.MaxDateTimeIndexSpecified {
				continue
			}
			lo = math.Min(lo, l.parseTimeIndex(c.MinDateTimeIndex))
			hi = math.Max(hi, l.parseTimeIndex(c.MaxDateTimeIndex))
		} else {
			if !c.MinIndexSpecified || !c.MaxIndexSpecified {
				continue
			}
			lo = math.Min(lo, c.MinIndex)
			hi = math.Max(hi, c.MaxIndex)
		}
		any = true
	}
	if !any {
		return
	}

	start, end := lo, hi
	if !l.Increasing {
		start, end = hi, lo
	}

	if l.IsTimeIndex {
		l.StartDateTimeIndex = l.FormatTimeIndex(start)
		l.EndDateTimeIndex = l.FormatTimeIndex(end)
		l.StartDateTimeIndexSpecified = true
		l.EndDateTimeIndexSpecified = true
		return
	}

	l.StartIndex = start
	l.EndIndex = end
	l.StartIndexSpecified = true
	l.EndIndexSpecified = true
}

// FormatTimeIndex renders a numeric time index in the log's UTC offset.
func (l *Log) FormatTimeIndex(v float64) string {
	zone := time.FixedZone("", l.UtcOffsetSeconds)
	return channeldata.FromMicroseconds(v).In(zone).Format(timeIndexFormat)
}

func (l *Log) parseTimeIndex(s string) float64 {
	t, err := time.Parse(timeIndexFormat, s)
	if err != nil {
		// Fall back to the permissive parser for hand-written documents.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return math.NaN()
		}
	}
	return channeldata.ToMicroseconds(t)
}
