package channeldata

import "math"

// Range is a directed interval on a log's primary index axis. For an
// increasing range Start <= End; for a decreasing range Start >= End.
// Whether End is included is decided per operation: closed containment is
// used when selecting indexes for a result, open containment when deciding
// which chunk extent a value belongs to.
type Range struct {
	Start      float64 `bson:"start" json:"start"`
	End        float64 `bson:"end" json:"end"`
	Increasing bool    `bson:"increasing" json:"increasing"`
}

// NewRange returns a range over the given endpoints in the given direction.
func NewRange(start, end float64, increasing bool) Range {
	return Range{Start: start, End: end, Increasing: increasing}
}

// Contains reports whether v lies inside the range. A value equal to End
// counts only when closed is true, so that a value sitting on a chunk
// boundary belongs to the next chunk.
func (r Range) Contains(v float64, closed bool) bool {
	if r.Increasing {
		if closed {
			return v >= r.Start && v <= r.End
		}
		return v >= r.Start && v < r.End
	}
	if closed {
		return v <= r.Start && v >= r.End
	}
	return v <= r.Start && v > r.End
}

// StartsAfter reports whether the range begins past v in log direction.
func (r Range) StartsAfter(v float64, closed bool) bool {
	if r.Increasing {
		if closed {
			return r.Start >= v
		}
		return r.Start > v
	}
	if closed {
		return r.Start <= v
	}
	return r.Start < v
}

// EndsBefore reports whether the range finishes before v in log direction.
func (r Range) EndsBefore(v float64, closed bool) bool {
	if r.Increasing {
		if closed {
			return r.End <= v
		}
		return r.End < v
	}
	if closed {
		return r.End >= v
	}
	return r.End > v
}

// Sorted returns the endpoints in ascending numeric order regardless of
// direction.
func (r Range) Sorted() (float64, float64) {
	if r.Start <= r.End {
		return r.Start, r.End
	}
	return r.End, r.Start
}

// ComputeRange returns the half-open chunk extent that encloses v. Extents
// tile the axis with step size; the tiling mirrors when the direction
// reverses, so a value exactly on a boundary always belongs to the extent
// that starts there in log direction.
func ComputeRange(v, size float64, increasing bool) Range {
	if increasing {
		start := size * math.Floor(v/size)
		return Range{Start: start, End: start + size, Increasing: true}
	}

	start := size * math.Ceil(v/size)
	return Range{Start: start, End: start - size, Increasing: false}
}
