package channeldata

import "strings"

// ChannelSet is the column schema of a record stream: parallel mnemonic,
// unit, and null-sentinel slices. Column 0 is always the primary index
// channel.
type ChannelSet struct {
	Mnemonics  []string
	Units      []string
	NullValues []string
}

// NewChannelSet builds a schema from comma-joined lists, the form chunks
// store them in.
func NewChannelSet(mnemonicList, unitList, nullValueList string) ChannelSet {
	return ChannelSet{
		Mnemonics:  splitList(mnemonicList),
		Units:      splitList(unitList),
		NullValues: splitList(nullValueList),
	}
}

func splitList(list string) []string {
	if list == "" {
		return nil
	}
	return strings.Split(list, ",")
}

// Len returns the column count.
func (s ChannelSet) Len() int { return len(s.Mnemonics) }

// IsEmpty reports whether the schema has no columns.
func (s ChannelSet) IsEmpty() bool { return len(s.Mnemonics) == 0 }

// Column returns the index of the given mnemonic, or -1.
func (s ChannelSet) Column(mnemonic string) int {
	for i, m := range s.Mnemonics {
		if m == mnemonic {
			return i
		}
	}
	return -1
}

// NullValue returns the null sentinel for the given column, or the empty
// string when none is declared.
func (s ChannelSet) NullValue(col int) string {
	if col < 0 || col >= len(s.NullValues) {
		return ""
	}
	return s.NullValues[col]
}

// Unit returns the unit for the given column, or the empty string.
func (s ChannelSet) Unit(col int) string {
	if col < 0 || col >= len(s.Units) {
		return ""
	}
	return s.Units[col]
}

// MnemonicList, UnitList, and NullValueList render the schema back into the
// comma-joined form stored on chunks.
func (s ChannelSet) MnemonicList() string  { return strings.Join(s.Mnemonics, ",") }
func (s ChannelSet) UnitList() string      { return strings.Join(s.Units, ",") }
func (s ChannelSet) NullValueList() string { return strings.Join(s.NullValues, ",") }

// Union merges two schemas, keeping s's column order and appending the
// channels only present in other. The primary column of s stays first.
func (s ChannelSet) Union(other ChannelSet) ChannelSet {
	if s.IsEmpty() {
		return other
	}

	out := ChannelSet{
		Mnemonics:  append([]string{}, s.Mnemonics...),
		Units:      append([]string{}, s.Units...),
		NullValues: append([]string{}, s.NullValues...),
	}
	for i, m := range other.Mnemonics {
		if out.Column(m) >= 0 {
			continue
		}
		out.Mnemonics = append(out.Mnemonics, m)
		out.Units = append(out.Units, other.Unit(i))
		out.NullValues = append(out.NullValues, other.NullValue(i))
	}

	return out
}

// Mapping returns, for each column of s, its column in target, or -1 when
// target does not carry the channel.
func (s ChannelSet) Mapping(target ChannelSet) []int {
	mapping := make([]int, s.Len())
	for i, m := range s.Mnemonics {
		mapping[i] = target.Column(m)
	}
	return mapping
}
