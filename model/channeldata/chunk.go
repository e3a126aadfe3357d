package channeldata

import (
	"encoding/json"

	"github.com/mongodb/anser/bsonutil"
	"github.com/pkg/errors"
)

// Collection holds the channel-data chunks for every log.
const Collection = "channelDataChunk"

// Chunk is the storage atom of the channel-data engine: a fixed-extent,
// index-ordered window of records for one log. The uid is assigned once at
// first insert; the uri never changes. The data payload is an opaque JSON
// array of rows that only the record iterators parse.
type Chunk struct {
	UID           string             `bson:"uid,omitempty" json:"uid,omitempty"`
	URI           string             `bson:"uri" json:"uri"`
	Indices       []ChannelIndexInfo `bson:"indices" json:"indices"`
	MnemonicList  string             `bson:"mnemonicList" json:"mnemonicList"`
	UnitList      string             `bson:"unitList" json:"unitList"`
	NullValueList string             `bson:"nullValueList" json:"nullValueList"`
	Data          string             `bson:"data" json:"data"`
	RecordCount   int                `bson:"recordCount" json:"recordCount"`
}

var (
	UIDKey           = bsonutil.MustHaveTag(Chunk{}, "UID")
	URIKey           = bsonutil.MustHaveTag(Chunk{}, "URI")
	IndicesKey       = bsonutil.MustHaveTag(Chunk{}, "Indices")
	MnemonicListKey  = bsonutil.MustHaveTag(Chunk{}, "MnemonicList")
	UnitListKey      = bsonutil.MustHaveTag(Chunk{}, "UnitList")
	NullValueListKey = bsonutil.MustHaveTag(Chunk{}, "NullValueList")
	DataKey          = bsonutil.MustHaveTag(Chunk{}, "Data")
	RecordCountKey   = bsonutil.MustHaveTag(Chunk{}, "RecordCount")

	indexMnemonicKey = bsonutil.GetDottedKeyName(IndicesKey, "0", "mnemonic")
	indexStartKey    = bsonutil.GetDottedKeyName(IndicesKey, "0", "start")
	indexEndKey      = bsonutil.GetDottedKeyName(IndicesKey, "0", "end")
)

// PrimaryIndex returns the chunk's primary index descriptor.
func (c *Chunk) PrimaryIndex() ChannelIndexInfo {
	if len(c.Indices) == 0 {
		return ChannelIndexInfo{}
	}
	return c.Indices[0]
}

// Range returns the closed span of the records the chunk holds.
func (c *Chunk) Range() Range {
	return c.PrimaryIndex().Range()
}

// ChannelSet returns the chunk's column schema.
func (c *Chunk) ChannelSet() ChannelSet {
	return NewChannelSet(c.MnemonicList, c.UnitList, c.NullValueList)
}

// DecodeData parses the chunk payload into rows. Each row is an array whose
// first element is the primary index value.
func (c *Chunk) DecodeData() ([][]any, error) {
	if c.Data == "" {
		return nil, nil
	}

	var rows [][]any
	if err := json.Unmarshal([]byte(c.Data), &rows); err != nil {
		return nil, errors.Wrapf(err, "decoding data of chunk '%s'", c.UID)
	}

	return rows, nil
}

// EncodeRows serializes rows into the chunk payload format.
func EncodeRows(rows [][]any) (string, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return "", errors.Wrap(err, "encoding chunk data")
	}

	return string(data), nil
}
