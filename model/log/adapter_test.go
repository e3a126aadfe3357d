package log

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/evergreen-ci/utility"
	witsml "github.com/nilsbenson/witsml-server"
	"github.com/nilsbenson/witsml-server/model/channeldata"
	"github.com/nilsbenson/witsml-server/model/transaction"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

const testLogURI = "eml://witsml14/well(w1)/wellbore(wb1)/log(l1)"

// fakeChunkStore keeps chunks in memory with the same overlap and ordering
// semantics the document store applies.
type fakeChunkStore struct {
	chunks map[string][]channeldata.Chunk
	nextID int
	writes int
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: map[string][]channeldata.Chunk{}}
}

func (f *fakeChunkStore) Fetch(_ context.Context, uri, mnemonic string, rng *channeldata.Range, increasing bool) ([]channeldata.Chunk, error) {
	out := []channeldata.Chunk{}
	for _, c := range f.chunks[uri] {
		if rng != nil {
			if c.PrimaryIndex().Mnemonic != mnemonic {
				continue
			}
			lo, hi := c.Range().Sorted()
			qlo, qhi := rng.Sorted()
			if hi < qlo || lo > qhi {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if increasing {
			return out[i].Indices[0].Start < out[j].Indices[0].Start
		}
		return out[i].Indices[0].Start > out[j].Indices[0].Start
	})

	return out, nil
}

func (f *fakeChunkStore) BulkWrite(_ context.Context, uri string, chunks []channeldata.Chunk, channels channeldata.ChannelSet, _ *transaction.Transaction) error {
	stored := f.chunks[uri]
	for _, c := range chunks {
		c.URI = uri
		c.MnemonicList = channels.MnemonicList()
		c.UnitList = channels.UnitList()
		c.NullValueList = channels.NullValueList()

		if c.UID == "" {
			f.nextID++
			c.UID = fmt.Sprintf("chunk-%d", f.nextID)
			stored = append(stored, c)
			continue
		}

		replaced := false
		for i := range stored {
			if stored[i].UID == c.UID {
				stored[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			return errors.Errorf("chunk '%s' vanished mid-write", c.UID)
		}
	}
	f.chunks[uri] = stored
	f.writes++

	return nil
}

func (f *fakeChunkStore) DeleteByURI(_ context.Context, uri string, _ *transaction.Transaction) error {
	delete(f.chunks, uri)
	return nil
}

type fakeHeaderStore struct {
	logs  map[string]*Log
	saves int
}

func (f *fakeHeaderStore) FindByURI(_ context.Context, uri string) (*Log, error) {
	l, ok := f.logs[uri]
	if !ok {
		return nil, nil
	}
	return l.Copy(), nil
}

func (f *fakeHeaderStore) SaveIndexRanges(_ context.Context, _, updated *Log, _ *transaction.Transaction) error {
	f.logs[updated.URI] = updated.Copy()
	f.saves++
	return nil
}

func (f *fakeHeaderStore) Remove(_ context.Context, uri string, _ *transaction.Transaction) error {
	delete(f.logs, uri)
	return nil
}

type AdapterSuite struct {
	suite.Suite
	ctx     context.Context
	store   *fakeChunkStore
	headers *fakeHeaderStore
	adapter *Adapter
}

func TestAdapterSuite(t *testing.T) {
	suite.Run(t, new(AdapterSuite))
}

func (s *AdapterSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newFakeChunkStore()
	s.headers = &fakeHeaderStore{logs: map[string]*Log{}}
	s.adapter = &Adapter{
		store:   s.store,
		headers: s.headers,
		config: witsml.ChannelDataConfig{
			DepthChunkSize:        1000,
			TimeChunkSize:         witsml.DefaultTimeChunkSize,
			StreamIndexValuePairs: true,
			MaxDataNodes:          witsml.DefaultMaxDataNodes,
			MaxDataPoints:         witsml.DefaultMaxDataPoints,
		},
		beginTx: func(context.Context) (*transaction.Transaction, error) { return nil, nil },
	}

	s.headers.logs[testLogURI] = &Log{
		UID:           "l1",
		URI:           testLogURI,
		WellURI:       "eml://witsml14/well(w1)",
		WellboreURI:   "eml://witsml14/well(w1)/wellbore(wb1)",
		Name:          "GR log",
		IndexMnemonic: "DEPTH",
		IndexUnit:     "m",
		Increasing:    true,
		Curves: []Curve{
			{Mnemonic: "DEPTH", Unit: "m"},
			{Mnemonic: "GR", Unit: "gAPI", NullValue: "-999.25"},
			{Mnemonic: "ROP", Unit: "m/h", NullValue: "-999.25"},
		},
	}
}

func (s *AdapterSuite) reader(mnemonics, units, nulls string) *channeldata.Reader {
	r, err := channeldata.NewReader(
		channeldata.ChannelIndexInfo{Mnemonic: "DEPTH", Unit: "m", Increasing: true},
		channeldata.NewChannelSet(mnemonics, units, nulls),
	)
	s.Require().NoError(err)
	return r
}

func (s *AdapterSuite) fullReader() *channeldata.Reader {
	return s.reader("DEPTH,GR,ROP", "m,gAPI,m/h", ",-999.25,-999.25")
}

func (s *AdapterSuite) seedRows() {
	r := s.fullReader()
	s.Require().NoError(r.AddRow(100, float64(10), float64(20)))
	s.Require().NoError(r.AddRow(200, float64(11), float64(21)))
	s.Require().NoError(r.AddRow(300, float64(12), float64(22)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, r))
}

func (s *AdapterSuite) TestAppendCreatesChunkAndWidensHeader() {
	s.seedRows()

	chunks := s.store.chunks[testLogURI]
	s.Require().Len(chunks, 1)
	s.Equal(float64(100), chunks[0].Indices[0].Start)
	s.Equal(float64(300), chunks[0].Indices[0].End)
	s.Equal(3, chunks[0].RecordCount)
	s.Equal("DEPTH,GR,ROP", chunks[0].MnemonicList)

	header := s.headers.logs[testLogURI]
	s.True(header.StartIndexSpecified)
	s.Equal(float64(100), header.StartIndex)
	s.Equal(float64(300), header.EndIndex)
	gr := header.Curve("GR")
	s.Require().NotNil(gr)
	s.Equal(float64(100), gr.MinIndex)
	s.Equal(float64(300), gr.MaxIndex)
}

func (s *AdapterSuite) TestAppendSpansExtents() {
	r := s.fullReader()
	s.Require().NoError(r.AddRow(100, float64(1), float64(1)))
	s.Require().NoError(r.AddRow(1500, float64(2), float64(2)))
	s.Require().NoError(r.AddRow(2500, float64(3), float64(3)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, r))

	chunks := s.store.chunks[testLogURI]
	s.Require().Len(chunks, 3)
	s.Equal(float64(100), chunks[0].Indices[0].Start)
	s.Equal(float64(1500), chunks[1].Indices[0].Start)
	s.Equal(float64(2500), chunks[2].Indices[0].Start)
}

func (s *AdapterSuite) TestUpdateOverwritesChannelValuesInPlace() {
	s.seedRows()

	upd := s.reader("DEPTH,ROP", "m,m/h", ",-999.25")
	s.Require().NoError(upd.AddRow(200, float64(99)))
	s.Require().NoError(upd.AddRow(300, float64(99)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, upd))

	s.Require().Len(s.store.chunks[testLogURI], 1, "update must replace the stored chunk, not add one")

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI})
	s.Require().NoError(err)
	s.Require().NotNil(res)
	s.Equal([]string{"DEPTH", "GR", "ROP"}, res.Mnemonics)
	s.Equal([][]string{
		{"100", "10", "20"},
		{"200", "11", "99"},
		{"300", "12", "99"},
	}, res.Rows)
}

func (s *AdapterSuite) TestUpdateInsideRangeClearsUntouchedRows() {
	s.seedRows()

	// The payload's range covers index 200 but supplies no row there, so
	// the covered channel is cleared; GR keeps the row alive.
	upd := s.reader("DEPTH,ROP", "m,m/h", ",-999.25")
	s.Require().NoError(upd.AddRow(100, float64(50)))
	s.Require().NoError(upd.AddRow(300, float64(52)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, upd))

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI})
	s.Require().NoError(err)
	s.Equal([][]string{
		{"100", "10", "50"},
		{"200", "11", "-999.25"},
		{"300", "12", "52"},
	}, res.Rows)
}

func (s *AdapterSuite) TestUpdateIsIdempotent() {
	s.seedRows()

	upd := s.reader("DEPTH,ROP", "m,m/h", ",-999.25")
	s.Require().NoError(upd.AddRow(200, float64(99)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, upd))
	first := append([]channeldata.Chunk{}, s.store.chunks[testLogURI]...)

	again := s.reader("DEPTH,ROP", "m,m/h", ",-999.25")
	s.Require().NoError(again.AddRow(200, float64(99)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, again))

	s.Equal(first, s.store.chunks[testLogURI])
}

func (s *AdapterSuite) TestHeaderSavedOnlyWhenRangesChange() {
	s.seedRows()
	s.Equal(1, s.headers.saves)

	// An overwrite inside the established range changes no curve span.
	upd := s.reader("DEPTH,ROP", "m,m/h", ",-999.25")
	s.Require().NoError(upd.AddRow(200, float64(99)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, upd))
	s.Equal(1, s.headers.saves)
}

func (s *AdapterSuite) TestUpdateAppendsUnknownCurveToHeader() {
	r := s.reader("DEPTH,HKLD", "m,klbf", ",-999.25")
	s.Require().NoError(r.AddRow(100, float64(75)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, r))

	hkld := s.headers.logs[testLogURI].Curve("HKLD")
	s.Require().NotNil(hkld)
	s.Equal("klbf", hkld.Unit)
	s.Equal(float64(100), hkld.MinIndex)
}

func (s *AdapterSuite) TestUpdateRejectsOutOfOrderPayload() {
	s.seedRows()
	writes := s.store.writes

	r := s.fullReader()
	s.Require().NoError(r.AddRow(300, float64(1), float64(1)))
	s.Require().NoError(r.AddRow(200, float64(2), float64(2)))

	err := s.adapter.UpdateData(s.ctx, testLogURI, r)
	s.True(channeldata.IsKind(err, channeldata.ErrIndexOutOfOrder))
	s.Equal(writes, s.store.writes, "a failed payload must write nothing")
}

func (s *AdapterSuite) TestUpdateRejectsDuplicateIndex() {
	r := s.fullReader()
	s.Require().NoError(r.AddRow(100, float64(1), float64(1)))
	s.Require().NoError(r.AddRow(100, float64(2), float64(2)))

	err := s.adapter.UpdateData(s.ctx, testLogURI, r)
	s.True(channeldata.IsKind(err, channeldata.ErrDuplicateIndex))
	s.Empty(s.store.chunks[testLogURI])
}

func (s *AdapterSuite) TestUpdateRejectsMismatchedDirection() {
	r, err := channeldata.NewReader(
		channeldata.ChannelIndexInfo{Mnemonic: "DEPTH", Unit: "m", Increasing: false},
		channeldata.NewChannelSet("DEPTH,GR", "m,gAPI", ",-999.25"),
	)
	s.Require().NoError(err)
	s.Require().NoError(r.AddRow(100, float64(1)))

	s.True(channeldata.IsKind(s.adapter.UpdateData(s.ctx, testLogURI, r), channeldata.ErrInvalidRange))
}

func (s *AdapterSuite) TestUpdateRejectsMismatchedUnits() {
	r := s.reader("DEPTH,GR", "m,ft", ",-999.25")
	s.Require().NoError(r.AddRow(100, float64(1)))

	s.True(channeldata.IsKind(s.adapter.UpdateData(s.ctx, testLogURI, r), channeldata.ErrInvalidRange))
}

func (s *AdapterSuite) TestUpdateUnknownLog() {
	r := s.fullReader()
	s.Require().NoError(r.AddRow(100, float64(1), float64(1)))

	err := s.adapter.UpdateData(s.ctx, "eml://witsml14/log(nope)", r)
	s.True(channeldata.IsKind(err, channeldata.ErrNotFound))
}

func (s *AdapterSuite) TestQueryUnknownLogReturnsNil() {
	res, err := s.adapter.QueryLog(s.ctx, Query{URI: "eml://witsml14/log(nope)"})
	s.NoError(err)
	s.Nil(res)
}

func (s *AdapterSuite) TestQueryRangeSliceAndHeaderEcho() {
	r := s.fullReader()
	for i := 1; i <= 5; i++ {
		s.Require().NoError(r.AddRow(float64(i*100), float64(i), float64(i)))
	}
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, r))

	res, err := s.adapter.QueryLog(s.ctx, Query{
		URI:        testLogURI,
		StartIndex: utility.ToFloat64Ptr(200),
		EndIndex:   utility.ToFloat64Ptr(400),
	})
	s.Require().NoError(err)
	s.Require().Len(res.Rows, 3)
	s.Equal("200", res.Rows[0][0])
	s.Equal("400", res.Rows[2][0])

	// The echoed header describes the returned slice, not the whole log.
	s.Equal(float64(200), res.Log.StartIndex)
	s.Equal(float64(400), res.Log.EndIndex)

	// The stored header still spans all the data.
	s.Equal(float64(100), s.headers.logs[testLogURI].StartIndex)
	s.Equal(float64(500), s.headers.logs[testLogURI].EndIndex)
}

func (s *AdapterSuite) TestQueryMnemonicSubset() {
	s.seedRows()

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI, Mnemonics: []string{"ROP"}})
	s.Require().NoError(err)
	s.Equal([]string{"DEPTH", "ROP"}, res.Mnemonics)
	s.Equal([]string{"m", "m/h"}, res.Units)
	s.Equal([]string{"100", "20"}, res.Rows[0])
}

func (s *AdapterSuite) TestQueryProjections() {
	s.seedRows()

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI, ReturnElements: ReturnIDOnly})
	s.Require().NoError(err)
	s.Empty(res.Rows)
	s.Empty(res.Log.Curves)
	s.Equal("l1", res.Log.UID)

	res, err = s.adapter.QueryLog(s.ctx, Query{URI: testLogURI, ReturnElements: ReturnHeaderOnly})
	s.Require().NoError(err)
	s.Empty(res.Rows)
	s.Len(res.Log.Curves, 3)
}

func (s *AdapterSuite) TestQueryTruncation() {
	s.adapter.config.MaxDataNodes = 2
	s.seedRows()

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI})
	s.Require().NoError(err)
	s.True(res.Truncated)
	s.Len(res.Rows, 2)
}

func (s *AdapterSuite) TestLatestValuesPerChannel() {
	r := s.fullReader()
	s.Require().NoError(r.AddRow(100, float64(1), float64(1)))
	s.Require().NoError(r.AddRow(1000, float64(2), "-999.25"))
	s.Require().NoError(r.AddRow(1500, float64(3), float64(3)))
	s.Require().NoError(r.AddRow(2500, nil, float64(4)))
	s.Require().NoError(s.adapter.UpdateData(s.ctx, testLogURI, r))

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI, LatestValues: 2})
	s.Require().NoError(err)

	// GR's latest two values are at 1000 and 1500, ROP's at 1500 and 2500;
	// rows come back in reverse direction, newest first.
	s.Equal([][]string{
		{"2500", "-999.25", "4"},
		{"1500", "3", "3"},
		{"1000", "2", "-999.25"},
	}, res.Rows)
}

func (s *AdapterSuite) TestQueryOmitsIndexMetadataWhenNotStreamingPairs() {
	s.adapter.config.StreamIndexValuePairs = false
	s.seedRows()

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI, Mnemonics: []string{"ROP"}})
	s.Require().NoError(err)

	// The index column stays in the rows but is left out of the metadata
	// lists.
	s.Equal([]string{"ROP"}, res.Mnemonics)
	s.Equal([]string{"m/h"}, res.Units)
	s.Equal([]string{"100", "20"}, res.Rows[0])
}

func (s *AdapterSuite) TestDeleteLogCascades() {
	s.seedRows()

	s.Require().NoError(s.adapter.DeleteLog(s.ctx, testLogURI))
	s.Empty(s.store.chunks[testLogURI])

	res, err := s.adapter.QueryLog(s.ctx, Query{URI: testLogURI})
	s.NoError(err)
	s.Nil(res)

	err = s.adapter.DeleteLog(s.ctx, testLogURI)
	s.True(channeldata.IsKind(err, channeldata.ErrNotFound))
}
