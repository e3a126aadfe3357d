package log

import (
	"context"
	"math"

	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	witsml "github.com/nilsbenson/witsml-server"
	"github.com/nilsbenson/witsml-server/model/channeldata"
	"github.com/nilsbenson/witsml-server/model/transaction"
	"github.com/pkg/errors"
)

// Return element selections, controlling how much of the header and data a
// query assembles.
const (
	ReturnAll        = "all"
	ReturnIDOnly     = "id-only"
	ReturnHeaderOnly = "header-only"
	ReturnDataOnly   = "data-only"
	ReturnRequested  = "requested"
)

// headerStore is the adapter's view of log header persistence. It exists so
// the adapter can be exercised against an in-memory implementation.
type headerStore interface {
	FindByURI(ctx context.Context, uri string) (*Log, error)
	SaveIndexRanges(ctx context.Context, prior, updated *Log, tx *transaction.Transaction) error
	Remove(ctx context.Context, uri string, tx *transaction.Transaction) error
}

// Adapter translates between log-shaped requests and the channel-data
// engine: it owns the fetch-merge-chunk-write pipeline and keeps the header
// index ranges consistent with the stored chunks.
type Adapter struct {
	store   channeldata.Store
	headers headerStore
	config  witsml.ChannelDataConfig
	beginTx func(context.Context) (*transaction.Transaction, error)
}

// NewAdapter returns an adapter backed by the environment's database.
func NewAdapter(env witsml.Environment) *Adapter {
	return &Adapter{
		store:   channeldata.NewMongoStore(env.DB()),
		headers: mongoHeaderStore{},
		config:  env.Settings().ChannelData,
		beginTx: func(ctx context.Context) (*transaction.Transaction, error) {
			return transaction.Begin(ctx, env.DB())
		},
	}
}

// Query selects one log and the slice of its data to return.
type Query struct {
	URI            string
	Mnemonics      []string
	StartIndex     *float64
	EndIndex       *float64
	ReturnElements string
	// LatestValues requests the last n non-null values per channel instead
	// of a contiguous range. Rows come back in reverse log direction,
	// newest first.
	LatestValues int
}

// Result is one queried log: the projected header plus the assembled data
// rows, rendered as strings the way the protocol surface emits them.
type Result struct {
	Log       *Log       `json:"log"`
	Mnemonics []string   `json:"mnemonics,omitempty"`
	Units     []string   `json:"units,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
}

// QueryLog returns the header and data of one log, or nil when the URI does
// not resolve.
func (a *Adapter) QueryLog(ctx context.Context, q Query) (*Result, error) {
	l, err := a.headers.FindByURI(ctx, q.URI)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}

	res := &Result{Log: projectHeader(l, q)}
	if !includeData(q) {
		return res, nil
	}
	if err := a.assembleData(ctx, l, q, res); err != nil {
		return nil, err
	}

	return res, nil
}

// UpdateData merges the given payloads into the log's stored chunks. Rows at
// new indexes are added; rows at existing indexes inside each payload's
// update range overwrite the stored values channel by channel. The whole
// update is transactional: either every affected chunk and the header are
// written, or nothing is.
func (a *Adapter) UpdateData(ctx context.Context, uri string, readers ...*channeldata.Reader) error {
	l, err := a.headers.FindByURI(ctx, uri)
	if err != nil {
		return err
	}
	if l == nil {
		return errors.Wrapf(channeldata.ErrNotFound, "log '%s'", uri)
	}
	for _, r := range readers {
		if err := validateReader(l, r); err != nil {
			return err
		}
	}

	tx, err := a.beginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	written := 0
	err = func() error {
		size := a.config.ChunkSize(l.IsTimeIndex)
		index := l.PrimaryIndexInfo()
		affected := map[string]channeldata.Range{}
		var channels channeldata.ChannelSet

		for _, r := range readers {
			if r.IsEmpty() {
				continue
			}
			updateRange, _ := r.UpdateRange()

			// Fetch every chunk whose extent the payload can touch:
			// the aligned extents of both ends of the update range
			// bracket the affected span.
			startExt := channeldata.ComputeRange(updateRange.Start, size, l.Increasing)
			endExt := channeldata.ComputeRange(updateRange.End, size, l.Increasing)
			fetchRange := channeldata.NewRange(startExt.Start, endExt.End, l.Increasing)

			chunks, err := a.store.Fetch(ctx, l.URI, index.Mnemonic, &fetchRange, l.Increasing)
			if err != nil {
				return errors.Wrapf(err, "fetching chunks of '%s'", l.URI)
			}

			merger := channeldata.NewMerger(channeldata.UnionChannelSet(chunks), r, updateRange)
			merged := merger.Merge(channeldata.NewChunkIterator(chunks))
			chunker := channeldata.Chunker{RangeSize: size}
			out, err := chunker.Chunk(merged, index)
			grip.Error(merged.Close())
			if err != nil {
				return err
			}
			if len(out) == 0 {
				continue
			}

			if err := a.store.BulkWrite(ctx, l.URI, out, merger.ChannelSet(), tx); err != nil {
				return errors.Wrapf(err, "writing chunks of '%s'", l.URI)
			}
			written += len(out)
			channels = channels.Union(merger.ChannelSet())
			for mnemonic, rng := range r.ChannelRanges() {
				widenAffected(affected, mnemonic, rng)
			}
		}
		if written == 0 {
			return nil
		}

		updated := l.Copy()
		if updated.UtcOffsetSeconds == 0 {
			for _, r := range readers {
				if off := r.IndexInfo().UtcOffsetSeconds; off != 0 {
					updated.UtcOffsetSeconds = off
					break
				}
			}
		}
		changed := updated.ApplyIndexRanges(affected, channels)
		if changed || updated.UtcOffsetSeconds != l.UtcOffsetSeconds {
			if err := a.headers.SaveIndexRanges(ctx, l, updated, tx); err != nil {
				return err
			}
		}

		return nil
	}()
	if err != nil {
		if tx != nil {
			grip.Error(message.WrapError(tx.Abort(ctx), message.Fields{
				"message": "rolling back log data update",
				"log":     uri,
			}))
		}
		return err
	}
	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "committing update of '%s'", uri)
		}
	}

	grip.InfoWhen(written > 0, message.Fields{
		"message": "updated log data",
		"log":     uri,
		"chunks":  written,
	})

	return nil
}

// DeleteLog removes a log's header and every chunk of its data under one
// transaction.
func (a *Adapter) DeleteLog(ctx context.Context, uri string) error {
	l, err := a.headers.FindByURI(ctx, uri)
	if err != nil {
		return err
	}
	if l == nil {
		return errors.Wrapf(channeldata.ErrNotFound, "log '%s'", uri)
	}

	tx, err := a.beginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	err = func() error {
		if err := a.store.DeleteByURI(ctx, l.URI, tx); err != nil {
			return errors.Wrapf(err, "deleting chunks of '%s'", l.URI)
		}
		return a.headers.Remove(ctx, l.URI, tx)
	}()
	if err != nil {
		if tx != nil {
			grip.Error(message.WrapError(tx.Abort(ctx), message.Fields{
				"message": "rolling back log delete",
				"log":     uri,
			}))
		}
		return err
	}
	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "committing delete of '%s'", uri)
		}
	}

	grip.Info(message.Fields{
		"message": "deleted log",
		"log":     uri,
	})

	return nil
}

func validateReader(l *Log, r *channeldata.Reader) error {
	info := r.IndexInfo()
	if info.Mnemonic != l.IndexMnemonic {
		return errors.Wrapf(channeldata.ErrInvalidRange, "payload index '%s' does not match log index '%s'", info.Mnemonic, l.IndexMnemonic)
	}
	if info.Increasing != l.Increasing {
		return errors.Wrapf(channeldata.ErrInvalidRange, "payload direction does not match log '%s'", l.URI)
	}
	if info.IsTimeIndex != l.IsTimeIndex {
		return errors.Wrapf(channeldata.ErrInvalidRange, "payload index type does not match log '%s'", l.URI)
	}

	set := r.ChannelSet()
	for col := 1; col < set.Len(); col++ {
		curve := l.Curve(set.Mnemonics[col])
		if curve == nil || curve.Unit == "" || set.Unit(col) == "" {
			continue
		}
		if curve.Unit != set.Unit(col) {
			return errors.Wrapf(channeldata.ErrInvalidRange, "unit '%s' for channel '%s' does not match declared unit '%s'", set.Unit(col), set.Mnemonics[col], curve.Unit)
		}
	}

	return nil
}

func (a *Adapter) assembleData(ctx context.Context, l *Log, q Query, res *Result) error {
	rng := queryRange(l, q)
	chunks, err := a.store.Fetch(ctx, l.URI, l.IndexMnemonic, rng, l.Increasing)
	if err != nil {
		return errors.Wrapf(err, "fetching chunks of '%s'", l.URI)
	}

	set := channeldata.UnionChannelSet(chunks)
	keep := keptColumns(set, q.Mnemonics)
	for _, col := range keep {
		if col == 0 && !a.config.StreamIndexValuePairs {
			continue
		}
		res.Mnemonics = append(res.Mnemonics, set.Mnemonics[col])
		res.Units = append(res.Units, set.Unit(col))
	}
	if len(chunks) == 0 {
		return nil
	}

	var it channeldata.Iterator
	if q.LatestValues > 0 {
		it = channeldata.NewReversedChunkIterator(chunks)
	} else {
		it = channeldata.NewChunkIterator(chunks)
		if rng != nil {
			it = channeldata.NewRangeFilterIterator(it, *rng)
		}
	}
	defer func() { grip.Error(it.Close()) }()

	counts := make([]int, len(keep))
	observed := map[string]channeldata.Range{}
	points := 0
	for it.Next() {
		rec := it.Record()

		if q.LatestValues > 0 {
			if latestSatisfied(counts, q.LatestValues) {
				break
			}
			contributes := false
			for j := 1; j < len(keep); j++ {
				col := keep[j]
				if counts[j] < q.LatestValues && !channeldata.IsNull(rec.Values[col], set.NullValue(col)) {
					counts[j]++
					contributes = true
				}
			}
			if !contributes {
				continue
			}
		}

		if len(res.Rows) >= a.config.MaxDataNodes || points+len(keep) > a.config.MaxDataPoints {
			res.Truncated = true
			break
		}

		row := make([]string, len(keep))
		for j, col := range keep {
			if col == 0 {
				row[j] = a.formatIndexValue(l, rec.Index)
				widenAffected(observed, l.IndexMnemonic, channeldata.NewRange(rec.Index, rec.Index, true))
				continue
			}
			if channeldata.IsNull(rec.Values[col], set.NullValue(col)) {
				row[j] = set.NullValue(col)
				continue
			}
			row[j] = channeldata.FormatValue(rec.Values[col])
			widenAffected(observed, set.Mnemonics[col], channeldata.NewRange(rec.Index, rec.Index, true))
		}
		res.Rows = append(res.Rows, row)
		points += len(keep)
	}
	if err := it.Err(); err != nil {
		return errors.Wrapf(err, "reading chunks of '%s'", l.URI)
	}

	echoObservedRanges(res.Log, set, observed)

	return nil
}

func (a *Adapter) formatIndexValue(l *Log, v float64) string {
	if l.IsTimeIndex {
		return l.FormatTimeIndex(v)
	}
	return channeldata.FormatValue(v)
}

func latestSatisfied(counts []int, n int) bool {
	for j := 1; j < len(counts); j++ {
		if counts[j] < n {
			return false
		}
	}
	return true
}

// projectHeader returns the slice of the header the requested return
// elements expose.
func projectHeader(l *Log, q Query) *Log {
	switch q.ReturnElements {
	case ReturnIDOnly:
		return &Log{UID: l.UID, URI: l.URI, Name: l.Name, WellURI: l.WellURI, WellboreURI: l.WellboreURI}
	case ReturnDataOnly:
		return &Log{UID: l.UID, URI: l.URI, WellURI: l.WellURI, WellboreURI: l.WellboreURI}
	case ReturnRequested:
		dup := l.Copy()
		if len(q.Mnemonics) > 0 {
			curves := []Curve{}
			for _, c := range dup.Curves {
				if c.Mnemonic == l.IndexMnemonic || utility.StringSliceContains(q.Mnemonics, c.Mnemonic) {
					curves = append(curves, c)
				}
			}
			dup.Curves = curves
		}
		return dup
	default:
		return l.Copy()
	}
}

func includeData(q Query) bool {
	if q.LatestValues > 0 {
		return true
	}
	switch q.ReturnElements {
	case ReturnIDOnly, ReturnHeaderOnly:
		return false
	default:
		return true
	}
}

// queryRange converts the optional start and end bounds into an engine
// range, leaving unbounded sides open in log direction.
func queryRange(l *Log, q Query) *channeldata.Range {
	if q.StartIndex == nil && q.EndIndex == nil {
		return nil
	}

	start, end := math.Inf(-1), math.Inf(1)
	if !l.Increasing {
		start, end = end, start
	}
	if q.StartIndex != nil {
		start = utility.FromFloat64Ptr(q.StartIndex)
	}
	if q.EndIndex != nil {
		end = utility.FromFloat64Ptr(q.EndIndex)
	}

	rng := channeldata.NewRange(start, end, l.Increasing)
	return &rng
}

func keptColumns(set channeldata.ChannelSet, mnemonics []string) []int {
	if set.IsEmpty() {
		return nil
	}
	keep := []int{0}
	for col := 1; col < set.Len(); col++ {
		if len(mnemonics) == 0 || utility.StringSliceContains(mnemonics, set.Mnemonics[col]) {
			keep = append(keep, col)
		}
	}
	return keep
}

// widenAffected grows the sorted span recorded for a mnemonic to cover rng.
func widenAffected(affected map[string]channeldata.Range, mnemonic string, rng channeldata.Range) {
	lo, hi := rng.Sorted()
	cur, ok := affected[mnemonic]
	if !ok {
		affected[mnemonic] = channeldata.Range{Start: lo, End: hi, Increasing: true}
		return
	}
	if lo < cur.Start {
		cur.Start = lo
	}
	if hi > cur.End {
		cur.End = hi
	}
	affected[mnemonic] = cur
}

// echoObservedRanges rewrites the returned header's index ranges to describe
// the data actually returned, the way header echoes accompany data slices.
func echoObservedRanges(echo *Log, set channeldata.ChannelSet, observed map[string]channeldata.Range) {
	if echo == nil || len(echo.Curves) == 0 {
		return
	}

	for i := range echo.Curves {
		c := &echo.Curves[i]
		c.MinIndex, c.MaxIndex = 0, 0
		c.MinIndexSpecified, c.MaxIndexSpecified = false, false
		c.MinDateTimeIndex, c.MaxDateTimeIndex = "", ""
		c.MinDateTimeIndexSpecified, c.MaxDateTimeIndexSpecified = false, false
	}
	echo.StartIndexSpecified, echo.EndIndexSpecified = false, false
	echo.StartDateTimeIndexSpecified, echo.EndDateTimeIndexSpecified = false, false

	echo.ApplyIndexRanges(observed, set)
}
