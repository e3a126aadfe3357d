package log

import (
	"context"

	"github.com/mongodb/anser/bsonutil"
	"github.com/nilsbenson/witsml-server/db"
	"github.com/nilsbenson/witsml-server/model/transaction"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	uidKey         = bsonutil.MustHaveTag(Log{}, "UID")
	uriKey         = bsonutil.MustHaveTag(Log{}, "URI")
	wellURIKey     = bsonutil.MustHaveTag(Log{}, "WellURI")
	wellboreURIKey = bsonutil.MustHaveTag(Log{}, "WellboreURI")
	nameKey        = bsonutil.MustHaveTag(Log{}, "Name")
	curvesKey      = bsonutil.MustHaveTag(Log{}, "Curves")

	utcOffsetKey = bsonutil.MustHaveTag(Log{}, "UtcOffsetSeconds")

	startIndexKey        = bsonutil.MustHaveTag(Log{}, "StartIndex")
	endIndexKey          = bsonutil.MustHaveTag(Log{}, "EndIndex")
	startIndexSpecKey    = bsonutil.MustHaveTag(Log{}, "StartIndexSpecified")
	endIndexSpecKey      = bsonutil.MustHaveTag(Log{}, "EndIndexSpecified")
	startDateTimeKey     = bsonutil.MustHaveTag(Log{}, "StartDateTimeIndex")
	endDateTimeKey       = bsonutil.MustHaveTag(Log{}, "EndDateTimeIndex")
	startDateTimeSpecKey = bsonutil.MustHaveTag(Log{}, "StartDateTimeIndexSpecified")
	endDateTimeSpecKey   = bsonutil.MustHaveTag(Log{}, "EndDateTimeIndexSpecified")
)

// byURI matches a log URI regardless of case.
func byURI(uri string) bson.M {
	return db.CaseInsensitiveEq(uriKey, uri)
}

// FindOneURI returns the log header with the given URI, or nil when absent.
func FindOneURI(ctx context.Context, uri string) (*Log, error) {
	l := &Log{}
	err := db.FindOneQContext(ctx, Collection, db.Query(byURI(uri)), l)
	if err == db.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding log '%s'", uri)
	}

	return l, nil
}

// Find returns all log headers matching the given query.
func Find(ctx context.Context, q db.Q) ([]Log, error) {
	logs := []Log{}
	if err := db.FindAllQ(ctx, Collection, q, &logs); err != nil {
		return nil, errors.Wrap(err, "finding logs")
	}
	return logs, nil
}

// FindByWellbore returns the log headers of one wellbore.
func FindByWellbore(ctx context.Context, wellboreURI string) ([]Log, error) {
	return Find(ctx, db.Query(bson.M{wellboreURIKey: wellboreURI}))
}

// Insert persists a new log header.
func (l *Log) Insert(ctx context.Context) error {
	return errors.Wrapf(db.Insert(ctx, Collection, l), "inserting log '%s'", l.URI)
}

// RemoveByURI deletes a log header.
func RemoveByURI(ctx context.Context, uri string) error {
	return errors.Wrapf(db.Remove(ctx, Collection, byURI(uri)), "removing log '%s'", uri)
}

// mongoHeaderStore is the document-store implementation of the adapter's
// header surface.
type mongoHeaderStore struct{}

func (mongoHeaderStore) FindByURI(ctx context.Context, uri string) (*Log, error) {
	return FindOneURI(ctx, uri)
}

// SaveIndexRanges persists the engine-owned header fields of updated,
// attaching the prior state for rollback.
func (mongoHeaderStore) SaveIndexRanges(ctx context.Context, prior, updated *Log, tx *transaction.Transaction) error {
	if tx != nil {
		doc, err := bson.Marshal(prior)
		if err != nil {
			return errors.Wrapf(err, "marshalling prior header of '%s'", prior.URI)
		}
		if err = tx.Attach(ctx, transaction.Record{
			Action:     transaction.ActionUpdate,
			Collection: Collection,
			URI:        prior.URI,
			UID:        prior.UID,
			Document:   doc,
		}); err != nil {
			return errors.Wrap(err, "attaching header update")
		}
	}

	update := bson.M{"$set": bson.M{
		curvesKey:    updated.Curves,
		utcOffsetKey: updated.UtcOffsetSeconds,

		startIndexKey:     updated.StartIndex,
		endIndexKey:       updated.EndIndex,
		startIndexSpecKey: updated.StartIndexSpecified,
		endIndexSpecKey:   updated.EndIndexSpecified,

		startDateTimeKey:     updated.StartDateTimeIndex,
		endDateTimeKey:       updated.EndDateTimeIndex,
		startDateTimeSpecKey: updated.StartDateTimeIndexSpecified,
		endDateTimeSpecKey:   updated.EndDateTimeIndexSpecified,
	}}

	err := db.UpdateContext(ctx, Collection, byURI(updated.URI), update)
	return errors.Wrapf(err, "updating header ranges of '%s'", updated.URI)
}

// Remove deletes a log header, attaching the prior document for rollback.
func (mongoHeaderStore) Remove(ctx context.Context, uri string, tx *transaction.Transaction) error {
	if tx != nil {
		prior, err := FindOneURI(ctx, uri)
		if err != nil {
			return err
		}
		if prior != nil {
			doc, err := bson.Marshal(prior)
			if err != nil {
				return errors.Wrapf(err, "marshalling header of '%s'", uri)
			}
			if err = tx.Attach(ctx, transaction.Record{
				Action:     transaction.ActionDelete,
				Collection: Collection,
				URI:        uri,
				UID:        prior.UID,
				Document:   doc,
			}); err != nil {
				return errors.Wrap(err, "attaching header delete")
			}
		}
	}

	return RemoveByURI(ctx, uri)
}
