package wellbore

import (
	"context"

	"github.com/mongodb/anser/bsonutil"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/nilsbenson/witsml-server/db"
	"github.com/nilsbenson/witsml-server/model/log"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection holds wellbore documents.
const Collection = "wellbores"

// Wellbore groups the logs drilled along one bore of a well.
type Wellbore struct {
	UID     string `bson:"uid" json:"uid"`
	URI     string `bson:"uri" json:"uri"`
	WellURI string `bson:"wellUri" json:"wellUri"`
	Name    string `bson:"name" json:"name"`
	Status  string `bson:"status,omitempty" json:"status,omitempty"`
}

var (
	UIDKey     = bsonutil.MustHaveTag(Wellbore{}, "UID")
	URIKey     = bsonutil.MustHaveTag(Wellbore{}, "URI")
	WellURIKey = bsonutil.MustHaveTag(Wellbore{}, "WellURI")
	NameKey    = bsonutil.MustHaveTag(Wellbore{}, "Name")
)

// Insert persists a new wellbore, assigning a uid when the caller left it
// empty.
func (w *Wellbore) Insert(ctx context.Context) error {
	if w.UID == "" {
		w.UID = primitive.NewObjectID().Hex()
	}
	return errors.Wrapf(db.Insert(ctx, Collection, w), "inserting wellbore '%s'", w.URI)
}

// FindOneURI returns the wellbore with the given URI, or nil when absent.
func FindOneURI(ctx context.Context, uri string) (*Wellbore, error) {
	w := &Wellbore{}
	err := db.FindOneQContext(ctx, Collection, db.Query(db.CaseInsensitiveEq(URIKey, uri)), w)
	if err == db.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding wellbore '%s'", uri)
	}

	return w, nil
}

// Find returns all wellbores matching the given query.
func Find(ctx context.Context, q db.Q) ([]Wellbore, error) {
	wellbores := []Wellbore{}
	if err := db.FindAllQ(ctx, Collection, q, &wellbores); err != nil {
		return nil, errors.Wrap(err, "finding wellbores")
	}
	return wellbores, nil
}

// FindByWell returns the wellbores of one well.
func FindByWell(ctx context.Context, wellURI string) ([]Wellbore, error) {
	return Find(ctx, db.Query(bson.M{WellURIKey: wellURI}))
}

// Replace upserts the wellbore document by URI.
func (w *Wellbore) Replace(ctx context.Context) error {
	err := db.ReplaceContext(ctx, Collection, db.CaseInsensitiveEq(URIKey, w.URI), w)
	return errors.Wrapf(err, "replacing wellbore '%s'", w.URI)
}

// RemoveCascade deletes the wellbore and every log under it, chunks
// included. Each log delete runs in its own transaction; a failure stops the
// cascade with the wellbore document still in place.
func RemoveCascade(ctx context.Context, uri string, logs *log.Adapter) error {
	headers, err := log.FindByWellbore(ctx, uri)
	if err != nil {
		return err
	}
	for _, h := range headers {
		if err := logs.DeleteLog(ctx, h.URI); err != nil {
			return errors.Wrapf(err, "cascading delete of wellbore '%s'", uri)
		}
	}

	grip.InfoWhen(len(headers) > 0, message.Fields{
		"message":  "deleted wellbore logs",
		"wellbore": uri,
		"logs":     len(headers),
	})

	return errors.Wrapf(db.Remove(ctx, Collection, db.CaseInsensitiveEq(URIKey, uri)), "removing wellbore '%s'", uri)
}
