package well

import (
	"context"

	"github.com/mongodb/anser/bsonutil"
	"github.com/nilsbenson/witsml-server/db"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection holds well documents.
const Collection = "wells"

// Well is the top-level container object. It carries only identity and the
// descriptive attributes the store serves back; engineering detail stays in
// the source system.
type Well struct {
	UID      string `bson:"uid" json:"uid"`
	URI      string `bson:"uri" json:"uri"`
	Name     string `bson:"name" json:"name"`
	Field    string `bson:"field,omitempty" json:"field,omitempty"`
	Country  string `bson:"country,omitempty" json:"country,omitempty"`
	Operator string `bson:"operator,omitempty" json:"operator,omitempty"`
	TimeZone string `bson:"timeZone,omitempty" json:"timeZone,omitempty"`
}

var (
	UIDKey  = bsonutil.MustHaveTag(Well{}, "UID")
	URIKey  = bsonutil.MustHaveTag(Well{}, "URI")
	NameKey = bsonutil.MustHaveTag(Well{}, "Name")
)

// Insert persists a new well, assigning a uid when the caller left it empty.
func (w *Well) Insert(ctx context.Context) error {
	if w.UID == "" {
		w.UID = primitive.NewObjectID().Hex()
	}
	return errors.Wrapf(db.Insert(ctx, Collection, w), "inserting well '%s'", w.URI)
}

// FindOneURI returns the well with the given URI, or nil when absent.
func FindOneURI(ctx context.Context, uri string) (*Well, error) {
	w := &Well{}
	err := db.FindOneQContext(ctx, Collection, db.Query(db.CaseInsensitiveEq(URIKey, uri)), w)
	if err == db.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding well '%s'", uri)
	}

	return w, nil
}

// Find returns all wells matching the given query.
func Find(ctx context.Context, q db.Q) ([]Well, error) {
	wells := []Well{}
	if err := db.FindAllQ(ctx, Collection, q, &wells); err != nil {
		return nil, errors.Wrap(err, "finding wells")
	}
	return wells, nil
}

// Replace upserts the well document by URI.
func (w *Well) Replace(ctx context.Context) error {
	err := db.ReplaceContext(ctx, Collection, db.CaseInsensitiveEq(URIKey, w.URI), w)
	return errors.Wrapf(err, "replacing well '%s'", w.URI)
}

// RemoveByURI deletes a well document.
func RemoveByURI(ctx context.Context, uri string) error {
	return errors.Wrapf(db.Remove(ctx, Collection, db.CaseInsensitiveEq(URIKey, uri)), "removing well '%s'", uri)
}
