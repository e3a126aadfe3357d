package db

import (
	"context"

	witsml "github.com/nilsbenson/witsml-server"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	NoProjection = bson.M{}
	NoSort       = []string{}
	NoSkip       = 0
	NoLimit      = 0
)

// ErrNotFound is returned by single-document finders when no document
// matches the query.
var ErrNotFound = errors.New("document not found")

func collection(name string) *mongo.Collection {
	return witsml.GetEnvironment().DB().Collection(name)
}

// Insert inserts the specified item into the specified collection.
func Insert(ctx context.Context, coll string, item any) error {
	_, err := collection(coll).InsertOne(ctx, item)
	return errors.Wrap(err, "inserting document")
}

// InsertMany inserts the specified items into the specified collection.
func InsertMany(ctx context.Context, coll string, items ...any) error {
	if len(items) == 0 {
		return nil
	}

	_, err := collection(coll).InsertMany(ctx, items)
	return errors.Wrap(err, "inserting documents")
}

// Remove removes one item matching the query from the specified collection.
func Remove(ctx context.Context, coll string, query any) error {
	_, err := collection(coll).DeleteOne(ctx, query)
	return errors.Wrap(err, "deleting document")
}

// RemoveAll removes all items matching the query from the specified
// collection and reports how many were removed.
func RemoveAll(ctx context.Context, coll string, query any) (int, error) {
	res, err := collection(coll).DeleteMany(ctx, query)
	if err != nil {
		return 0, errors.Wrap(err, "deleting documents")
	}
	return int(res.DeletedCount), nil
}

// UpdateContext updates one matching document in the collection.
func UpdateContext(ctx context.Context, coll string, query, update any) error {
	res, err := collection(coll).UpdateOne(ctx, query, update)
	if err != nil {
		return errors.Wrap(err, "updating document")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// ReplaceContext replaces one matching document in the collection. If a
// matching document is not found, it will be upserted.
func ReplaceContext(ctx context.Context, coll string, query, replacement any) error {
	_, err := collection(coll).ReplaceOne(ctx, query, replacement, options.Replace().SetUpsert(true))
	return errors.Wrap(err, "replacing document")
}

// Count runs a count command with the specified query against the collection.
func Count(ctx context.Context, coll string, query any) (int, error) {
	res, err := collection(coll).CountDocuments(ctx, query)
	return int(res), errors.Wrap(err, "counting documents")
}

// FindOneQContext runs a Q query against the given collection, applying the
// result to "out". Returns ErrNotFound when nothing matches.
func FindOneQContext(ctx context.Context, coll string, q Q, out any) error {
	opts := options.FindOne().
		SetProjection(q.projection).
		SetSort(sortSpecToBSON(q.sort)).
		SetSkip(int64(q.skip))

	err := collection(coll).FindOne(ctx, q.filter, opts).Decode(out)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}

	return errors.Wrap(err, "finding document")
}

// FindAllQ runs a Q query against the given collection, applying the results
// to "out", which must be a pointer to a slice.
func FindAllQ(ctx context.Context, coll string, q Q, out any) error {
	opts := options.Find().
		SetProjection(q.projection).
		SetSort(sortSpecToBSON(q.sort)).
		SetSkip(int64(q.skip)).
		SetLimit(int64(q.limit))

	cursor, err := collection(coll).Find(ctx, q.filter, opts)
	if err != nil {
		return errors.Wrap(err, "finding documents")
	}

	return errors.Wrap(cursor.All(ctx, out), "decoding documents")
}
