package channeldata

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/nilsbenson/witsml-server/model/transaction"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the persistence surface the engine and the log adapter consume.
type Store interface {
	// Fetch returns the chunks of the given log whose spans overlap rng,
	// sorted by primary index start in log direction. A nil rng selects
	// every chunk. An empty result is not an error.
	Fetch(ctx context.Context, uri, mnemonic string, rng *Range, increasing bool) ([]Chunk, error)

	// BulkWrite persists the chunks of one write batch. Chunks without a
	// uid are inserted with a fresh id; the rest are replaced in place by
	// (uri, uid). The shared channel schema is applied to every chunk.
	// Every mutation is attached to tx before it is applied.
	BulkWrite(ctx context.Context, uri string, chunks []Chunk, channels ChannelSet, tx *transaction.Transaction) error

	// DeleteByURI cascade-deletes every chunk of a log.
	DeleteByURI(ctx context.Context, uri string, tx *transaction.Transaction) error
}

// MongoStore persists chunks in the channelDataChunk collection.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore returns a chunk store backed by the given database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// caseInsensitive matches URIs regardless of case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// fetchFilter builds the direction-aware overlap filter. The mnemonic
// filter is only added when a range bound is present.
func fetchFilter(uri, mnemonic string, rng *Range, increasing bool) bson.M {
	filter := bson.M{URIKey: uri}
	if rng == nil {
		return filter
	}

	filter[indexMnemonicKey] = mnemonic
	if increasing {
		filter[indexEndKey] = bson.M{"$gte": rng.Start}
		filter[indexStartKey] = bson.M{"$lte": rng.End}
	} else {
		filter[indexEndKey] = bson.M{"$lte": rng.Start}
		filter[indexStartKey] = bson.M{"$gte": rng.End}
	}

	return filter
}

// fetchSort orders chunks by the primary index start in log direction.
func fetchSort(increasing bool) bson.D {
	order := 1
	if !increasing {
		order = -1
	}
	return bson.D{{Key: indexStartKey, Value: order}}
}

func (s *MongoStore) Fetch(ctx context.Context, uri, mnemonic string, rng *Range, increasing bool) ([]Chunk, error) {
	opts := options.Find().
		SetCollation(caseInsensitive).
		SetSort(fetchSort(increasing))

	cursor, err := s.db.Collection(Collection).Find(ctx, fetchFilter(uri, mnemonic, rng, increasing), opts)
	if err != nil {
		return nil, wrapKind(ErrRead, errors.Wrapf(err, "fetching chunks for '%s'", uri))
	}

	chunks := []Chunk{}
	if err = cursor.All(ctx, &chunks); err != nil {
		return nil, wrapKind(ErrRead, errors.Wrapf(err, "decoding chunks for '%s'", uri))
	}

	return chunks, nil
}

func (s *MongoStore) BulkWrite(ctx context.Context, uri string, chunks []Chunk, channels ChannelSet, tx *transaction.Transaction) error {
	coll := s.db.Collection(Collection)

	inserts := []any{}
	updates := []Chunk{}
	recordCount := 0
	for i := range chunks {
		chunk := chunks[i]
		chunk.URI = uri
		chunk.MnemonicList = channels.MnemonicList()
		chunk.UnitList = channels.UnitList()
		chunk.NullValueList = channels.NullValueList()
		recordCount += chunk.RecordCount

		if chunk.UID == "" {
			chunk.UID = primitive.NewObjectID().Hex()
			if err := s.attach(ctx, tx, transaction.Record{
				Action:     transaction.ActionAdd,
				Collection: Collection,
				URI:        uri,
				UID:        chunk.UID,
			}); err != nil {
				return wrapKind(ErrWrite, err)
			}
			inserts = append(inserts, chunk)
			continue
		}

		updates = append(updates, chunk)
	}

	for _, chunk := range updates {
		if err := s.attachPrior(ctx, tx, uri, chunk.UID); err != nil {
			return wrapKind(ErrUpdate, err)
		}

		res, err := coll.ReplaceOne(ctx,
			bson.M{URIKey: uri, UIDKey: chunk.UID},
			chunk,
			options.Replace().SetCollation(caseInsensitive),
		)
		if err != nil {
			return wrapKind(ErrUpdate, errors.Wrapf(err, "replacing chunk '%s'", chunk.UID))
		}
		if res.MatchedCount == 0 {
			return wrapKind(ErrUpdate, errors.Errorf("chunk '%s' of '%s' vanished mid-write", chunk.UID, uri))
		}
	}

	if len(inserts) > 0 {
		if _, err := coll.InsertMany(ctx, inserts); err != nil {
			return wrapKind(ErrWrite, errors.Wrapf(err, "inserting chunks for '%s'", uri))
		}
	}

	if tx != nil {
		if err := tx.Save(ctx); err != nil {
			return wrapKind(ErrWrite, err)
		}
	}

	grip.Info(message.Fields{
		"message":  "wrote channel data chunks",
		"uri":      uri,
		"inserted": len(inserts),
		"updated":  len(updates),
		"records":  recordCount,
	})

	return nil
}

func (s *MongoStore) DeleteByURI(ctx context.Context, uri string, tx *transaction.Transaction) error {
	coll := s.db.Collection(Collection)

	if tx != nil {
		cursor, err := coll.Find(ctx,
			bson.M{URIKey: uri},
			options.Find().SetCollation(caseInsensitive),
		)
		if err != nil {
			return wrapKind(ErrDelete, errors.Wrapf(err, "finding chunks of '%s'", uri))
		}

		var docs []bson.Raw
		if err = cursor.All(ctx, &docs); err != nil {
			return wrapKind(ErrDelete, errors.Wrapf(err, "decoding chunks of '%s'", uri))
		}

		for _, doc := range docs {
			uid, _ := doc.Lookup(UIDKey).StringValueOK()
			if err = tx.Attach(ctx, transaction.Record{
				Action:     transaction.ActionDelete,
				Collection: Collection,
				URI:        uri,
				UID:        uid,
				Document:   doc,
			}); err != nil {
				return wrapKind(ErrDelete, err)
			}
		}
	}

	res, err := coll.DeleteMany(ctx,
		bson.M{URIKey: uri},
		options.Delete().SetCollation(caseInsensitive),
	)
	if err != nil {
		return wrapKind(ErrDelete, errors.Wrapf(err, "deleting chunks of '%s'", uri))
	}

	if tx != nil {
		if err = tx.Save(ctx); err != nil {
			return wrapKind(ErrDelete, err)
		}
	}

	grip.Info(message.Fields{
		"message": "deleted channel data chunks",
		"uri":     uri,
		"deleted": res.DeletedCount,
	})

	return nil
}

func (s *MongoStore) attach(ctx context.Context, tx *transaction.Transaction, r transaction.Record) error {
	if tx == nil {
		return nil
	}
	return tx.Attach(ctx, r)
}

// attachPrior records the pre-update state of a chunk so an abort can
// restore it.
func (s *MongoStore) attachPrior(ctx context.Context, tx *transaction.Transaction, uri, uid string) error {
	if tx == nil {
		return nil
	}

	var prior bson.Raw
	err := s.db.Collection(Collection).FindOne(ctx,
		bson.M{URIKey: uri, UIDKey: uid},
		options.FindOne().SetCollation(caseInsensitive),
	).Decode(&prior)
	if err != nil {
		return errors.Wrapf(err, "loading prior state of chunk '%s'", uid)
	}

	return tx.Attach(ctx, transaction.Record{
		Action:     transaction.ActionUpdate,
		Collection: Collection,
		URI:        uri,
		UID:        uid,
		Document:   prior,
	})
}
