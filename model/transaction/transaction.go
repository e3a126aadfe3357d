package transaction

import (
	"context"
	"time"

	"github.com/mongodb/anser/bsonutil"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds rollback records for in-flight write batches.
const Collection = "dbTransaction"

// Action describes the kind of store mutation a rollback record covers.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Status describes the lifecycle of a transaction document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSaved     Status = "saved"
	StatusCommitted Status = "committed"
)

// Record captures one attached store mutation. For updates and deletes the
// document field holds the pre-mutation document so an abort can restore it;
// for adds it holds only identity, since rollback removes the document.
type Record struct {
	Action     Action   `bson:"action"`
	Collection string   `bson:"collection"`
	URI        string   `bson:"uri"`
	UID        string   `bson:"uid,omitempty"`
	Document   bson.Raw `bson:"document,omitempty"`
}

// Transaction serializes the mutations of one write operation so a crashed
// or failed batch can be rolled back. The contract with callers: every
// mutation is attached before it is applied, Save is called after each
// batch, and Commit or Abort finishes the transaction.
type Transaction struct {
	ID        string    `bson:"_id"`
	Status    Status    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
	Records   []Record  `bson:"records"`

	db *mongo.Database
}

var (
	statusKey  = bsonutil.MustHaveTag(Transaction{}, "Status")
	recordsKey = bsonutil.MustHaveTag(Transaction{}, "Records")
)

// Begin creates and persists a new pending transaction.
func Begin(ctx context.Context, db *mongo.Database) (*Transaction, error) {
	t := &Transaction{
		ID:        primitive.NewObjectID().Hex(),
		Status:    StatusPending,
		CreatedAt: time.Now().Round(time.Millisecond),
		db:        db,
	}

	if _, err := db.Collection(Collection).InsertOne(ctx, t); err != nil {
		return nil, errors.Wrap(err, "persisting transaction")
	}

	return t, nil
}

// Attach persists a rollback record before the corresponding mutation is
// applied.
func (t *Transaction) Attach(ctx context.Context, r Record) error {
	res, err := t.db.Collection(Collection).UpdateOne(ctx,
		bson.M{"_id": t.ID},
		bson.M{"$push": bson.M{recordsKey: r}},
	)
	if err != nil {
		return errors.Wrap(err, "attaching transaction record")
	}
	if res.MatchedCount == 0 {
		return errors.Errorf("transaction '%s' not found", t.ID)
	}

	t.Records = append(t.Records, r)
	return nil
}

// Save marks the current batch of attached records as applied.
func (t *Transaction) Save(ctx context.Context) error {
	_, err := t.db.Collection(Collection).UpdateOne(ctx,
		bson.M{"_id": t.ID},
		bson.M{"$set": bson.M{statusKey: StatusSaved}},
	)
	if err != nil {
		return errors.Wrap(err, "saving transaction")
	}

	t.Status = StatusSaved
	return nil
}

// Commit finishes a successful transaction and discards its rollback
// records.
func (t *Transaction) Commit(ctx context.Context) error {
	_, err := t.db.Collection(Collection).DeleteOne(ctx, bson.M{"_id": t.ID})
	if err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	t.Status = StatusCommitted
	return nil
}

// Abort rolls back every attached mutation in reverse order, then discards
// the transaction. Rollback failures are collected so one bad record does
// not strand the rest.
func (t *Transaction) Abort(ctx context.Context) error {
	catcher := grip.NewBasicCatcher()

	for i := len(t.Records) - 1; i >= 0; i-- {
		r := t.Records[i]
		coll := t.db.Collection(r.Collection)

		switch r.Action {
		case ActionAdd:
			_, err := coll.DeleteOne(ctx, bson.M{"uri": r.URI, "uid": r.UID})
			catcher.Wrapf(err, "removing added document '%s'", r.UID)
		case ActionUpdate:
			if len(r.Document) == 0 {
				catcher.Errorf("update record for '%s' has no prior document", r.UID)
				continue
			}
			_, err := coll.ReplaceOne(ctx,
				bson.M{"uri": r.URI, "uid": r.UID},
				r.Document,
				options.Replace().SetUpsert(true),
			)
			catcher.Wrapf(err, "restoring updated document '%s'", r.UID)
		case ActionDelete:
			if len(r.Document) == 0 {
				continue
			}
			_, err := coll.InsertOne(ctx, r.Document)
			catcher.Wrapf(err, "restoring deleted document '%s'", r.UID)
		default:
			catcher.Errorf("unknown transaction action '%s'", r.Action)
		}
	}

	grip.ErrorWhen(catcher.HasErrors(), message.Fields{
		"message":     "transaction rollback incomplete",
		"transaction": t.ID,
		"records":     len(t.Records),
	})

	_, err := t.db.Collection(Collection).DeleteOne(ctx, bson.M{"_id": t.ID})
	catcher.Wrap(err, "discarding transaction")

	return catcher.Resolve()
}
