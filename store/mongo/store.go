// Package mongo implements the aggregate store on MongoDB.
//
// The queue lives in one collection where the document id is the job
// identity, so duplicate detection rides on the id index, and PopDue
// claims entries atomically with FindOneAndDelete. Entity collections
// belong to the surrounding application; the store reads and stamps
// them through the collection and field names in each [track.Entity].
// BSON datetimes carry millisecond precision, matching the due-time
// resolution of the queue contract.
//
// Usage:
//
//	client, err := mongod.Connect(options.Client().ApplyURI(uri))
//	if err != nil { ... }
//	s := mongo.New(client.Database("app"))
//	if err := s.Migrate(ctx); err != nil { ... }
//	q := queue.New(s)
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/store"
	"github.com/autumn-order/bifrost-sub000/track"
)

// Compile-time interface check: mongo implements the full composite.
var _ store.Store = (*Store)(nil)

// DefaultQueueCollection is the collection holding queue entries.
const DefaultQueueCollection = "bifrost_queue"

// Option configures the Store.
type Option func(*Store)

// WithQueueCollection overrides the queue collection name. Useful for
// tests sharing one database.
func WithQueueCollection(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.queueCol = name
		}
	}
}

// Store implements the queue store and the tracking store on a MongoDB
// database. The caller owns the client lifecycle; Store never closes
// it.
type Store struct {
	db       *mongod.Database
	queueCol string
}

// New creates a MongoDB-backed store on the given database handle.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{db: db, queueCol: DefaultQueueCollection}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongod.Database { return s.db }

// Migrate creates the due-time index on the queue collection. The id
// uniqueness the dedup relies on needs no index of its own.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.queue().Indexes().CreateOne(ctx, mongod.IndexModel{
		Keys: bson.D{{Key: "due_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("bifrost/mongo: create queue index: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) queue() *mongod.Collection {
	return s.db.Collection(s.queueCol)
}

// queueDoc is the BSON shape of one queue entry.
type queueDoc struct {
	Member string    `bson:"_id"`
	DueAt  time.Time `bson:"due_at"`
}

// ──────────────────────────────────────────────────
// Queue store
// ──────────────────────────────────────────────────

// Add inserts member with the given due time. The document id is the
// member itself, so a duplicate insert fails on the id index and the
// existing entry keeps its original due time.
func (s *Store) Add(ctx context.Context, member string, at time.Time) (bool, error) {
	_, err := s.queue().InsertOne(ctx, queueDoc{
		Member: member,
		DueAt:  at.UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("bifrost/mongo: add: %w", err)
	}
	return true, nil
}

// PopDue atomically removes and returns the entry with the oldest due
// time at or before now. FindOneAndDelete makes the claim a single
// server-side operation, so concurrent consumers cannot pop the same
// entry. Ties on due time break by member, matching the sorted-set
// ordering of store/redis.
func (s *Store) PopDue(ctx context.Context, now time.Time) (*queue.Entry, error) {
	filter := bson.M{"due_at": bson.M{"$lte": now.UTC()}}
	opts := options.FindOneAndDelete().SetSort(bson.D{
		{Key: "due_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	var doc queueDoc
	if err := s.queue().FindOneAndDelete(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("bifrost/mongo: pop due: %w", err)
	}
	return &queue.Entry{Member: doc.Member, At: doc.DueAt.UTC()}, nil
}

// RemoveBefore deletes every entry due at or before cutoff and returns
// the number removed.
func (s *Store) RemoveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.queue().DeleteMany(ctx, bson.M{"due_at": bson.M{"$lte": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("bifrost/mongo: remove before: %w", err)
	}
	return res.DeletedCount, nil
}

// Card returns the number of entries currently queued.
func (s *Store) Card(ctx context.Context) (int64, error) {
	n, err := s.queue().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("bifrost/mongo: card: %w", err)
	}
	return n, nil
}

// Entries returns every entry ordered by due time ascending.
func (s *Store) Entries(ctx context.Context) ([]queue.Entry, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "due_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cur, err := s.queue().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("bifrost/mongo: entries: %w", err)
	}

	var docs []queueDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("bifrost/mongo: entries decode: %w", err)
	}

	entries := make([]queue.Entry, len(docs))
	for i, d := range docs {
		entries[i] = queue.Entry{Member: d.Member, At: d.DueAt.UTC()}
	}
	return entries, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.queue().DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("bifrost/mongo: clear: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Tracking store
// ──────────────────────────────────────────────────

// Count returns the total number of documents in the entity's
// collection.
func (s *Store) Count(ctx context.Context, entity track.Entity) (int64, error) {
	n, err := s.db.Collection(entity.Table).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("bifrost/mongo: count %s: %w", entity.Table, err)
	}
	return n, nil
}

// StaleIDs selects ids of documents refreshed strictly before
// q.UpdatedBefore whose schedule stamp is null, absent, or at or
// before q.ScheduledBefore, ordered stalest first and capped at
// q.Limit.
func (s *Store) StaleIDs(ctx context.Context, entity track.Entity, q track.StaleQuery) ([]int64, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	// {field: nil} matches both null values and missing fields.
	filter := bson.M{
		entity.UpdatedAtColumn: bson.M{"$lt": q.UpdatedBefore.UTC()},
		"$or": bson.A{
			bson.M{entity.ScheduledAtColumn: nil},
			bson.M{entity.ScheduledAtColumn: bson.M{"$lte": q.ScheduledBefore.UTC()}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: entity.UpdatedAtColumn, Value: 1}}).
		SetLimit(int64(q.Limit)).
		SetProjection(bson.M{entity.IDColumn: 1, "_id": 0})

	cur, err := s.db.Collection(entity.Table).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("bifrost/mongo: stale ids %s: %w", entity.Table, err)
	}

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("bifrost/mongo: stale ids decode: %w", err)
	}

	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		id, ok := asInt64(doc[entity.IDColumn])
		if !ok {
			return nil, fmt.Errorf("bifrost/mongo: %s.%s is not an integer id (got %T)",
				entity.Table, entity.IDColumn, doc[entity.IDColumn])
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MarkScheduled stamps the schedule field for exactly the given
// documents in one unordered bulk write, one update per id.
func (s *Store) MarkScheduled(ctx context.Context, entity track.Entity, marks []track.Mark) error {
	if len(marks) == 0 {
		return nil
	}

	models := make([]mongod.WriteModel, len(marks))
	for i, mark := range marks {
		models[i] = mongod.NewUpdateOneModel().
			SetFilter(bson.M{entity.IDColumn: mark.ID}).
			SetUpdate(bson.M{"$set": bson.M{entity.ScheduledAtColumn: mark.At.UTC()}})
	}

	opts := options.BulkWrite().SetOrdered(false)
	if _, err := s.db.Collection(entity.Table).BulkWrite(ctx, models, opts); err != nil {
		return fmt.Errorf("bifrost/mongo: mark scheduled %s: %w", entity.Table, err)
	}
	return nil
}

// asInt64 coerces the BSON integer types an id field may decode to.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}
