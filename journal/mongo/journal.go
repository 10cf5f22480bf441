// Package mongo provides a MongoDB implementation of journal.Journal.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rbaliyan/mailsort/journal"
)

// Compile-time check
var _ journal.Journal = (*Journal)(nil)

// Journal implements journal.Journal using MongoDB.
type Journal struct {
	client     *mongo.Client
	collection *mongo.Collection
	opts       *options
	connected  int32
	logger     *slog.Logger
}

// New creates a new MongoDB journal with the provided client.
// Call Connect() to initialize the collection and indexes.
func New(client *mongo.Client, opts ...Option) *Journal {
	o := newOptions(opts...)
	return &Journal{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

type entryDoc struct {
	ID          string    `bson:"_id"`
	RunID       string    `bson:"run_id"`
	ItemID      string    `bson:"item_id"`
	Subject     string    `bson:"subject"`
	Folder      string    `bson:"folder"`
	Disposition string    `bson:"disposition"`
	Reason      string    `bson:"reason"`
	RecordedAt  time.Time `bson:"recorded_at"`
}

// Connect initializes the database, collection, and indexes.
func (j *Journal) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&j.connected) == 1 {
		return journal.ErrAlreadyConnected
	}
	if j.client == nil {
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	if err := j.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	j.collection = j.client.Database(j.opts.database).Collection(j.opts.collection)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "run_id", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "disposition", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "recorded_at", Value: -1}}},
	}
	if _, err := j.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	atomic.StoreInt32(&j.connected, 1)
	j.logger.Info("connected to MongoDB", "database", j.opts.database, "collection", j.opts.collection)
	return nil
}

// Close marks the journal as disconnected.
// The caller is responsible for closing the MongoDB client.
func (j *Journal) Close(_ context.Context) error {
	atomic.StoreInt32(&j.connected, 0)
	return nil
}

func (j *Journal) checkConnected() error {
	if atomic.LoadInt32(&j.connected) == 0 {
		return journal.ErrNotConnected
	}
	return nil
}

// Append records one outcome.
func (j *Journal) Append(ctx context.Context, e journal.Entry) error {
	if err := j.checkConnected(); err != nil {
		return err
	}
	if err := journal.Validate(e); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	if _, err := j.collection.InsertOne(ctx, entryDoc(e)); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if err := j.checkConnected(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	findOpts := mongoopts.Find().
		SetSort(bson.D{bson.E{Key: "recorded_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := j.collection.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []entryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}

	entries := make([]journal.Entry, len(docs))
	for i, d := range docs {
		entries[i] = journal.Entry(d)
	}
	return entries, nil
}

// Summary returns aggregate counts for a run, or for all entries when
// runID is empty.
func (j *Journal) Summary(ctx context.Context, runID string) (*journal.Summary, error) {
	if err := j.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, j.opts.timeout)
	defer cancel()

	var s journal.Summary
	for _, disposition := range []string{journal.DispositionSorted, journal.DispositionSkipped} {
		filter := bson.D{bson.E{Key: "disposition", Value: disposition}}
		if runID != "" {
			filter = append(filter, bson.E{Key: "run_id", Value: runID})
		}
		n, err := j.collection.CountDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", disposition, err)
		}
		switch disposition {
		case journal.DispositionSorted:
			s.Sorted = n
		case journal.DispositionSkipped:
			s.Skipped = n
		}
	}
	return &s, nil
}
