// Package mongostore keeps every document collection in a single MongoDB
// collection, keyed by its full path, and turns change streams into live
// query snapshots. Transactions require a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/logging"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "documents"

type record struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	ID         string    `bson:"id"`
	Fields     bson.M    `bson:"fields"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

type Store struct {
	handle
	client *mongo.Client
	logger logging.Logger
	fanout *docstore.Fanout

	watchOnce sync.Once
	mu        sync.Mutex
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

func New(client *mongo.Client, database string, logger logging.Logger) *Store {
	s := &Store{
		handle:    handle{coll: client.Database(database).Collection(collectionName)},
		client:    client,
		logger:    logger.With("component", "docstore.mongo"),
		watchDone: make(chan struct{}),
	}
	s.fanout = docstore.NewFanout(s.Query)
	return s
}

// EnsureIndexes creates the indexes queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "id", Value: 1}}},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	return nil
}

// Transact runs fn inside a session transaction. The driver retries fn on
// transient transaction errors, so fn must only write through tx.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx docstore.Handle) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx, &s.handle)
	})
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %s", docstore.ErrAborted, cmdErr.Message)
	}
	return err
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query, fn func(docstore.Snapshot)) (docstore.CancelFunc, error) {
	cancel, err := s.fanout.Add(ctx, q, fn)
	if err != nil {
		return nil, err
	}
	s.startWatch()
	return cancel, nil
}

// Close stops live queries. The client belongs to the caller.
func (s *Store) Close() error {
	s.fanout.Close()
	s.mu.Lock()
	stop := s.stopWatch
	s.mu.Unlock()
	if stop != nil {
		stop()
		<-s.watchDone
	}
	return nil
}

func (s *Store) startWatch() {
	s.watchOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.stopWatch = cancel
		s.mu.Unlock()
		go s.watch(ctx)
	})
}

func (s *Store) watch(ctx context.Context) {
	defer close(s.watchDone)
	backoff := 100 * time.Millisecond
	for {
		err := s.watchStream(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn(ctx, "change stream interrupted", "error", err, "retry_in", backoff)
		s.fanout.Fail(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
}

func (s *Store) watchStream(ctx context.Context) error {
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return fmt.Errorf("opening change stream: %w", err)
	}
	defer stream.Close(context.Background())
	s.logger.Info(ctx, "change stream opened")
	s.fanout.RefreshAll(ctx)

	for stream.Next(ctx) {
		var ev struct {
			DocumentKey struct {
				Path string `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&ev); err != nil {
			s.logger.Warn(ctx, "decoding change event", "error", err)
			s.fanout.RefreshAll(ctx)
			continue
		}
		if coll, ok := collectionOf(ev.DocumentKey.Path); ok {
			s.fanout.Refresh(ctx, coll)
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return errors.New("change stream closed")
}

func pathOf(collection, id string) string {
	return collection + "/" + id
}

func collectionOf(path string) (string, bool) {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "", false
	}
	return path[:i], true
}

// handle implements docstore.Handle. Inside Transact the session travels in
// the context, so the same handle serves both.
type handle struct {
	coll *mongo.Collection
}

func (h *handle) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return docstore.Document{}, err
	}
	var rec record
	err := h.coll.FindOne(ctx, bson.M{"_id": pathOf(collection, id)}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("getting %s/%s: %w", collection, id, err)
	}
	return rec.document(), nil
}

func (h *handle) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(buildSort(q))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := h.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var recs []record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", q.Collection, err)
	}
	docs := make([]docstore.Document, len(recs))
	for i, r := range recs {
		docs[i] = r.document()
	}
	return docs, nil
}

func (h *handle) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	if err := h.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (h *handle) Set(ctx context.Context, collection, id string, fields docstore.Fields, opts ...docstore.SetOption) error {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	set := bson.M{"collection": collection, "id": id, "updatedAt": now}
	normalized := docstore.Normalize(fields)
	if docstore.IsMerge(opts) {
		for k, v := range normalized {
			set["fields."+k] = v
		}
	} else {
		set["fields"] = bson.M(normalized)
	}
	update := bson.M{"$set": set, "$setOnInsert": bson.M{"createdAt": now}}

	_, err := h.coll.UpdateOne(ctx, bson.M{"_id": pathOf(collection, id)}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}
	return nil
}

func (h *handle) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range docstore.Normalize(fields) {
		set["fields."+k] = v
	}
	res, err := h.coll.UpdateOne(ctx, bson.M{"_id": pathOf(collection, id)}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (h *handle) Delete(ctx context.Context, collection, id string) error {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return err
	}
	if _, err := h.coll.DeleteOne(ctx, bson.M{"_id": pathOf(collection, id)}); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r record) document() docstore.Document {
	fields := make(docstore.Fields, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = fromBSON(v)
	}
	return docstore.Document{
		Collection: r.Collection,
		ID:         r.ID,
		Fields:     fields,
		CreateTime: r.CreatedAt.UTC(),
		UpdateTime: r.UpdatedAt.UTC(),
	}
}
