package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const (
	threadsCollection  = "threads"
	commentsCollection = "comments"
)

// MongoStore keeps threads and comments in two uniquely indexed collections.
type MongoStore struct {
	client   *mongo.Client
	threads  *mongo.Collection
	comments *mongo.Collection
}

var _ ports.Store = (*MongoStore)(nil)

// OpenMongo connects, pings and ensures the unique indexes exist.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetMaxPoolSize(20),
	)
	if err != nil {
		return nil, domain.StorageError("connect mongo", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, domain.StorageError("ping mongo", err)
	}

	db := cli.Database(database)
	store := &MongoStore{
		client:   cli,
		threads:  db.Collection(threadsCollection),
		comments: db.Collection(commentsCollection),
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

// EnsureIndexes creates the unique keys that deduplication relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.threads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "link", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_link"),
	})
	if err != nil {
		return domain.StorageError("create threads index", err)
	}

	_, err = s.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "comment_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_comment_id"),
		},
		{
			Keys:    bson.D{{Key: "thread_url", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("thread_created_desc"),
		},
	})
	if err != nil {
		return domain.StorageError("create comments index", err)
	}
	return nil
}

// PutThreadIfAbsent inserts and treats a duplicate key as "already known".
func (s *MongoStore) PutThreadIfAbsent(ctx context.Context, thread domain.ThreadRecord) (bool, error) {
	_, err := s.threads.InsertOne(ctx, thread)
	if IsDup(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError("insert thread", err)
	}
	return true, nil
}

// UpsertComment reports wasNew when the upsert created the document.
func (s *MongoStore) UpsertComment(ctx context.Context, comment domain.CommentRecord) (bool, error) {
	filter := bson.M{"comment_id": comment.CommentID}
	update := bson.M{"$set": comment}

	res, err := s.comments.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if IsDup(err) {
		// A concurrent upsert inserted first; ours becomes an overwrite.
		if _, err := s.comments.UpdateOne(ctx, filter, update); err != nil {
			return false, domain.StorageError("update comment", err)
		}
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError("upsert comment", err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoStore) FindThread(ctx context.Context, link string) (domain.ThreadRecord, error) {
	var t domain.ThreadRecord
	err := s.threads.FindOne(ctx, bson.M{"link": link}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ThreadRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ThreadRecord{}, domain.StorageError("find thread", err)
	}
	return t, nil
}

func (s *MongoStore) FindComment(ctx context.Context, commentID string) (domain.CommentRecord, error) {
	var c domain.CommentRecord
	err := s.comments.FindOne(ctx, bson.M{"comment_id": commentID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.CommentRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CommentRecord{}, domain.StorageError("find comment", err)
	}
	return c, nil
}

func (s *MongoStore) Stats(ctx context.Context) (ports.StoreStats, error) {
	threads, err := s.threads.EstimatedDocumentCount(ctx)
	if err != nil {
		return ports.StoreStats{}, domain.StorageError("count threads", err)
	}
	comments, err := s.comments.EstimatedDocumentCount(ctx)
	if err != nil {
		return ports.StoreStats{}, domain.StorageError("count comments", err)
	}
	return ports.StoreStats{Threads: threads, Comments: comments}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return domain.StorageError("ping mongo", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// IsDup reports a duplicate key error (code 11000).
func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}
