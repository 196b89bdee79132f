package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

// KEYS[1] record key, KEYS[2] index set; ARGV[1] payload, ARGV[2] member.
var putIfAbsentScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
  redis.call('SADD', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

var upsertScript = redis.NewScript(`
local existed = redis.call('EXISTS', KEYS[1])
redis.call('SET', KEYS[1], ARGV[1])
if existed == 0 then
  redis.call('SADD', KEYS[2], ARGV[2])
end
return existed
`)

// RedisStore keeps records as JSON strings; uniqueness comes from atomic scripts.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ ports.Store = (*RedisStore)(nil)

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store := NewRedisStore(client, cfg.Prefix)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "forumwatcher"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) threadKey(link string) string {
	return fmt.Sprintf("%s:thread:%s", s.prefix, link)
}

func (s *RedisStore) commentKey(id string) string {
	return fmt.Sprintf("%s:comment:%s", s.prefix, id)
}

func (s *RedisStore) indexKey(kind string) string {
	return fmt.Sprintf("%s:%s", s.prefix, kind)
}

func (s *RedisStore) PutThreadIfAbsent(ctx context.Context, thread domain.ThreadRecord) (bool, error) {
	payload, err := json.Marshal(thread)
	if err != nil {
		return false, fmt.Errorf("marshal thread: %w", err)
	}

	inserted, err := putIfAbsentScript.Run(ctx, s.client,
		[]string{s.threadKey(thread.Link), s.indexKey("threads")},
		payload, thread.Link,
	).Int()
	if err != nil {
		return false, domain.StorageError("put thread", err)
	}
	return inserted == 1, nil
}

func (s *RedisStore) UpsertComment(ctx context.Context, comment domain.CommentRecord) (bool, error) {
	payload, err := json.Marshal(comment)
	if err != nil {
		return false, fmt.Errorf("marshal comment: %w", err)
	}

	existed, err := upsertScript.Run(ctx, s.client,
		[]string{s.commentKey(comment.CommentID), s.indexKey("comments")},
		payload, comment.CommentID,
	).Int()
	if err != nil {
		return false, domain.StorageError("upsert comment", err)
	}
	return existed == 0, nil
}

func (s *RedisStore) FindThread(ctx context.Context, link string) (domain.ThreadRecord, error) {
	var t domain.ThreadRecord
	err := s.get(ctx, s.threadKey(link), &t)
	return t, err
}

func (s *RedisStore) FindComment(ctx context.Context, commentID string) (domain.CommentRecord, error) {
	var c domain.CommentRecord
	err := s.get(ctx, s.commentKey(commentID), &c)
	return c, err
}

func (s *RedisStore) get(ctx context.Context, key string, v any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return domain.StorageError("get "+key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Stats(ctx context.Context) (ports.StoreStats, error) {
	threads, err := s.client.SCard(ctx, s.indexKey("threads")).Result()
	if err != nil {
		return ports.StoreStats{}, domain.StorageError("count threads", err)
	}
	comments, err := s.client.SCard(ctx, s.indexKey("comments")).Result()
	if err != nil {
		return ports.StoreStats{}, domain.StorageError("count comments", err)
	}
	return ports.StoreStats{Threads: threads, Comments: comments}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.StorageError("ping redis", err)
	}
	return nil
}

func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}
