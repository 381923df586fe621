package similarity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v9"
	"github.com/twax-curation-api/internal/models"
)

const (
	recentKey  = "twax:similarity:recent"
	vectorsKey = "twax:similarity:vectors"
	seqKey     = "twax:similarity:seq"
)

// RedisStore mirrors the index window in Redis: a sorted set ranks article
// ids by insertion sequence and a hash holds their vectors.
type RedisStore struct {
	client *redis.Client
	window int
}

// NewRedisStore connects using a redis:// URL and verifies the connection
func NewRedisStore(ctx context.Context, url string, window int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, window: window}, nil
}

// Save records the entry as the newest and trims anything beyond the window
func (s *RedisStore) Save(ctx context.Context, e models.EmbeddingEntry) error {
	raw, err := json.Marshal(e.Vector)
	if err != nil {
		return err
	}

	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(seq), Member: e.ArticleID})
	pipe.HSet(ctx, vectorsKey, e.ArticleID, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save %s: %w", e.ArticleID, err)
	}

	stale, err := s.client.ZRange(ctx, recentKey, 0, -int64(s.window)-1).Result()
	if err != nil || len(stale) == 0 {
		return err
	}

	members := make([]interface{}, len(stale))
	for i, id := range stale {
		members[i] = id
	}
	pipe = s.client.TxPipeline()
	pipe.ZRem(ctx, recentKey, members...)
	pipe.HDel(ctx, vectorsKey, stale...)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentEmbeddings returns up to limit entries, oldest first
func (s *RedisStore) RecentEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingEntry, error) {
	ids, err := s.client.ZRevRange(ctx, recentKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, vectorsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	entries := make([]models.EmbeddingEntry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		raw, ok := values[i].(string)
		if !ok {
			continue
		}
		var vector []float64
		if err := json.Unmarshal([]byte(raw), &vector); err != nil {
			continue
		}
		entries = append(entries, models.EmbeddingEntry{ArticleID: ids[i], Vector: vector})
	}
	return entries, nil
}

// Reset deletes every mirrored entry
func (s *RedisStore) Reset(ctx context.Context) error {
	return s.client.Del(ctx, recentKey, vectorsKey, seqKey).Err()
}

// Close releases the Redis connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
