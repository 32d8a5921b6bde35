package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys live for a week: long enough to cover any resume chain,
// short enough to not accumulate across projects.
const crawlMarkTTL = 7 * 24 * time.Hour

// RedisStore tracks which URLs a job has already fetched, surviving
// worker restarts so a recovered job can cheaply skip finished work.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects a client to the given address.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func crawlKey(jobID int64) string {
	return fmt.Sprintf("crawl:%d:visited", jobID)
}

// MarkCrawled records that a job fetched a URL.
func (s *RedisStore) MarkCrawled(ctx context.Context, jobID int64, urlHash string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, crawlKey(jobID), urlHash)
	pipe.Expire(ctx, crawlKey(jobID), crawlMarkTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// WasCrawled reports whether a job already fetched a URL.
func (s *RedisStore) WasCrawled(ctx context.Context, jobID int64, urlHash string) (bool, error) {
	return s.client.SIsMember(ctx, crawlKey(jobID), urlHash).Result()
}

// CrawledCount returns how many URLs the job has marked.
func (s *RedisStore) CrawledCount(ctx context.Context, jobID int64) (int64, error) {
	return s.client.SCard(ctx, crawlKey(jobID)).Result()
}

// ClearJob drops a finished job's marks.
func (s *RedisStore) ClearJob(ctx context.Context, jobID int64) error {
	return s.client.Del(ctx, crawlKey(jobID)).Err()
}
