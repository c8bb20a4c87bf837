// Package cache keeps derived per-owner values in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a cached summary may be served.
const DefaultTTL = time.Hour

// SummaryCache caches each owner's latest questionnaire summary. An empty
// summary is a valid cached value meaning the owner has no submissions.
type SummaryCache interface {
	Get(ctx context.Context, ownerID string) (summary string, found bool, err error)
	Set(ctx context.Context, ownerID, summary string) error
	Invalidate(ctx context.Context, ownerID string) error
}

type summaryEntry struct {
	Summary string `json:"summary"`
}

type summaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache creates a Redis-backed summary cache.
func NewSummaryCache(client *redis.Client, ttl time.Duration) SummaryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &summaryCache{client: client, ttl: ttl}
}

func summaryKey(ownerID string) string {
	return fmt.Sprintf("scl90:summary:%s", ownerID)
}

func (c *summaryCache) Get(ctx context.Context, ownerID string) (string, bool, error) {
	data, err := c.client.Get(ctx, summaryKey(ownerID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var e summaryEntry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return "", false, err
	}
	return e.Summary, true, nil
}

func (c *summaryCache) Set(ctx context.Context, ownerID, summary string) error {
	data, err := json.Marshal(summaryEntry{Summary: summary})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(ownerID), data, c.ttl).Err()
}

func (c *summaryCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Del(ctx, summaryKey(ownerID)).Err()
}

// Connect opens a Redis client and verifies it answers PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}
