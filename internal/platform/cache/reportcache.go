package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key was absent.
var ErrMiss = errors.New("platform/cache: miss")

const reportPrefix = "meridian:report:"

// ReportCache stores rendered report payloads keyed by report kind and
// as-of date. Reports tolerate eventual consistency relative to in-flight
// writes; posting invalidates the whole namespace.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache constructs a ReportCache.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

func reportKey(kind string, asOf time.Time) string {
	return fmt.Sprintf("%s%s:%s", reportPrefix, kind, asOf.Format("2006-01-02"))
}

// Get unmarshals the cached payload for kind/asOf into target.
func (c *ReportCache) Get(ctx context.Context, kind string, asOf time.Time, target any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, reportKey(kind, asOf)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, target)
}

// Set stores a payload for kind/asOf.
func (c *ReportCache) Set(ctx context.Context, kind string, asOf time.Time, payload any) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, reportKey(kind, asOf), data, c.ttl).Err()
}

// Invalidate drops every cached report. Called after each accepted posting
// so stale totals never outlive a commit by more than one read.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, reportPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
