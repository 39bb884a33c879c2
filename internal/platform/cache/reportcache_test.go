package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReport struct {
	AsOf  string `json:"as_of"`
	Total string `json:"total"`
}

func newTestCache(t *testing.T) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client, time.Minute), mr
}

func TestReportCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	asOf := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

	var missed fakeReport
	require.ErrorIs(t, c.Get(ctx, "tb", asOf, &missed), ErrMiss)

	stored := fakeReport{AsOf: "2025-06-30", Total: "1000.00"}
	require.NoError(t, c.Set(ctx, "tb", asOf, stored))

	var got fakeReport
	require.NoError(t, c.Get(ctx, "tb", asOf, &got))
	assert.Equal(t, stored, got)

	// A different as-of date is a distinct key.
	require.ErrorIs(t, c.Get(ctx, "tb", asOf.AddDate(0, 0, 1), &got), ErrMiss)
	// So is a different report kind.
	require.ErrorIs(t, c.Get(ctx, "bs", asOf, &got), ErrMiss)
}

func TestReportCacheInvalidateDropsAllKinds(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	asOf := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Set(ctx, "tb", asOf, fakeReport{Total: "1.00"}))
	require.NoError(t, c.Set(ctx, "bs", asOf, fakeReport{Total: "2.00"}))
	require.NoError(t, c.Set(ctx, "tb", asOf.AddDate(0, 0, -1), fakeReport{Total: "3.00"}))

	require.NoError(t, c.Invalidate(ctx))

	var got fakeReport
	assert.ErrorIs(t, c.Get(ctx, "tb", asOf, &got), ErrMiss)
	assert.ErrorIs(t, c.Get(ctx, "bs", asOf, &got), ErrMiss)
	assert.ErrorIs(t, c.Get(ctx, "tb", asOf.AddDate(0, 0, -1), &got), ErrMiss)
}

func TestReportCacheNilSafe(t *testing.T) {
	var c *ReportCache
	ctx := context.Background()
	asOf := time.Now()

	var got fakeReport
	assert.ErrorIs(t, c.Get(ctx, "tb", asOf, &got), ErrMiss)
	assert.NoError(t, c.Set(ctx, "tb", asOf, got))
	assert.NoError(t, c.Invalidate(ctx))
}

func TestReportCacheTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	asOf := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Set(ctx, "tb", asOf, fakeReport{Total: "1.00"}))
	mr.FastForward(2 * time.Minute)

	var got fakeReport
	assert.ErrorIs(t, c.Get(ctx, "tb", asOf, &got), ErrMiss)
}
