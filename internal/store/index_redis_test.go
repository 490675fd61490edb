package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"swfdiff/internal/common/cache"
	appErr "swfdiff/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisIndex(t *testing.T) (*RedisIndex, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(mr.Addr())
	require.NoError(t, err)
	idx := NewRedisIndex(c, "")
	t.Cleanup(func() { _ = idx.Close() })
	return idx, mr
}

func record(fp string, at time.Time) FailureRecord {
	return FailureRecord{
		Fingerprint:  fp,
		Reason:       "output-mismatch",
		Seed:         42,
		SWFSize:      100,
		NativeStatus: "Completed",
		OracleStatus: "Completed",
		FirstSeen:    at,
		LastSeen:     at,
		Duplicates:   1,
	}
}

func TestRedisIndexInsertAndDuplicate(t *testing.T) {
	idx, mr := newRedisIndex(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rec, created, err := idx.Insert(ctx, record("fp1", t0))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), rec.Duplicates)
	assert.True(t, mr.Exists("swfdiff:failure:fp1"))

	later := t0.Add(time.Hour)
	dup := record("fp1", later)
	dup.Seed = 99
	rec, created, err = idx.Insert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2), rec.Duplicates)
	assert.Equal(t, uint64(42), rec.Seed)
	assert.True(t, rec.LastSeen.Equal(later))
	assert.True(t, rec.FirstSeen.Equal(t0))
}

func TestRedisIndexConcurrentInsertCreatesOnce(t *testing.T) {
	idx, _ := newRedisIndex(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := idx.Insert(ctx, record("shared", time.Now()))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, creates)

	rec, err := idx.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Duplicates)
}

func TestRedisIndexGetMissing(t *testing.T) {
	idx, _ := newRedisIndex(t)
	_, err := idx.Get(context.Background(), "nope")
	assert.True(t, appErr.Is(err, appErr.FailureNotFound))
}

func TestRedisIndexListNewestFirst(t *testing.T) {
	idx, _ := newRedisIndex(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, fp := range []string{"a", "b", "c"} {
		_, _, err := idx.Insert(ctx, record(fp, t0.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	page, total, err := idx.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Fingerprint)
	assert.Equal(t, "b", page[1].Fingerprint)

	page, _, err = idx.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].Fingerprint)
}
