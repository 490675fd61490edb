package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"swfdiff/internal/common/cache"
	appErr "swfdiff/pkg/errors"
)

const (
	defaultRedisPrefix = "swfdiff:"

	fieldDuplicates = "duplicates"
	fieldLastSeen   = "last_seen"
)

// RedisIndex keeps records in Redis so several campaign processes can share
// one deduplication space. The immutable part of a record is claimed with
// SETNX; counters live in a companion hash.
type RedisIndex struct {
	cache  cache.Cache
	prefix string
}

// NewRedisIndex uses prefix for every key; "" selects "swfdiff:".
func NewRedisIndex(c cache.Cache, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisIndex{cache: c, prefix: prefix}
}

func (x *RedisIndex) recordKey(fp string) string { return x.prefix + "failure:" + fp }
func (x *RedisIndex) statsKey(fp string) string  { return x.prefix + "failure:" + fp + ":stats" }
func (x *RedisIndex) listKey() string            { return x.prefix + "failures" }

func (x *RedisIndex) Insert(ctx context.Context, rec FailureRecord) (FailureRecord, bool, error) {
	base := rec
	base.Duplicates = 0
	payload, err := json.Marshal(base)
	if err != nil {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.StorageError, "encode failure record")
	}

	created, err := x.cache.SetNX(ctx, x.recordKey(rec.Fingerprint), payload, 0)
	if err != nil {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.CacheError, "claim fingerprint")
	}
	count, err := x.cache.HIncrBy(ctx, x.statsKey(rec.Fingerprint), fieldDuplicates, 1)
	if err != nil {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.CacheError, "count duplicate")
	}
	if err := x.cache.HSet(ctx, x.statsKey(rec.Fingerprint), fieldLastSeen, rec.LastSeen.UTC().Format(time.RFC3339Nano)); err != nil {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.CacheError, "update last seen")
	}
	if created {
		member := cache.ZMember{Score: float64(rec.FirstSeen.UnixMilli()), Member: rec.Fingerprint}
		if err := x.cache.ZAdd(ctx, x.listKey(), member); err != nil {
			return FailureRecord{}, false, appErr.Wrapf(err, appErr.CacheError, "index fingerprint")
		}
		rec.Duplicates = count
		return rec, true, nil
	}

	stored, err := x.Get(ctx, rec.Fingerprint)
	if err != nil {
		return FailureRecord{}, false, err
	}
	return stored, false, nil
}

func (x *RedisIndex) Get(ctx context.Context, fingerprint string) (FailureRecord, error) {
	raw, err := x.cache.Get(ctx, x.recordKey(fingerprint))
	if err != nil {
		return FailureRecord{}, appErr.Wrapf(err, appErr.CacheError, "get failure record")
	}
	if raw == "" {
		return FailureRecord{}, appErr.Newf(appErr.FailureNotFound, "failure %s not found", fingerprint)
	}
	var rec FailureRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return FailureRecord{}, appErr.Wrapf(err, appErr.StorageError, "decode failure record")
	}
	stats, err := x.cache.HGetAll(ctx, x.statsKey(fingerprint))
	if err != nil {
		return FailureRecord{}, appErr.Wrapf(err, appErr.CacheError, "get failure stats")
	}
	if n, err := strconv.ParseInt(stats[fieldDuplicates], 10, 64); err == nil {
		rec.Duplicates = n
	}
	if ts, err := time.Parse(time.RFC3339Nano, stats[fieldLastSeen]); err == nil {
		rec.LastSeen = ts
	}
	return rec, nil
}

func (x *RedisIndex) List(ctx context.Context, offset, limit int) ([]FailureRecord, int64, error) {
	total, err := x.cache.ZCard(ctx, x.listKey())
	if err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.CacheError, "count failures")
	}
	start, end := pageBounds(int(total), offset, limit)
	if start >= end {
		return []FailureRecord{}, total, nil
	}
	fps, err := x.cache.ZRevRange(ctx, x.listKey(), int64(start), int64(end-1))
	if err != nil {
		return nil, 0, appErr.Wrapf(err, appErr.CacheError, "list failures")
	}
	records := make([]FailureRecord, 0, len(fps))
	for _, fp := range fps {
		rec, err := x.Get(ctx, fp)
		if appErr.Is(err, appErr.FailureNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, nil
}

func (x *RedisIndex) Close() error {
	return x.cache.Close()
}
