package main

import (
	"context"
	"fmt"
	"path/filepath"

	"swfdiff/internal/common/cache"
	"swfdiff/internal/common/db"
	"swfdiff/internal/common/mq"
	"swfdiff/internal/common/storage"
	"swfdiff/internal/store"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
)

// buildStore opens the configured index, artifact backend and optional
// notifier. The returned cleanup closes all of them.
func buildStore(ctx context.Context, appCfg *AppConfig, differ store.Differ) (*store.Store, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn(context.Background(), "close store backend failed", zap.Error(err))
			}
		}
	}

	index, err := buildIndex(ctx, appCfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, index.Close)

	artifacts, err := buildArtifacts(ctx, appCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if c, ok := artifacts.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	var notifier store.Notifier
	if appCfg.Store.Topic != "" {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, producer.Close)
		if notifier, err = store.NewKafkaNotifier(producer, appCfg.Store.Topic); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	s, err := store.New(appCfg.toStoreConfig(), index, artifacts, differ, notifier)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	logger.Info(ctx, "failure store ready",
		zap.String("index", appCfg.Store.Index),
		zap.String("artifacts", appCfg.Store.Artifacts),
		zap.Bool("notifier", notifier != nil),
	)
	return s, cleanup, nil
}

func buildIndex(ctx context.Context, appCfg *AppConfig) (store.Index, error) {
	switch appCfg.Store.Index {
	case backendRedis:
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis failed: %w", err)
		}
		return store.NewRedisIndex(redisCache, appCfg.Store.RedisPrefix), nil
	case backendMySQL:
		mysqlDB, err := db.NewMySQLWithConfig(&appCfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("init mysql failed: %w", err)
		}
		index, err := store.NewMySQLIndex(ctx, mysqlDB)
		if err != nil {
			_ = mysqlDB.Close()
			return nil, err
		}
		return index, nil
	default:
		return store.NewFSIndex(filepath.Clean(appCfg.Store.Root))
	}
}

func buildArtifacts(ctx context.Context, appCfg *AppConfig) (store.ArtifactStore, error) {
	if appCfg.Store.Artifacts == backendMinIO {
		objects, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("init minio failed: %w", err)
		}
		return store.NewObjectArtifacts(ctx, objects, appCfg.MinIO.Bucket, appCfg.Store.ObjectPrefix)
	}
	return store.NewFSArtifacts(filepath.Clean(appCfg.Store.Root))
}
