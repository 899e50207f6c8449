package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quorumworks/tallyd/config"
	"github.com/quorumworks/tallyd/internal/bootstrap"
)

var errRedisNotConfigured = errors.New("redis not configured")

// connectLockStore connects to the Redis instance that backs the operation
// lock store. Unlike the server, which tolerates a missing Redis and degrades
// to database-only locking checks, the lock commands exist to inspect Redis
// state and fail loudly when it is absent.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectLockStore(cmdCtx *commandContext) (redis.UniversalClient, error) {
	client, err := maybeConnectRedis(cmdCtx)
	if err != nil {
		if errors.Is(err, errRedisNotConfigured) {
			return nil, errors.New(
				"redis is not configured; set REDIS_URI (or sentinel/cluster settings) to inspect operation locks")
		}
		return nil, err
	}
	return client, nil
}

// maybeConnectRedis returns a connected client when configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func maybeConnectRedis(cmdCtx *commandContext) (redis.UniversalClient, error) {
	if !hasRedisConfig(&cmdCtx.Config.Redis) {
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}
