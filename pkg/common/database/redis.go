package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nourish-clinic/platform/pkg/common/config"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

const redisConnMaxIdleTime = 5 * time.Minute

// RedisOptions builds the client options for the claim store. Zero values in
// cfg fall back to go-redis defaults.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:            fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:        cfg.RedisPassword,
		DB:              cfg.RedisDB,
		PoolSize:        cfg.RedisPoolSize,
		MinIdleConns:    cfg.RedisMinIdleConns,
		ConnMaxIdleTime: redisConnMaxIdleTime,
		DialTimeout:     cfg.RedisDialTimeout,
		ReadTimeout:     cfg.RedisReadTimeout,
		WriteTimeout:    cfg.RedisWriteTimeout,
		PoolTimeout:     cfg.RedisReadTimeout + time.Second,
	}
}

func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		opts := RedisOptions(cfg)
		redisClient = redis.NewClient(opts)

		pingTimeout := opts.DialTimeout
		if pingTimeout <= 0 {
			pingTimeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		fields := map[string]interface{}{"addr": opts.Addr, "pool_size": opts.PoolSize}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.WithError(err).WithFields(fields).Error("Failed to connect to Redis")
		} else {
			logger.Log.WithFields(fields).Info("Connected to Redis")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
