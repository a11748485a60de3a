package database

import (
	"testing"
	"time"

	"github.com/nourish-clinic/platform/pkg/common/config"
)

func TestRedisOptionsCarriesPoolTuning(t *testing.T) {
	cfg := &config.Config{
		RedisHost:         "redis.internal",
		RedisPort:         "6380",
		RedisDB:           3,
		RedisPoolSize:     40,
		RedisMinIdleConns: 4,
		RedisDialTimeout:  3 * time.Second,
		RedisReadTimeout:  time.Second,
		RedisWriteTimeout: 1500 * time.Millisecond,
	}

	opts := RedisOptions(cfg)
	if opts.Addr != "redis.internal:6380" || opts.DB != 3 {
		t.Fatalf("unexpected address %q db %d", opts.Addr, opts.DB)
	}
	if opts.PoolSize != 40 || opts.MinIdleConns != 4 {
		t.Fatalf("pool settings not applied: size %d min idle %d", opts.PoolSize, opts.MinIdleConns)
	}
	if opts.DialTimeout != 3*time.Second || opts.ReadTimeout != time.Second || opts.WriteTimeout != 1500*time.Millisecond {
		t.Fatalf("timeouts not applied: %+v", opts)
	}
	if opts.PoolTimeout != 2*time.Second {
		t.Fatalf("expected pool timeout one second past the read timeout, got %s", opts.PoolTimeout)
	}
	if opts.ConnMaxIdleTime != redisConnMaxIdleTime {
		t.Fatalf("unexpected idle time %s", opts.ConnMaxIdleTime)
	}
}

func TestRedisOptionsFromLoadedConfig(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "")
	t.Setenv("REDIS_READ_TIMEOUT", "750ms")

	opts := RedisOptions(config.Load())
	if opts.PoolSize != 20 {
		t.Fatalf("expected default pool size 20, got %d", opts.PoolSize)
	}
	if opts.ReadTimeout != 750*time.Millisecond {
		t.Fatalf("expected read timeout override, got %s", opts.ReadTimeout)
	}
}

func TestCloseRedisWithoutClient(t *testing.T) {
	if redisClient != nil {
		t.Skip("client already initialised")
	}
	if err := CloseRedis(); err != nil {
		t.Fatalf("expected nil error without a client, got %v", err)
	}
}
