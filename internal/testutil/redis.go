package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are tried in order when REDIS_ADDR is unset: the compose
// service name used in CI, a plain local install, then the test profile port.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

const (
	redisLockPrefix = "oidcgate:testutil:db_lock:"
	redisLockTTL    = 30 * time.Minute
	redisMaxDB      = 15
)

func pingRedis(addr string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func findRedis() (string, error) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c, err := pingRedis(addr, 0)
		if err != nil {
			return "", fmt.Errorf("%s: %w", addr, err)
		}
		return addr, c.Close()
	}
	var lastErr error
	for _, addr := range redisCandidates {
		c, err := pingRedis(addr, 0)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", addr, err)
			continue
		}
		return addr, c.Close()
	}
	return "", lastErr
}

// SetupTestRedis returns a client on an otherwise unused, flushed logical DB.
// The caller closes it.
// The DB index comes from TEST_REDIS_DB or is reserved through a lock key in
// DB 0 so parallel test packages do not flush each other's data.
func SetupTestRedis(t TB) *redis.Client {
	t.Helper()
	addr, err := findRedis()
	if err != nil {
		unavailable(t, truthy("TEST_REQUIRE_REDIS"), "redis", err)
		return nil
	}

	client, err := pingRedis(addr, reserveRedisDB(t, addr))
	if err != nil {
		unavailable(t, truthy("TEST_REQUIRE_REDIS"), "redis", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Logf("flush redis test db: %v", err)
	}
	return client
}

func reserveRedisDB(t TB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for db := 1; db <= redisMaxDB; db++ {
		key := redisLockPrefix + strconv.Itoa(db)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, key, owner, redisLockTTL).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := meta.Del(ctx, key).Err(); err != nil {
				t.Logf("release redis db lock %s: %v", key, err)
			}
			_ = meta.Close()
		})
		return db
	}
	_ = meta.Close()
	t.Logf("no free redis db at %s; sharing db 1", addr)
	return 1
}
