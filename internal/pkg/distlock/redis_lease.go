package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// holdScript renews the key when we own it, takes it when it is free, and
// reports 0 when someone else holds it.
var holdScript = redis.NewScript(`
	local owner = redis.call("get", KEYS[1])
	if owner == ARGV[1] then
		redis.call("pexpire", KEYS[1], ARGV[2])
		return 1
	end
	if not owner then
		redis.call("set", KEYS[1], ARGV[1], "PX", ARGV[2])
		return 1
	end
	return 0
`)

// renewScript extends the key only while we still own it; it never takes a
// free key.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLease provides the lease via a Redis key with TTL. A random ownership
// value and Lua scripts make renew and release atomic, so a process never
// extends or deletes a lease taken over by another process.
type RedisLease struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// NewRedisLease creates a new lease backed by Redis.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLease{
		client: client,
		key:    fmt.Sprintf("lease:%s", key),
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *RedisLease) Hold(ctx context.Context) (bool, error) {
	n, err := holdScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("holding lease %s: %w", l.key, err)
	}
	return n == 1, nil
}

func (l *RedisLease) Renew(ctx context.Context) (bool, error) {
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renewing lease %s: %w", l.key, err)
	}
	return n == 1, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	return err
}
