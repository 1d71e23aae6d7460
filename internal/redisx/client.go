// Package redisx holds the Redis client used for cross-instance coordination.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New dials addr and pings it.
func New(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Locker hands out leases with SET NX. A lease is never released explicitly;
// it expires after its ttl.
type Locker struct {
	rdb   *redis.Client
	owner string
}

// NewLocker returns a Locker that tags its leases with owner.
func NewLocker(rdb *redis.Client, owner string) *Locker {
	return &Locker{rdb: rdb, owner: owner}
}

// TryLock reports whether this caller obtained key for ttl.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	return l.rdb.SetNX(ctx, key, l.owner, ttl).Result()
}
