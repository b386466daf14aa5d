package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another owner")

// Only the owner token that acquired the key may delete it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb    *goredis.Client
	prefix string
}

func NewLocker(rdb *goredis.Client, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

type Lease struct {
	key   string
	token string
	l     *Locker
}

// Acquire sets key with NX and a TTL so a crashed holder cannot wedge the key forever.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", full, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{key: full, token: token, l: l}, nil
}

func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, ls.l.rdb, []string{ls.key}, ls.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis release %s: %w", ls.key, err)
	}
	return nil
}
