package redisx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocker(rdb, "render:"), mr
}

func TestLockerExclusive(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "p1", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "p1", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second acquire: want ErrLockHeld got=%v", err)
	}
	if _, err := l.Acquire(ctx, "p2", time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "p1", time.Minute); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestLeaseReleaseKeepsForeignOwner(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "p1", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, err := l.Acquire(ctx, "p1", time.Minute); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !mr.Exists("render:p1") {
		t.Fatalf("stale lease must not delete the new owner's key")
	}
}
