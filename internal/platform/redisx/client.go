package redisx

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/roomviz-backend/internal/platform/envutil"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

// NewClientFromEnv returns nil, nil when REDIS_ADDR is unset; callers then
// fall back to in-process equivalents.
func NewClientFromEnv(log *logger.Logger) (*goredis.Client, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Redis connected", "addr", addr)
	return rdb, nil
}
