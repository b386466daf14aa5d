package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/roomviz-backend/internal/platform/logger"
	"github.com/yungbote/roomviz-backend/internal/platform/redisx"
)

// Gate admits one render per project at a time.
type Gate interface {
	Acquire(ctx context.Context, projectID uuid.UUID) (release func(), err error)
}

type localGate struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func NewLocalGate() Gate {
	return &localGate{held: make(map[uuid.UUID]bool)}
}

func (g *localGate) Acquire(_ context.Context, projectID uuid.UUID) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[projectID] {
		return nil, ErrRenderInFlight
	}
	g.held[projectID] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, projectID)
			g.mu.Unlock()
		})
	}, nil
}

// redisGate extends the local gate across instances with a Redis lease.
type redisGate struct {
	local  Gate
	locker *redisx.Locker
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisGate(log *logger.Logger, locker *redisx.Locker, ttl time.Duration) Gate {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisGate{
		local:  NewLocalGate(),
		locker: locker,
		ttl:    ttl,
		log:    log.With("component", "RenderGate"),
	}
}

func (g *redisGate) Acquire(ctx context.Context, projectID uuid.UUID) (func(), error) {
	releaseLocal, err := g.local.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	lease, err := g.locker.Acquire(ctx, "render:"+projectID.String(), g.ttl)
	if err != nil {
		releaseLocal()
		if errors.Is(err, redisx.ErrLockHeld) {
			return nil, ErrRenderInFlight
		}
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := lease.Release(ctx); err != nil {
			g.log.Warn("Render lease release failed", "project_id", projectID, "error", err)
		}
		releaseLocal()
	}, nil
}
