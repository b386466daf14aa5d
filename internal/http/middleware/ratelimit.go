package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yungbote/roomviz-backend/internal/platform/ctxutil"
)

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters map[uuid.UUID]*userLimiter
	lastGC   time.Time
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewUserRateLimiter allows perMinute requests per user with the given burst.
// A non-positive perMinute disables limiting.
func NewUserRateLimiter(perMinute float64, burst int) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserRateLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		limiters: map[uuid.UUID]*userLimiter{},
	}
}

func (l *UserRateLimiter) Allow(userID uuid.UUID) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastGC) > l.idleTTL {
		for id, ul := range l.limiters {
			if now.Sub(ul.seen) > l.idleTTL {
				delete(l.limiters, id)
			}
		}
		l.lastGC = now
	}
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.seen = now
	return ul.lim.AllowN(now, 1)
}

// Handler rejects requests over the caller's limit with 429. It must run after RequireAuth.
func (l *UserRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(ctxutil.UserID(c.Request.Context())) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"message":    "too many render requests",
					"code":       "rate_limited",
					"suggestion": "Wait a moment before submitting another render.",
				},
			})
			return
		}
		c.Next()
	}
}
