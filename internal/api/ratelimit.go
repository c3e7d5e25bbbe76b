package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/salescast/pkg/redis"
)

// Limiter decides whether a client may issue another request
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// RedisLimiter shares a sliding window across API instances
type RedisLimiter struct {
	limiter   *redis.RateLimiter
	perMinute int
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(l *redis.RateLimiter, perMinute int) *RedisLimiter {
	return &RedisLimiter{limiter: l, perMinute: perMinute}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, client string) (bool, error) {
	ok, _, err := l.limiter.Allow(ctx, redis.APIRateLimit(client, l.perMinute))
	return ok, err
}

// LocalLimiter token bucket per client, used when Redis is disabled
type LocalLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows perMinute requests per client with a burst of perMinute
func NewLocalLimiter(perMinute int) *LocalLimiter {
	return &LocalLimiter{
		limiters:  make(map[string]*localEntry),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		idleAfter: 10 * time.Minute,
	}
}

// Allow implements Limiter
func (l *LocalLimiter) Allow(_ context.Context, client string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.limiters[client]
	if !ok {
		l.evict(now)
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[client] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

// evict drops clients idle for longer than idleAfter; caller holds mu
func (l *LocalLimiter) evict(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleAfter {
			delete(l.limiters, k)
		}
	}
}
