// Package ratelimit throttles updates per Telegram user.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether userID may run another command.
type Limiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// Disabled lets every update through.
type Disabled struct{}

func (Disabled) Allow(context.Context, int64) (bool, error) {
	return true, nil
}

// minIdle bounds how long an untouched user bucket is kept in memory.
const minIdle = 10 * time.Minute

// Local keeps one token bucket per user in process memory. Buckets idle for
// longer than it takes them to refill are dropped.
type Local struct {
	mu        sync.Mutex
	visitors  map[int64]*visitor
	rps       float64
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal returns a token bucket limiter refilling rps tokens per second up
// to burst.
func NewLocal(rps float64, burst int) *Local {
	if burst <= 0 {
		burst = 1
	}

	idle := WindowFor(rps, burst)
	if idle < minIdle {
		idle = minIdle
	}

	return &Local{
		visitors: make(map[int64]*visitor),
		rps:      rps,
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

func (l *Local) Allow(_ context.Context, userID int64) (bool, error) {
	return l.limiter(userID).Allow(), nil
}

func (l *Local) limiter(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now

	return v.limiter
}

// sweep drops buckets unused for longer than the idle period; a dropped
// bucket would have refilled completely anyway. Callers hold l.mu.
func (l *Local) sweep(now time.Time) {
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, id)
		}
	}
	l.lastSweep = now
}

// Redis is a fixed window counter shared by every bot replica.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis allows limit updates per window for each user.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{client: client, limit: limit, window: window, prefix: "timehub:rate_limit:"}
}

// WindowFor converts a token bucket setting into the equivalent fixed window:
// burst updates per burst/rps seconds.
func WindowFor(rps float64, burst int) time.Duration {
	if rps <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := float64(burst) / rps
	return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
}

func (r *Redis) Allow(ctx context.Context, userID int64) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("%s%d", r.prefix, userID)

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	}); err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}

	// A key without expiry starts a window, including one left behind when an
	// earlier EXPIRE failed.
	if ttl.Val() < 0 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("expire rate limit: %w", err)
		}
	}

	return incr.Val() <= int64(r.limit), nil
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
