// Package rate implementa rate limiting fixed-window con backend redis o memoria.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limit es el máximo de hits permitidos por ventana.
type Limit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

func (l Limit) Enabled() bool { return l.Max > 0 && l.Window > 0 }

type Limiter interface {
	Allow(ctx context.Context, key string, limit Limit) (Result, error)
}

// windowKey arma la clave de la ventana actual y devuelve cuánto le queda.
func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Duration) {
	start := now.Truncate(window)
	k := fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
	return k, start.Add(window).Sub(now)
}

func result(hits int64, limit Limit, ttl time.Duration) Result {
	max := int64(limit.Max)
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = limit.Window
		}
	}
	return res
}

// ─── Redis ───

// RedisLimiter: INCR + EXPIRE sobre una clave por ventana.
type RedisLimiter struct {
	client rdb.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client rdb.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit Limit) (Result, error) {
	if !limit.Enabled() {
		return Result{Allowed: true}, nil
	}
	redisKey, left := windowKey(l.prefix, key, l.now().UTC(), limit.Window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, left)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	return result(incr.Val(), limit, left), nil
}
