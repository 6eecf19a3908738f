package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter guarda contadores en un go-cache local. Sirve para una sola
// instancia; con varias réplicas usar RedisLimiter.
type MemoryLimiter struct {
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{c: gocache.New(time.Minute, 5*time.Minute), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit Limit) (Result, error) {
	if !limit.Enabled() {
		return Result{Allowed: true}, nil
	}
	k, left := windowKey("", key, l.now().UTC(), limit.Window)

	// Add falla si la clave existe: en ese caso sólo se incrementa.
	_ = l.c.Add(k, int64(0), left)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// expiró entre Add e Increment
		l.c.Set(k, int64(1), left)
		hits = 1
	}
	return result(hits, limit, left), nil
}
