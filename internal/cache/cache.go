// Package cache guarda valores efímeros con TTL: challenges WebAuthn,
// sesiones de ceremonia y cualquier cosa que tenga que consumirse una vez.
//
// Soporta memory (go-cache, un solo proceso) y redis (varias réplicas).
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indica que la key no existe o ya expiró.
var ErrNotFound = errors.New("cache: key not found")

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor. ttl 0 significa sin expiración.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetAndDelete lee y borra en un paso: dos llamadas concurrentes nunca
	// obtienen el mismo valor.
	GetAndDelete(ctx context.Context, key string) (string, error)

	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string `yaml:"driver" env:"CACHE_DRIVER"` // "memory" | "redis"
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix"`
}

// New crea un cliente según cfg.Driver. Vacío es memory.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, errors.New("cache: driver desconocido " + cfg.Driver)
	}
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
