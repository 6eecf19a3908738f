// Package store provee el registry de adapters de persistencia.
// Cada adapter se registra en su init(); main importa los que quiera habilitar.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

// Adapter crea conexiones a un backend concreto.
type Adapter interface {
	// Name retorna el nombre del adapter ("memory", "postgres").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg Config) (Connection, error)
}

// Connection da acceso a los repositorios de un backend.
type Connection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	Admins() repository.AdminRepository
	Users() repository.UserRepository
	Projects() repository.ProjectRepository
	OAuthProviders() repository.OAuthProviderRepository
	OAuthStates() repository.OAuthStateRepository
	OTPs() repository.OTPRepository
	Challenges() repository.ChallengeRepository
	WebAuthnCredentials() repository.WebAuthnCredentialRepository
	RefreshTokens() repository.RefreshTokenRepository
}

// Config configuración para conectar a un almacenamiento.
type Config struct {
	// Driver del adapter: "memory" o "postgres".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"`

	// DSN connection string (postgres).
	DSN string `yaml:"dsn" env:"DATABASE_URL"`

	MaxConns int32 `yaml:"max_conns"`
	MinConns int32 `yaml:"min_conns"`
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("store: adapter %q already registered", name))
	}
	adapters[name] = a
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre una conexión usando el adapter indicado en cfg.Driver.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	registryMu.RLock()
	a, ok := adapters[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: adapter %q not registered (disponibles: %v)", cfg.Driver, ListAdapters())
	}
	return a.Connect(ctx, cfg)
}
