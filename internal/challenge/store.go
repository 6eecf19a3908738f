// Package challenge guarda el challenge vigente de cada ceremonia WebAuthn.
// Hay uno por admin: emitir uno nuevo reemplaza al anterior, y consumirlo lo borra.
package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/cache"
	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

var (
	// ErrNotFound: no hay challenge o ya fue consumido.
	ErrNotFound = errors.New("challenge: not found")
	// ErrExpired: existía pero venció. Igual queda borrado.
	ErrExpired = errors.New("challenge: expired")
)

// Entry es lo que se guarda entre el inicio y el fin de la ceremonia.
type Entry struct {
	AdminID     string    `json:"admin_id"`
	Challenge   string    `json:"challenge"`
	SessionData []byte    `json:"session_data"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store emite y consume challenges.
type Store interface {
	// Put reemplaza cualquier challenge previo del admin.
	Put(ctx context.Context, e Entry) error
	// Consume devuelve el challenge y lo borra. Sólo una llamada lo obtiene.
	Consume(ctx context.Context, adminID string) (*Entry, error)
}

// ─── Backend: repositorio ───

type repoStore struct {
	repo repository.ChallengeRepository
	now  func() time.Time
}

// NewRepoStore persiste en la tabla de challenges (upsert por admin).
func NewRepoStore(repo repository.ChallengeRepository) Store {
	return &repoStore{repo: repo, now: time.Now}
}

func (s *repoStore) Put(ctx context.Context, e Entry) error {
	return s.repo.Upsert(ctx, &repository.Challenge{
		AdminID:     e.AdminID,
		Challenge:   e.Challenge,
		SessionData: e.SessionData,
		ExpiresAt:   e.ExpiresAt,
	})
}

func (s *repoStore) Consume(ctx context.Context, adminID string) (*Entry, error) {
	c, err := s.repo.Get(ctx, adminID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// El Delete es el que decide quién gana si hay dos consumos en paralelo.
	if err := s.repo.Delete(ctx, adminID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if s.now().After(c.ExpiresAt) {
		return nil, ErrExpired
	}
	return &Entry{AdminID: c.AdminID, Challenge: c.Challenge, SessionData: c.SessionData, ExpiresAt: c.ExpiresAt}, nil
}

// ─── Backend: cache ───

type cacheStore struct {
	c   cache.Client
	now func() time.Time
}

// NewCacheStore guarda en memory/redis con TTL igual a la vida del challenge.
func NewCacheStore(c cache.Client) Store {
	return &cacheStore{c: c, now: time.Now}
}

func cacheKey(adminID string) string { return "webauthn:challenge:" + adminID }

func (s *cacheStore) Put(ctx context.Context, e Entry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("challenge: expiración en el pasado")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, cacheKey(e.AdminID), string(b), ttl)
}

func (s *cacheStore) Consume(ctx context.Context, adminID string) (*Entry, error) {
	raw, err := s.c.GetAndDelete(ctx, cacheKey(adminID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("challenge: decode: %w", err)
	}
	if s.now().After(e.ExpiresAt) {
		return nil, ErrExpired
	}
	return &e, nil
}
