package repository

import (
	"context"
	"time"
)

// OAuthProviderConfig guarda client id y secret cifrados con el vault.
// Única por (ProjectID, Provider).
type OAuthProviderConfig struct {
	ID              string
	ProjectID       string
	Provider        string
	ClientIDEnc     string
	ClientSecretEnc string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OAuthProviderRepository interface {
	// Upsert reemplaza los secretos si ya existe la combinación (project, provider).
	Upsert(ctx context.Context, c *OAuthProviderConfig) error
	Get(ctx context.Context, projectID, provider string) (*OAuthProviderConfig, error)
	ListByProject(ctx context.Context, projectID string) ([]OAuthProviderConfig, error)
	Delete(ctx context.Context, projectID, provider string) error
}

// OAuthState correlaciona el parámetro state de un flujo con provider y proyecto.
// StateHash es sha256 del valor que viaja en la URL.
type OAuthState struct {
	StateHash string
	Provider  string
	ProjectID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type OAuthStateRepository interface {
	Create(ctx context.Context, s *OAuthState) error
	// Take lee y borra en una sola operación. Un segundo Take del mismo
	// state devuelve ErrNotFound.
	Take(ctx context.Context, stateHash string) (*OAuthState, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
