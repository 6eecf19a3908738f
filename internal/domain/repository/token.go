package repository

import (
	"context"
	"time"
)

// TokenState es el ciclo de vida de un refresh token.
type TokenState string

const (
	TokenActive      TokenState = "ACTIVE"
	TokenExpired     TokenState = "EXPIRED"
	TokenBlacklisted TokenState = "BLACKLISTED"
	TokenRevoked     TokenState = "REVOKED"
)

// OwnerKind distingue refresh tokens de admins y de usuarios.
type OwnerKind string

const (
	OwnerAdmin OwnerKind = "admin"
	OwnerUser  OwnerKind = "user"
)

// AuthMethod es el tag del flujo que creó la sesión.
type AuthMethod string

const (
	AuthPassword  AuthMethod = "EMAIL_AND_PASSWORD_SIGNIN"
	AuthMagicLink AuthMethod = "MAGICLINK"
	AuthOTP       AuthMethod = "OTP"
	AuthGoogle    AuthMethod = "GOOGLE_OAUTH"
	AuthGitHub    AuthMethod = "GITHUB_OAUTH"
	AuthWebAuthn  AuthMethod = "WEBAUTHN"
	AuthRefresh   AuthMethod = "REFRESH"
)

// RefreshToken persiste sólo el hash del valor opaco.
type RefreshToken struct {
	ID         string
	TokenHash  string
	OwnerKind  OwnerKind
	OwnerID    string
	ProjectID  string // vacío para admins
	AuthMethod AuthMethod
	State      TokenState
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)
	// SetState cambia el estado sólo si el actual es from. Devuelve ErrNotFound
	// si no hubo transición (otra request ganó la carrera).
	SetState(ctx context.Context, id string, from, to TokenState) error
	// SetStateForOwner pasa todos los tokens del dueño en estado from a to.
	// projectID vacío no filtra por proyecto.
	SetStateForOwner(ctx context.Context, kind OwnerKind, ownerID, projectID string, from, to TokenState) (int64, error)
	// MarkExpired pasa a EXPIRED los tokens activos vencidos antes de now.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}
