package repository

import (
	"context"
	"time"
)

// Challenge es el nonce vigente de una ceremonia WebAuthn. Uno por admin.
// SessionData es el JSON de webauthn.SessionData.
type Challenge struct {
	AdminID     string
	Challenge   string
	SessionData []byte
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

type ChallengeRepository interface {
	// Upsert reemplaza cualquier challenge previo del admin.
	Upsert(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, adminID string) (*Challenge, error)
	Delete(ctx context.Context, adminID string) error
}

// WebAuthnCredential es la clave pública registrada por un admin.
type WebAuthnCredential struct {
	ID              []byte
	AdminID         string
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	Transports      []string
	CreatedAt       time.Time
}

type WebAuthnCredentialRepository interface {
	// Create falla con ErrConflict si el credential id ya existe.
	Create(ctx context.Context, c *WebAuthnCredential) error
	ListByAdmin(ctx context.Context, adminID string) ([]WebAuthnCredential, error)
	Delete(ctx context.Context, adminID string, credentialID []byte) error
}
