package repository

import (
	"context"
	"time"
)

// Admin es dueño de proyectos. Su espacio de cuentas es independiente del de usuarios.
type Admin struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Verified     bool
	MFAEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// UpdateAdminInput sólo aplica los campos no nil.
type UpdateAdminInput struct {
	Email        *string
	FirstName    *string
	LastName     *string
	PasswordHash *string
	Verified     *bool
	MFAEnabled   *bool
	LastLoginAt  *time.Time
}

type AdminRepository interface {
	// Create falla con ErrConflict si el email ya existe.
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id string) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	// Update falla con ErrConflict si el nuevo email ya está tomado.
	Update(ctx context.Context, id string, in UpdateAdminInput) error
	// Delete borra en cascada proyectos, credenciales WebAuthn y refresh tokens.
	Delete(ctx context.Context, id string) error
}
