package repository

import (
	"context"
	"time"
)

// User es la identidad global de un usuario final. El perfil y la contraseña
// viven en Membership, uno por proyecto.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Membership une un User con un Project. Las credenciales son por proyecto:
// el mismo email puede tener contraseñas distintas en cada uno.
type Membership struct {
	UserID       string
	ProjectID    string
	FirstName    string
	LastName     string
	Role         string
	Verified     bool
	PasswordHash string // vacío = sin contraseña (OAuth, magic link)
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// UpdateMembershipInput sólo aplica los campos no nil.
type UpdateMembershipInput struct {
	FirstName    *string
	LastName     *string
	Role         *string
	Verified     *bool
	PasswordHash *string
	LastLoginAt  *time.Time
}

type UserRepository interface {
	// Create falla con ErrConflict si el email ya existe.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Delete borra memberships y refresh tokens del usuario.
	Delete(ctx context.Context, id string) error

	// CreateMembership falla con ErrConflict si ya existe para (user, project).
	CreateMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, userID, projectID string) (*Membership, error)
	UpdateMembership(ctx context.Context, userID, projectID string, in UpdateMembershipInput) error
}
