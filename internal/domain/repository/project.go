package repository

import (
	"context"
	"time"
)

// Project es el límite de tenant. APIKeyHash es un digest argon2id; la API key
// en claro sólo se devuelve al crearla o rotarla.
type Project struct {
	ID         string
	AdminID    string
	Name       string
	APIKeyHash string
	ClientKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ProjectRepository interface {
	// Create falla con ErrConflict si el admin ya tiene un proyecto con ese nombre.
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	GetByClientKey(ctx context.Context, clientKey string) (*Project, error)
	ListByAdmin(ctx context.Context, adminID string) ([]Project, error)
	UpdateAPIKeyHash(ctx context.Context, id, hash string) error
	// Delete borra memberships, configuraciones OAuth y tokens del proyecto.
	Delete(ctx context.Context, id string) error
}
