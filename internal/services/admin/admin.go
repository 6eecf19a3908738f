// Package admin contiene los servicios del espacio de administradores:
// registro y gestión de proyectos (nombre, API key, client key).
package admin

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	store "github.com/dropDatabas3/tenantauth/internal/store"
)

// Prefijos para reconocer las claves a simple vista.
const (
	apiKeyPrefix    = "sk_"
	clientKeyPrefix = "ck_"
)

// Deps contiene las dependencias del servicio admin.
type Deps struct {
	Store  store.Connection
	Hasher *password.Hasher
	Policy password.Policy
}

// Service define las operaciones de administración.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Me(ctx context.Context, adminID string) (*AdminView, error)

	CreateProject(ctx context.Context, adminID string, in CreateProjectInput) (*ProjectKeys, error)
	ListProjects(ctx context.Context, adminID string) ([]ProjectView, error)
	GetProject(ctx context.Context, adminID, projectID string) (*ProjectView, error)
	RotateAPIKey(ctx context.Context, adminID, projectID string) (*ProjectKeys, error)
	DeleteProject(ctx context.Context, adminID, projectID string) error
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type RegisterResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type AdminView struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Verified   bool       `json:"verified"`
	MFAEnabled bool       `json:"mfaEnabled"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastLogin  *time.Time `json:"lastLoginAt,omitempty"`
}

type CreateProjectInput struct {
	Name string `json:"name"`
}

// ProjectView nunca incluye la API key.
type ProjectView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ClientKey string    `json:"clientKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProjectKeys es la única respuesta que lleva la API key en claro.
type ProjectKeys struct {
	Success   bool   `json:"success"`
	ProjectID string `json:"projectId"`
	APIKey    string `json:"apiKey"`
	ClientKey string `json:"clientKey"`
}

type service struct {
	deps Deps
}

func NewService(d Deps) Service {
	if d.Hasher == nil {
		d.Hasher = password.NewHasher(password.Default)
	}
	return &service{deps: d}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("admin"), logger.Op("Register"))

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, httperrors.ErrMissingFields
	}
	if reasons := s.deps.Policy.Validate(in.Password); len(reasons) > 0 {
		return nil, httperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, ","))
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	a := &repository.Admin{
		ID:           uuid.NewString(),
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
	}
	if err := s.deps.Store.Admins().Create(ctx, a); err != nil {
		if repository.IsConflict(err) {
			return nil, httperrors.ErrEmailAlreadyInUse
		}
		return nil, common.MapRepo(err, nil)
	}
	log.Info("admin registered", logger.AdminID(a.ID))
	return &RegisterResult{Success: true, ID: a.ID}, nil
}

func (s *service) Me(ctx context.Context, adminID string) (*AdminView, error) {
	a, err := s.deps.Store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}
	return &AdminView{
		ID: a.ID, Email: a.Email, FirstName: a.FirstName, LastName: a.LastName,
		Verified: a.Verified, MFAEnabled: a.MFAEnabled, CreatedAt: a.CreatedAt, LastLogin: a.LastLoginAt,
	}, nil
}
