package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	tokens "github.com/dropDatabas3/tenantauth/internal/security/token"
)

// CreateProject genera API key y client key distintas. La API key sólo se
// persiste como digest argon2id.
func (s *service) CreateProject(ctx context.Context, adminID string, in CreateProjectInput) (*ProjectKeys, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("admin.projects"), logger.Op("CreateProject"))

	in.Name = strings.TrimSpace(in.Name)
	if adminID == "" || in.Name == "" {
		return nil, httperrors.ErrMissingFields
	}

	apiKey, apiHash, err := s.newAPIKey()
	if err != nil {
		return nil, err
	}
	clientKey, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	clientKey = clientKeyPrefix + clientKey

	p := &repository.Project{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		Name:       in.Name,
		APIKeyHash: apiHash,
		ClientKey:  clientKey,
	}
	if err := s.deps.Store.Projects().Create(ctx, p); err != nil {
		if repository.IsConflict(err) {
			return nil, httperrors.ErrProjectNameTaken
		}
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}

	log.Info("project created", logger.AdminID(adminID), logger.ProjectID(p.ID))
	return &ProjectKeys{Success: true, ProjectID: p.ID, APIKey: apiKey, ClientKey: clientKey}, nil
}

func (s *service) ListProjects(ctx context.Context, adminID string) ([]ProjectView, error) {
	ps, err := s.deps.Store.Projects().ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, common.MapRepo(err, nil)
	}
	out := make([]ProjectView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toView(&p))
	}
	return out, nil
}

func (s *service) GetProject(ctx context.Context, adminID, projectID string) (*ProjectView, error) {
	p, err := s.owned(ctx, adminID, projectID)
	if err != nil {
		return nil, err
	}
	v := toView(p)
	return &v, nil
}

// RotateAPIKey reemplaza la API key. La anterior deja de validar de inmediato.
func (s *service) RotateAPIKey(ctx context.Context, adminID, projectID string) (*ProjectKeys, error) {
	p, err := s.owned(ctx, adminID, projectID)
	if err != nil {
		return nil, err
	}
	apiKey, apiHash, err := s.newAPIKey()
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.Projects().UpdateAPIKeyHash(ctx, p.ID, apiHash); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}
	logger.From(ctx).Info("api key rotated", logger.Component("admin.projects"), logger.ProjectID(p.ID))
	return &ProjectKeys{Success: true, ProjectID: p.ID, APIKey: apiKey, ClientKey: p.ClientKey}, nil
}

func (s *service) DeleteProject(ctx context.Context, adminID, projectID string) error {
	if _, err := s.owned(ctx, adminID, projectID); err != nil {
		return err
	}
	return common.MapRepo(s.deps.Store.Projects().Delete(ctx, projectID), httperrors.ErrProjectNotFound)
}

// owned devuelve el proyecto sólo si pertenece al admin. Un proyecto ajeno
// se reporta como inexistente.
func (s *service) owned(ctx context.Context, adminID, projectID string) (*repository.Project, error) {
	p, err := s.deps.Store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}
	if p.AdminID != adminID {
		return nil, httperrors.ErrProjectNotFound
	}
	return p, nil
}

func (s *service) newAPIKey() (plain, hash string, err error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", "", httperrors.ErrInternalServerError.WithCause(err)
	}
	plain = apiKeyPrefix + raw
	hash, err = s.deps.Hasher.Hash(plain)
	if err != nil {
		return "", "", httperrors.ErrInternalServerError.WithCause(err)
	}
	return plain, hash, nil
}

func toView(p *repository.Project) ProjectView {
	return ProjectView{ID: p.ID, Name: p.Name, ClientKey: p.ClientKey, CreatedAt: p.CreatedAt}
}
