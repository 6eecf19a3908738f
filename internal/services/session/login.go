package session

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
)

// LoginUser autentica email+password dentro de un proyecto.
// Las ramas de NotFound corren una verificación dummy para igualar tiempos.
func (m *manager) LoginUser(ctx context.Context, in LoginUserInput) (res *LoginResult, err error) {
	defer func() { m.observe(repository.AuthPassword, err) }()

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("LoginUser"),
	)

	in.Email = normEmail(in.Email)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.Email == "" || in.Password == "" || in.ProjectID == "" {
		return nil, httperrors.ErrMissingFields
	}
	log = log.With(logger.ProjectID(in.ProjectID))

	users := m.deps.Store.Users()
	u, err := users.GetByEmail(ctx, in.Email)
	if err != nil {
		m.deps.Hasher.DummyVerify(in.Password)
		log.Debug("user not found")
		return nil, common.MapRepo(err, httperrors.ErrUserNotFound)
	}

	mb, err := users.GetMembership(ctx, u.ID, in.ProjectID)
	if err != nil {
		m.deps.Hasher.DummyVerify(in.Password)
		log.Debug("membership not found", logger.UserID(u.ID))
		return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
	}

	if mb.PasswordHash == "" {
		m.deps.Hasher.DummyVerify(in.Password)
		return nil, httperrors.ErrPasswordNotSet
	}
	if !m.deps.Hasher.Verify(in.Password, mb.PasswordHash) {
		log.Debug("password check failed", logger.UserID(u.ID))
		return nil, httperrors.ErrInvalidCredentials
	}

	sess, err := m.minter.ForUser(ctx, u, mb, repository.AuthPassword, m.deps.TTL.UserAccess)
	if err != nil {
		log.Error("issue session failed", logger.Err(err))
		return nil, err
	}
	m.touchMembership(ctx, u.ID, in.ProjectID)

	log.Info("user logged in", logger.UserID(u.ID))
	return userResult(sess, u, mb), nil
}

// LoginAdmin autentica un administrador. No hay scoping por proyecto.
func (m *manager) LoginAdmin(ctx context.Context, in LoginAdminInput) (res *LoginResult, err error) {
	defer func() { m.observe(repository.AuthPassword, err) }()

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("LoginAdmin"),
	)

	in.Email = normEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, httperrors.ErrMissingFields
	}

	a, err := m.deps.Store.Admins().GetByEmail(ctx, in.Email)
	if err != nil {
		m.deps.Hasher.DummyVerify(in.Password)
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}
	if a.PasswordHash == "" {
		m.deps.Hasher.DummyVerify(in.Password)
		return nil, httperrors.ErrPasswordNotSet
	}
	if !m.deps.Hasher.Verify(in.Password, a.PasswordHash) {
		log.Debug("password check failed", logger.AdminID(a.ID))
		return nil, httperrors.ErrInvalidCredentials
	}

	sess, err := m.minter.ForAdmin(ctx, a, repository.AuthPassword, m.deps.TTL.AdminAccess)
	if err != nil {
		log.Error("issue session failed", logger.Err(err))
		return nil, err
	}

	adminID := a.ID
	now := m.deps.Now()
	m.deps.Dispatcher.Go(ctx, "admin.last_login", func(ctx context.Context) error {
		return m.deps.Store.Admins().Update(ctx, adminID, repository.UpdateAdminInput{LastLoginAt: &now})
	})

	log.Info("admin logged in", logger.AdminID(a.ID))
	return adminResult(sess, a), nil
}

// RegisterUser da de alta un usuario en un proyecto. Si el email ya existe en
// otro proyecto se reutiliza la identidad y sólo se crea la membresía.
func (m *manager) RegisterUser(ctx context.Context, in RegisterUserInput) (res *LoginResult, err error) {
	defer func() { m.observe(repository.AuthPassword, err) }()

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("RegisterUser"),
	)

	in.Email = normEmail(in.Email)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	if in.Email == "" || in.Password == "" || in.ProjectID == "" {
		return nil, httperrors.ErrMissingFields
	}
	if reasons := m.deps.Policy.Validate(in.Password); len(reasons) > 0 {
		return nil, httperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, ","))
	}
	if _, err := m.deps.Store.Projects().GetByID(ctx, in.ProjectID); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}

	users := m.deps.Store.Users()
	u, err := m.findOrCreateUser(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if _, err := users.GetMembership(ctx, u.ID, in.ProjectID); err == nil {
		return nil, httperrors.ErrEmailAlreadyInUse
	} else if !repository.IsNotFound(err) {
		return nil, common.MapRepo(err, nil)
	}

	hash, err := m.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	mb := &repository.Membership{
		UserID:       u.ID,
		ProjectID:    in.ProjectID,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         jwtx.RoleUser,
		PasswordHash: hash,
	}
	if err := users.CreateMembership(ctx, mb); err != nil {
		if repository.IsConflict(err) {
			return nil, httperrors.ErrEmailAlreadyInUse
		}
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}

	sess, err := m.minter.ForUser(ctx, u, mb, repository.AuthPassword, m.deps.TTL.UserAccess)
	if err != nil {
		return nil, err
	}
	log.Info("user registered", logger.UserID(u.ID), logger.ProjectID(in.ProjectID))
	return userResult(sess, u, mb), nil
}

// findOrCreateUser resuelve la identidad global por email. Una carrera con
// otro alta se resuelve releyendo.
func (m *manager) findOrCreateUser(ctx context.Context, email string) (*repository.User, error) {
	users := m.deps.Store.Users()
	u, err := users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, common.MapRepo(err, nil)
	}
	u = &repository.User{ID: uuid.NewString(), Email: email}
	if err := users.Create(ctx, u); err != nil {
		if repository.IsConflict(err) {
			u, err = users.GetByEmail(ctx, email)
			return u, common.MapRepo(err, httperrors.ErrUserNotFound)
		}
		return nil, common.MapRepo(err, nil)
	}
	return u, nil
}

func (m *manager) touchMembership(ctx context.Context, userID, projectID string) {
	now := m.deps.Now()
	m.deps.Dispatcher.Go(ctx, "membership.last_login", func(ctx context.Context) error {
		return m.deps.Store.Users().UpdateMembership(ctx, userID, projectID, repository.UpdateMembershipInput{LastLoginAt: &now})
	})
}

func userResult(s *common.Session, u *repository.User, mb *repository.Membership) *LoginResult {
	role := mb.Role
	if role == "" {
		role = jwtx.RoleUser
	}
	return &LoginResult{
		Success:     true,
		Session:     s,
		PrincipalID: u.ID,
		Email:       u.Email,
		Role:        role,
		ProjectID:   mb.ProjectID,
	}
}

func adminResult(s *common.Session, a *repository.Admin) *LoginResult {
	return &LoginResult{
		Success:     true,
		Session:     s,
		PrincipalID: a.ID,
		Email:       a.Email,
		Role:        jwtx.RoleAdmin,
	}
}
