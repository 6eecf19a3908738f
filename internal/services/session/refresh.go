package session

import (
	"context"
	"strings"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	tokens "github.com/dropDatabas3/tenantauth/internal/security/token"
)

// Refresh rota el refresh token: el viejo pasa a REVOKED y se emite un par
// nuevo. Reusar un token ya revocado pone en BLACKLISTED todos los activos
// del dueño.
func (m *manager) Refresh(ctx context.Context, in RefreshInput) (res *LoginResult, err error) {
	defer func() { m.observe(repository.AuthRefresh, err) }()

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Refresh"),
	)

	rt, err := m.lookupRefresh(ctx, in)
	if err != nil {
		return nil, err
	}
	repo := m.deps.Store.RefreshTokens()

	switch rt.State {
	case repository.TokenActive:
	case repository.TokenRevoked:
		n, berr := repo.SetStateForOwner(ctx, rt.OwnerKind, rt.OwnerID, rt.ProjectID, repository.TokenActive, repository.TokenBlacklisted)
		if berr != nil {
			log.Error("blacklist after reuse failed", logger.Err(berr))
		}
		log.Warn("revoked refresh token reused", logger.String("owner_id", rt.OwnerID), logger.Count(int(n)))
		return nil, httperrors.ErrRefreshTokenInvalid
	case repository.TokenExpired:
		return nil, httperrors.ErrRefreshTokenExpired
	default:
		return nil, httperrors.ErrRefreshTokenInvalid
	}

	if !rt.ExpiresAt.After(m.deps.Now()) {
		if err := repo.SetState(ctx, rt.ID, repository.TokenActive, repository.TokenExpired); err != nil && !repository.IsNotFound(err) {
			return nil, common.MapRepo(err, nil)
		}
		return nil, httperrors.ErrRefreshTokenExpired
	}

	// El CAS decide quién rota si llegan dos refresh con el mismo token.
	if err := repo.SetState(ctx, rt.ID, repository.TokenActive, repository.TokenRevoked); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrRefreshTokenInvalid.WithDetail("rotado en paralelo"))
	}

	switch rt.OwnerKind {
	case repository.OwnerAdmin:
		a, err := m.deps.Store.Admins().GetByID(ctx, rt.OwnerID)
		if err != nil {
			return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
		}
		sess, err := m.minter.ForAdmin(ctx, a, repository.AuthRefresh, m.deps.TTL.AdminAccess)
		if err != nil {
			return nil, err
		}
		return adminResult(sess, a), nil
	default:
		users := m.deps.Store.Users()
		u, err := users.GetByID(ctx, rt.OwnerID)
		if err != nil {
			return nil, common.MapRepo(err, httperrors.ErrUserNotFound)
		}
		mb, err := users.GetMembership(ctx, u.ID, rt.ProjectID)
		if err != nil {
			return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
		}
		sess, err := m.minter.ForUser(ctx, u, mb, repository.AuthRefresh, m.deps.TTL.UserAccess)
		if err != nil {
			return nil, err
		}
		return userResult(sess, u, mb), nil
	}
}

// Logout revoca el refresh token. Un token que ya no está activo no es error.
func (m *manager) Logout(ctx context.Context, in RefreshInput) (*Result, error) {
	rt, err := m.lookupRefresh(ctx, in)
	if err != nil {
		return nil, err
	}
	if rt.State == repository.TokenActive {
		err := m.deps.Store.RefreshTokens().SetState(ctx, rt.ID, repository.TokenActive, repository.TokenRevoked)
		if err != nil && !repository.IsNotFound(err) {
			return nil, common.MapRepo(err, nil)
		}
	}
	return &Result{Success: true}, nil
}

// lookupRefresh resuelve el token y lo descarta si no es del ámbito pedido.
// El descarte pasa antes de tocar estados: un token ajeno no rota ni dispara
// el blacklist de su dueño.
func (m *manager) lookupRefresh(ctx context.Context, in RefreshInput) (*repository.RefreshToken, error) {
	raw := strings.TrimSpace(in.Token)
	if raw == "" {
		return nil, httperrors.ErrRefreshTokenInvalid
	}
	rt, err := m.deps.Store.RefreshTokens().GetByHash(ctx, tokens.SHA256Base64URL(raw))
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrRefreshTokenInvalid)
	}
	if rt.OwnerKind != in.Owner || rt.ProjectID != strings.TrimSpace(in.ProjectID) {
		logger.From(ctx).Warn("refresh token fuera de ámbito",
			logger.Component("session"),
			logger.String("owner_kind", string(rt.OwnerKind)),
			logger.ProjectID(in.ProjectID),
		)
		return nil, httperrors.ErrRefreshTokenInvalid
	}
	return rt, nil
}

// ChangeUserPassword exige la contraseña actual y revoca las sesiones del
// usuario en ese proyecto.
func (m *manager) ChangeUserPassword(ctx context.Context, in ChangePasswordInput) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("ChangeUserPassword"),
	)
	if in.UserID == "" || in.ProjectID == "" || in.CurrentPassword == "" || in.NewPassword == "" {
		return nil, httperrors.ErrMissingFields
	}

	users := m.deps.Store.Users()
	mb, err := users.GetMembership(ctx, in.UserID, in.ProjectID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
	}
	if mb.PasswordHash == "" {
		return nil, httperrors.ErrPasswordNotSet
	}
	if !m.deps.Hasher.Verify(in.CurrentPassword, mb.PasswordHash) {
		return nil, httperrors.ErrInvalidCredentials
	}
	if reasons := m.deps.Policy.Validate(in.NewPassword); len(reasons) > 0 {
		return nil, httperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, ","))
	}

	hash, err := m.deps.Hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	if err := users.UpdateMembership(ctx, in.UserID, in.ProjectID, repository.UpdateMembershipInput{PasswordHash: &hash}); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
	}

	n, err := m.deps.Store.RefreshTokens().SetStateForOwner(ctx, repository.OwnerUser, in.UserID, in.ProjectID, repository.TokenActive, repository.TokenRevoked)
	if err != nil {
		return nil, common.MapRepo(err, nil)
	}
	log.Info("password changed", logger.UserID(in.UserID), logger.ProjectID(in.ProjectID), logger.Count(int(n)))
	return &Result{Success: true}, nil
}

// ChangeAdminEmail cambia el email del admin previa verificación de
// contraseña. El email nuevo queda sin verificar y se revocan sus sesiones.
func (m *manager) ChangeAdminEmail(ctx context.Context, in ChangeEmailInput) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("ChangeAdminEmail"),
	)
	in.NewEmail = normEmail(in.NewEmail)
	if in.AdminID == "" || in.Password == "" || in.NewEmail == "" {
		return nil, httperrors.ErrMissingFields
	}

	admins := m.deps.Store.Admins()
	a, err := admins.GetByID(ctx, in.AdminID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}
	if !m.deps.Hasher.Verify(in.Password, a.PasswordHash) {
		return nil, httperrors.ErrInvalidCredentials
	}
	if strings.EqualFold(a.Email, in.NewEmail) {
		return &Result{Success: true}, nil
	}

	verified := false
	if err := admins.Update(ctx, a.ID, repository.UpdateAdminInput{Email: &in.NewEmail, Verified: &verified}); err != nil {
		if repository.IsConflict(err) {
			return nil, httperrors.ErrEmailAlreadyInUse
		}
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}

	n, err := m.deps.Store.RefreshTokens().SetStateForOwner(ctx, repository.OwnerAdmin, a.ID, "", repository.TokenActive, repository.TokenRevoked)
	if err != nil {
		return nil, common.MapRepo(err, nil)
	}
	log.Info("admin email changed", logger.AdminID(a.ID), logger.Count(int(n)))
	return &Result{Success: true}, nil
}
