package session

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dropDatabas3/tenantauth/internal/cache"
	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/email"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
)

// CreateMagicLink firma un token {email, projectId} y lo envía como link
// {redirectBase}/verify?token=... Un error del mailer es error de la operación.
func (m *manager) CreateMagicLink(ctx context.Context, in MagicLinkInput) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("CreateMagicLink"),
	)

	in.Email = normEmail(in.Email)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.RedirectBase = strings.TrimSpace(in.RedirectBase)
	if in.Email == "" || in.ProjectID == "" || in.RedirectBase == "" {
		return nil, httperrors.ErrMissingFields
	}
	base, err := url.Parse(in.RedirectBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, httperrors.ErrBadRequest.WithDetail("redirectBase inválido")
	}

	if _, err := m.deps.Store.Projects().GetByID(ctx, in.ProjectID); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}

	token, jti, err := m.deps.Issuer.SignMagicLink(in.Email, in.ProjectID, m.deps.TTL.MagicLinkToken)
	if err != nil {
		return nil, httperrors.ErrTokenIssueFailed.WithCause(err)
	}
	if err := m.deps.Cache.Set(ctx, magicLinkKey(jti), in.ProjectID, m.deps.TTL.MagicLinkToken); err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	link := strings.TrimRight(in.RedirectBase, "/") + "/verify?token=" + url.QueryEscape(token)

	html, err := email.RenderMagicLink(email.MagicLinkVars{Link: link, TTL: m.deps.TTL.MagicLinkToken.String()})
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	if err := m.deps.Mailer.Send(ctx, email.Message{
		To:      []string{in.Email},
		Subject: "Tu link de acceso",
		HTML:    html,
	}); err != nil {
		log.Error("magic link delivery failed", logger.Email(in.Email), logger.Err(err))
		return nil, httperrors.ErrMailDelivery.WithCause(err)
	}

	log.Info("magic link sent", logger.ProjectID(in.ProjectID), logger.Email(in.Email))
	return &Result{Success: true}, nil
}

// VerifyMagicLink canjea el token por una sesión. Cada token se canjea una
// sola vez. La membresía debe existir; si no estaba verificada se marca.
func (m *manager) VerifyMagicLink(ctx context.Context, in VerifyMagicLinkInput) (res *LoginResult, err error) {
	defer func() { m.observe(repository.AuthMagicLink, err) }()

	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("VerifyMagicLink"),
	)

	ml, err := m.deps.Issuer.VerifyMagicLink(strings.TrimSpace(in.Token))
	if err != nil {
		return nil, httperrors.ErrTokenInvalid.WithCause(err)
	}
	if pid := strings.TrimSpace(in.ProjectID); pid != "" && pid != ml.ProjectID {
		return nil, httperrors.ErrForbidden.WithDetail("el token pertenece a otro proyecto")
	}

	// GetAndDelete decide el único canje válido, también entre réplicas.
	if _, err := m.deps.Cache.GetAndDelete(ctx, magicLinkKey(ml.JTI)); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, httperrors.ErrTokenInvalid.WithDetail("magic link ya utilizado")
		}
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}

	projectID := ml.ProjectID
	if _, err := m.deps.Store.Projects().GetByID(ctx, projectID); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}

	users := m.deps.Store.Users()
	u, err := users.GetByEmail(ctx, ml.Email)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
	}
	mb, err := users.GetMembership(ctx, u.ID, projectID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
	}

	if !mb.Verified {
		verified := true
		if err := users.UpdateMembership(ctx, u.ID, projectID, repository.UpdateMembershipInput{Verified: &verified}); err != nil {
			return nil, common.MapRepo(err, httperrors.ErrMembershipNotFound)
		}
		mb.Verified = true
		log.Info("membership verified via magic link", logger.UserID(u.ID))
	}

	sess, err := m.minter.ForUser(ctx, u, mb, repository.AuthMagicLink, m.deps.TTL.MagicLinkAccess)
	if err != nil {
		return nil, err
	}
	m.touchMembership(ctx, u.ID, projectID)
	return userResult(sess, u, mb), nil
}

func magicLinkKey(jti string) string { return "magiclink:" + jti }
