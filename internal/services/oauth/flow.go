package oauth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/metrics"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/providers"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	tokens "github.com/dropDatabas3/tenantauth/internal/security/token"
)

// RegisterProvider cifra client id y secret y los guarda. Registrar de nuevo
// el mismo proveedor reemplaza las credenciales.
func (s *service) RegisterProvider(ctx context.Context, in RegisterProviderInput) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth"), logger.Op("RegisterProvider"))

	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.ClientSecret = strings.TrimSpace(in.ClientSecret)
	if in.ProjectID == "" || in.Provider == "" || in.ClientID == "" || in.ClientSecret == "" {
		return nil, httperrors.ErrMissingFields
	}
	if !s.deps.Registry.Supports(in.Provider) {
		return nil, s.unknownProvider(in.Provider)
	}
	if _, err := s.deps.Store.Projects().GetByID(ctx, in.ProjectID); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}

	idEnc, err := s.deps.Vault.Encrypt(in.ClientID)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	secretEnc, err := s.deps.Vault.Encrypt(in.ClientSecret)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}

	if err := s.deps.Store.OAuthProviders().Upsert(ctx, &repository.OAuthProviderConfig{
		ID:              uuid.NewString(),
		ProjectID:       in.ProjectID,
		Provider:        in.Provider,
		ClientIDEnc:     idEnc,
		ClientSecretEnc: secretEnc,
	}); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProjectNotFound)
	}
	s.deps.Registry.Invalidate(in.ProjectID)

	log.Info("oauth provider registered", logger.ProjectID(in.ProjectID), logger.Provider(in.Provider))
	return &Result{Success: true}, nil
}

func (s *service) ListProviders(ctx context.Context, projectID string) ([]ProviderView, error) {
	cfgs, err := s.deps.Store.OAuthProviders().ListByProject(ctx, projectID)
	if err != nil {
		return nil, common.MapRepo(err, nil)
	}
	out := make([]ProviderView, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, ProviderView{Provider: c.Provider, UpdatedAt: c.UpdatedAt})
	}
	return out, nil
}

func (s *service) DeleteProvider(ctx context.Context, projectID, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := s.deps.Store.OAuthProviders().Delete(ctx, projectID, provider); err != nil {
		return common.MapRepo(err, httperrors.ErrProviderNotConfigured)
	}
	s.deps.Registry.Invalidate(projectID)
	return nil
}

// AuthorizationURL crea un state de un solo uso y arma la URL del proveedor.
// Se persiste el hash del state; el valor en claro sólo viaja en la URL.
func (s *service) AuthorizationURL(ctx context.Context, in AuthorizationInput) (*AuthorizationResult, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	if in.ProjectID == "" || in.Provider == "" {
		return nil, httperrors.ErrMissingFields
	}
	if !s.deps.Registry.Supports(in.Provider) {
		return nil, s.unknownProvider(in.Provider)
	}

	p, err := s.resolve(ctx, in.ProjectID, in.Provider)
	if err != nil {
		return nil, err
	}

	state, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	if err := s.deps.Store.OAuthStates().Create(ctx, &repository.OAuthState{
		StateHash: tokens.SHA256Base64URL(state),
		Provider:  in.Provider,
		ProjectID: in.ProjectID,
		ExpiresAt: s.deps.Now().Add(s.deps.TTL.OAuthState),
	}); err != nil {
		return nil, common.MapRepo(err, nil)
	}

	return &AuthorizationResult{Success: true, URL: p.AuthorizationURL(state)}, nil
}

// HandleCallback consume el state, canjea el code, trae el perfil y emite
// la sesión. El usuario se crea o se vincula por email.
func (s *service) HandleCallback(ctx context.Context, in CallbackInput) (res *CallbackResult, err error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth"), logger.Op("HandleCallback"))

	in.Code = strings.TrimSpace(in.Code)
	in.State = strings.TrimSpace(in.State)
	if in.Code == "" || in.State == "" {
		return nil, httperrors.ErrMissingFields
	}

	// Take borra el state: un segundo callback con el mismo valor no lo encuentra.
	st, err := s.deps.Store.OAuthStates().Take(ctx, tokens.SHA256Base64URL(in.State))
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrStateNotFound)
	}
	if !st.ExpiresAt.After(s.deps.Now()) {
		return nil, httperrors.ErrStateExpired
	}

	method := authMethodFor(st.Provider)
	log = log.With(logger.ProjectID(st.ProjectID), logger.Provider(st.Provider))
	defer func() {
		metrics.AuthAttempts.WithLabelValues(string(method), metrics.Result(err, isClientErr)).Inc()
	}()

	p, err := s.resolve(ctx, st.ProjectID, st.Provider)
	if err != nil {
		return nil, err
	}

	tok, err := p.ExchangeCodeForTokens(ctx, in.Code)
	metrics.OAuthExchanges.WithLabelValues(st.Provider, metrics.Result(err, nil)).Inc()
	if err != nil {
		log.Warn("code exchange failed", logger.Err(err))
		return nil, providerErr(err)
	}
	profile, err := p.FetchUserInfo(ctx, tok.AccessToken)
	if err != nil {
		log.Warn("userinfo failed", logger.Err(err))
		return nil, providerErr(err)
	}

	u, mb, created, err := s.link(ctx, st.ProjectID, profile)
	if err != nil {
		return nil, err
	}

	sess, err := s.minter.ForUser(ctx, u, mb, method, s.deps.TTL.UserAccess)
	if err != nil {
		return nil, err
	}
	log.Info("oauth login", logger.UserID(u.ID), logger.AuthMethod(string(method)))
	return &CallbackResult{
		Success:   true,
		Session:   sess,
		UserID:    u.ID,
		Email:     u.Email,
		ProjectID: st.ProjectID,
		Provider:  st.Provider,
		Created:   created,
	}, nil
}

// link resuelve usuario y membresía a partir del perfil del proveedor.
// La membresía nueva nace verificada si el proveedor verificó el email. Un
// email sin verificar nunca se vincula a un usuario existente.
func (s *service) link(ctx context.Context, projectID string, prof *providers.UserProfile) (*repository.User, *repository.Membership, bool, error) {
	users := s.deps.Store.Users()
	addr := strings.ToLower(strings.TrimSpace(prof.Email))
	if addr == "" {
		return nil, nil, false, httperrors.ErrEmailNotVerified.WithDetail("el proveedor no informó email")
	}

	u, err := users.GetByEmail(ctx, addr)
	created := false
	switch {
	case err == nil:
		if !prof.EmailVerified {
			return nil, nil, false, httperrors.ErrEmailNotVerified
		}
	case repository.IsNotFound(err):
		u = &repository.User{ID: uuid.NewString(), Email: addr}
		if err := users.Create(ctx, u); err != nil {
			if !repository.IsConflict(err) {
				return nil, nil, false, common.MapRepo(err, nil)
			}
			if !prof.EmailVerified {
				return nil, nil, false, httperrors.ErrEmailNotVerified
			}
			if u, err = users.GetByEmail(ctx, addr); err != nil {
				return nil, nil, false, common.MapRepo(err, httperrors.ErrUserNotFound)
			}
		} else {
			created = true
		}
	default:
		return nil, nil, false, common.MapRepo(err, nil)
	}

	mb, err := users.GetMembership(ctx, u.ID, projectID)
	switch {
	case err == nil:
		if !mb.Verified && prof.EmailVerified {
			v := true
			if err := users.UpdateMembership(ctx, u.ID, projectID, repository.UpdateMembershipInput{Verified: &v}); err != nil {
				return nil, nil, false, common.MapRepo(err, httperrors.ErrMembershipNotFound)
			}
			mb.Verified = true
		}
		return u, mb, created, nil
	case repository.IsNotFound(err):
		mb = &repository.Membership{
			UserID:    u.ID,
			ProjectID: projectID,
			FirstName: prof.GivenName,
			LastName:  prof.FamilyName,
			Role:      jwtx.RoleUser,
			Verified:  prof.EmailVerified,
		}
		if err := users.CreateMembership(ctx, mb); err != nil {
			if !repository.IsConflict(err) {
				return nil, nil, false, common.MapRepo(err, httperrors.ErrProjectNotFound)
			}
			if mb, err = users.GetMembership(ctx, u.ID, projectID); err != nil {
				return nil, nil, false, common.MapRepo(err, httperrors.ErrMembershipNotFound)
			}
		}
		return u, mb, true, nil
	default:
		return nil, nil, false, common.MapRepo(err, nil)
	}
}

func isClientErr(err error) bool {
	return httperrors.KindOf(err) != httperrors.KindInternal
}

// unknownProvider lista en el detalle los proveedores que sí hay registrados.
func (s *service) unknownProvider(name string) error {
	return httperrors.ErrUnknownProvider.WithDetailf("%s (soportados: %s)",
		name, strings.Join(s.deps.Registry.Names(), ", "))
}
