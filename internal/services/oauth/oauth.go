// Package oauth orquesta el flujo authorization-code contra proveedores
// externos: registro de credenciales, URL de autorización y callback.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/providers"
	"github.com/dropDatabas3/tenantauth/internal/security/secretbox"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	store "github.com/dropDatabas3/tenantauth/internal/store"
)

// Deps contiene las dependencias del orquestador.
type Deps struct {
	Store    store.Connection
	Vault    *secretbox.Vault
	Registry *providers.Registry
	Issuer   *jwtx.Issuer
	TTL      common.TTLs
	// CallbackBase es la URL pública del servicio; el redirect_uri queda
	// {CallbackBase}/v1/oauth/{provider}/callback.
	CallbackBase string
	HTTPTimeout  time.Duration
	// Endpoints permite redirigir proveedores (tests, enterprise). Opcional.
	Endpoints map[string]providers.Endpoints
	Now       func() time.Time
}

// Service define las operaciones del orquestador OAuth.
type Service interface {
	RegisterProvider(ctx context.Context, in RegisterProviderInput) (*Result, error)
	ListProviders(ctx context.Context, projectID string) ([]ProviderView, error)
	DeleteProvider(ctx context.Context, projectID, provider string) error
	AuthorizationURL(ctx context.Context, in AuthorizationInput) (*AuthorizationResult, error)
	HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error)
}

type RegisterProviderInput struct {
	ProjectID    string `json:"projectId"`
	Provider     string `json:"provider"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type AuthorizationInput struct {
	ProjectID string `json:"projectId"`
	Provider  string `json:"provider"`
}

type CallbackInput struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type Result struct {
	Success bool `json:"success"`
}

type ProviderView struct {
	Provider  string    `json:"provider"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AuthorizationResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type CallbackResult struct {
	Success bool `json:"success"`
	*common.Session
	UserID    string `json:"id"`
	Email     string `json:"email"`
	ProjectID string `json:"projectId"`
	Provider  string `json:"provider"`
	Created   bool   `json:"created"`
}

type service struct {
	deps   Deps
	minter *common.Minter
	client *http.Client
}

func NewService(d Deps) Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.HTTPTimeout <= 0 {
		d.HTTPTimeout = 10 * time.Second
	}
	d.TTL = d.TTL.WithDefaults()
	return &service{
		deps: d,
		minter: &common.Minter{
			Issuer:  d.Issuer,
			Refresh: d.Store.RefreshTokens(),
			TTL:     d.TTL.Refresh,
			Now:     d.Now,
		},
		client: &http.Client{Timeout: d.HTTPTimeout},
	}
}

// authMethodFor devuelve el tag de refresh token del proveedor.
func authMethodFor(provider string) repository.AuthMethod {
	switch provider {
	case providers.Google:
		return repository.AuthGoogle
	case providers.GitHub:
		return repository.AuthGitHub
	default:
		return repository.AuthMethod(strings.ToUpper(provider) + "_OAUTH")
	}
}

func (s *service) redirectURI(provider string) string {
	return strings.TrimRight(s.deps.CallbackBase, "/") + "/v1/oauth/" + provider + "/callback"
}

// resolve carga y descifra la config del proyecto y devuelve la instancia
// del proveedor.
func (s *service) resolve(ctx context.Context, projectID, provider string) (providers.Provider, error) {
	cfg, err := s.deps.Store.OAuthProviders().Get(ctx, projectID, provider)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrProviderNotConfigured)
	}
	clientID, err := s.deps.Vault.Decrypt(cfg.ClientIDEnc)
	if err != nil {
		return nil, httperrors.ErrDecryption.WithCause(err)
	}
	secret, err := s.deps.Vault.Decrypt(cfg.ClientSecretEnc)
	if err != nil {
		return nil, httperrors.ErrDecryption.WithCause(err)
	}

	p, err := s.deps.Registry.Get(projectID, provider, providers.ProviderConfig{
		ClientID:     clientID,
		ClientSecret: secret,
		RedirectURI:  s.redirectURI(provider),
		HTTPClient:   s.client,
		Endpoints:    s.deps.Endpoints[provider],
	})
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	return p, nil
}

// providerErr convierte fallas del proveedor en InternalError con status y
// cuerpo en el detalle.
func providerErr(err error) error {
	if errors.Is(err, providers.ErrNoVerifiedEmail) {
		return httperrors.ErrEmailNotVerified.WithCause(err)
	}
	var ee *providers.ExchangeError
	if errors.As(err, &ee) {
		return httperrors.ErrProviderExchange.
			WithDetail(fmt.Sprintf("status=%d body=%s", ee.Status, ee.Body)).
			WithCause(err)
	}
	return httperrors.ErrProviderExchange.WithCause(err)
}
