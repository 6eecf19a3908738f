// Package providers define la estrategia por proveedor OAuth.
//
// Cada proveedor vive en su subpaquete y se registra en el Registry con una
// factory. El orquestador OAuth sólo conoce la interfaz Provider.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Nombres soportados. Son también el valor persistido en OAuthProviderConfig.
const (
	Google = "google"
	GitHub = "github"
)

// Provider es la estrategia de un proveedor OAuth 2.0.
type Provider interface {
	Name() string
	AuthorizationEndpoint() string
	TokenEndpoint() string
	UserInfoEndpoint() string
	Scopes() []string

	// AuthorizationURL arma la URL a la que se redirige al usuario.
	AuthorizationURL(state string) string
	// ExchangeCodeForTokens canjea el code. Un rechazo del proveedor es *ExchangeError.
	ExchangeCodeForTokens(ctx context.Context, code string) (*TokenSet, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*UserProfile, error)
}

// Endpoints permite apuntar un proveedor a otro host (tests, GitHub Enterprise).
// Los campos vacíos usan el default del proveedor.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	EmailsURL   string
}

// ProviderConfig son las credenciales ya descifradas.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Endpoints    Endpoints
	HTTPClient   *http.Client
}

// HTTP devuelve el cliente configurado o uno con timeout de 10s.
func (c ProviderConfig) HTTP() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// TokenSet son los tokens devueltos por el proveedor.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// UserProfile es el perfil normalizado de cualquier proveedor.
type UserProfile struct {
	ProviderID    string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// ErrNoVerifiedEmail: la cuenta del proveedor no tiene un email verificado.
var ErrNoVerifiedEmail = errors.New("providers: no verified email on account")

// ExchangeError es una respuesta no 2xx del proveedor. Conserva status y
// cuerpo para diagnóstico.
type ExchangeError struct {
	Provider string
	Endpoint string
	Status   int
	Body     string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %s respondió %d: %s", e.Provider, e.Endpoint, e.Status, e.Body)
}
