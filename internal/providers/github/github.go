// Package github implementa el proveedor OAuth de GitHub.
package github

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/tenantauth/internal/providers"
)

const (
	authEndpoint  = "https://github.com/login/oauth/authorize"
	tokenEndpoint = "https://github.com/login/oauth/access_token"
	userEndpoint  = "https://api.github.com/user"
	emailEndpoint = "https://api.github.com/user/emails"
)

var defaultScopes = []string{"read:user", "user:email"}

type Provider struct {
	conf   *oauth2.Config
	user   string
	emails string
	cfg    providers.ProviderConfig
}

// New es la factory registrada bajo providers.GitHub.
func New(cfg providers.ProviderConfig) (providers.Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("github: client id and secret are required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	return &Provider{
		cfg: cfg,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   providers.Pick(cfg.Endpoints.AuthURL, authEndpoint),
				TokenURL:  providers.Pick(cfg.Endpoints.TokenURL, tokenEndpoint),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		user:   providers.Pick(cfg.Endpoints.UserInfoURL, userEndpoint),
		emails: providers.Pick(cfg.Endpoints.EmailsURL, emailEndpoint),
	}, nil
}

func (p *Provider) Name() string                  { return providers.GitHub }
func (p *Provider) AuthorizationEndpoint() string { return p.conf.Endpoint.AuthURL }
func (p *Provider) TokenEndpoint() string         { return p.conf.Endpoint.TokenURL }
func (p *Provider) UserInfoEndpoint() string      { return p.user }
func (p *Provider) Scopes() []string              { return p.conf.Scopes }

func (p *Provider) AuthorizationURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *Provider) ExchangeCodeForTokens(ctx context.Context, code string) (*providers.TokenSet, error) {
	return providers.OAuth2Exchange(ctx, p.Name(), p.conf, p.cfg.HTTP(), code)
}

type ghUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchUserInfo pide /user y /user/emails en paralelo. El email del perfil
// puede venir vacío si el usuario lo tiene privado.
func (p *Provider) FetchUserInfo(ctx context.Context, accessToken string) (*providers.UserProfile, error) {
	var (
		u      ghUser
		emails []ghEmail
	)
	client := p.cfg.HTTP()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return providers.GetJSON(gctx, p.Name(), client, p.user, accessToken, &u)
	})
	g.Go(func() error {
		return providers.GetJSON(gctx, p.Name(), client, p.emails, accessToken, &emails)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	email := pickEmail(emails)
	if email == "" {
		return nil, fmt.Errorf("github: %w", providers.ErrNoVerifiedEmail)
	}

	given, family := splitName(u.Name)
	if given == "" {
		given = u.Login
	}
	return &providers.UserProfile{
		ProviderID:    strconv.FormatInt(u.ID, 10),
		Email:         email,
		EmailVerified: true,
		GivenName:     given,
		FamilyName:    family,
		Picture:       u.AvatarURL,
	}, nil
}

// pickEmail prioriza primary+verified, luego cualquier verified. El email
// público del perfil no cuenta: GitHub no garantiza que sea del usuario.
func pickEmail(emails []ghEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	given, family, _ := strings.Cut(full, " ")
	return given, strings.TrimSpace(family)
}
