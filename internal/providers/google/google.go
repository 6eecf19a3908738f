// Package google implementa el proveedor OAuth de Google.
package google

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/tenantauth/internal/providers"
)

const (
	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	userInfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"
)

var defaultScopes = []string{"openid", "email", "profile"}

type Provider struct {
	conf     *oauth2.Config
	userInfo string
	cfg      providers.ProviderConfig
}

// New es la factory registrada bajo providers.Google.
func New(cfg providers.ProviderConfig) (providers.Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google: client id and secret are required")
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
		userInfo: providers.Pick(cfg.Endpoints.UserInfoURL, userInfoEndpoint),
	}, nil
}

func (p *Provider) Name() string                  { return providers.Google }
func (p *Provider) AuthorizationEndpoint() string { return p.conf.Endpoint.AuthURL }
func (p *Provider) TokenEndpoint() string         { return p.conf.Endpoint.TokenURL }
func (p *Provider) UserInfoEndpoint() string      { return p.userInfo }
func (p *Provider) Scopes() []string              { return p.conf.Scopes }

func (p *Provider) AuthorizationURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *Provider) ExchangeCodeForTokens(ctx context.Context, code string) (*providers.TokenSet, error) {
	return providers.OAuth2Exchange(ctx, p.Name(), p.conf, p.cfg.HTTP(), code)
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func (p *Provider) FetchUserInfo(ctx context.Context, accessToken string) (*providers.UserProfile, error) {
	var u userInfo
	if err := providers.GetJSON(ctx, p.Name(), p.cfg.HTTP(), p.userInfo, accessToken, &u); err != nil {
		return nil, err
	}
	if u.Email == "" {
		return nil, errors.New("google: userinfo without email")
	}
	return &providers.UserProfile{
		ProviderID:    u.Sub,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		GivenName:     u.GivenName,
		FamilyName:    u.FamilyName,
		Picture:       u.Picture,
	}, nil
}
