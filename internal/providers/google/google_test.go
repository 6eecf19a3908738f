package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/providers"
)

func TestGoogleFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "ya29", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer ya29", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "1001", "email": "ana@example.com", "email_verified": true,
			"given_name": "Ana", "family_name": "Pérez",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := New(providers.ProviderConfig{
		ClientID:     "gid",
		ClientSecret: "gsecret",
		RedirectURI:  "https://app.example.com/cb",
		HTTPClient:   srv.Client(),
		Endpoints: providers.Endpoints{
			TokenURL:    srv.URL + "/token",
			UserInfoURL: srv.URL + "/userinfo",
		},
	})
	require.NoError(t, err)
	require.Equal(t, authEndpoint, p.AuthorizationEndpoint())

	u, err := url.Parse(p.AuthorizationURL("xyz"))
	require.NoError(t, err)
	require.Equal(t, "openid email profile", u.Query().Get("scope"))
	require.Equal(t, "xyz", u.Query().Get("state"))

	tok, err := p.ExchangeCodeForTokens(context.Background(), "c")
	require.NoError(t, err)

	prof, err := p.FetchUserInfo(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", prof.Email)
	require.True(t, prof.EmailVerified)
	require.Equal(t, "Pérez", prof.FamilyName)
}

func TestUserInfoNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	p, err := New(providers.ProviderConfig{
		ClientID: "a", ClientSecret: "b", HTTPClient: srv.Client(),
		Endpoints: providers.Endpoints{UserInfoURL: srv.URL},
	})
	require.NoError(t, err)

	_, err = p.FetchUserInfo(context.Background(), "t")
	var ee *providers.ExchangeError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, http.StatusUnauthorized, ee.Status)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(providers.ProviderConfig{ClientID: "only-id"})
	require.Error(t, err)
}
