package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/providers"
)

func newServer(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		require.Equal(t, "the-code", r.Form.Get("code"))
		require.Equal(t, "cid", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_abc", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer gho_abc", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "octo", "name": "Mona Lisa Octocat", "email": ""})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "other@example.com", "primary": false, "verified": false},
			{"email": "mona@example.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) providers.Provider {
	t.Helper()
	p, err := New(providers.ProviderConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example.com/callback",
		HTTPClient:   srv.Client(),
		Endpoints: providers.Endpoints{
			AuthURL:     srv.URL + "/login/oauth/authorize",
			TokenURL:    srv.URL + "/login/oauth/access_token",
			UserInfoURL: srv.URL + "/user",
			EmailsURL:   srv.URL + "/user/emails",
		},
	})
	require.NoError(t, err)
	return p
}

func TestExchangeAndFetch(t *testing.T) {
	srv := newServer(t, http.StatusOK)
	p := newProvider(t, srv)
	ctx := context.Background()

	tok, err := p.ExchangeCodeForTokens(ctx, "the-code")
	require.NoError(t, err)
	require.Equal(t, "gho_abc", tok.AccessToken)

	prof, err := p.FetchUserInfo(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "42", prof.ProviderID)
	require.Equal(t, "mona@example.com", prof.Email)
	require.True(t, prof.EmailVerified)
	require.Equal(t, "Mona", prof.GivenName)
	require.Equal(t, "Lisa Octocat", prof.FamilyName)
}

func TestExchangeRejectedCarriesStatus(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest)
	p := newProvider(t, srv)

	_, err := p.ExchangeCodeForTokens(context.Background(), "nope")
	require.Error(t, err)

	var ee *providers.ExchangeError
	require.True(t, errors.As(err, &ee))
	require.Equal(t, http.StatusBadRequest, ee.Status)
	require.Contains(t, ee.Body, "bad_verification_code")
}

func TestAuthorizationURL(t *testing.T) {
	srv := newServer(t, http.StatusOK)
	p := newProvider(t, srv)

	raw := p.AuthorizationURL("st-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "cid", q.Get("client_id"))
	require.Equal(t, "st-1", q.Get("state"))
	require.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	require.Equal(t, "read:user user:email", q.Get("scope"))
}

func TestPickEmail(t *testing.T) {
	require.Empty(t, pickEmail(nil))
	require.Empty(t, pickEmail([]ghEmail{{Email: "a@x.com", Primary: true}}))
	require.Equal(t, "b@x.com", pickEmail([]ghEmail{{Email: "a@x.com", Primary: true}, {Email: "b@x.com", Verified: true}}))
	require.Equal(t, "c@x.com", pickEmail([]ghEmail{{Email: "b@x.com", Verified: true}, {Email: "c@x.com", Primary: true, Verified: true}}))
}

func TestFetchUserInfoWithoutVerifiedEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 9, "login": "mallory", "email": "victim@example.com"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "victim@example.com", "primary": true, "verified": false},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, err := newProvider(t, srv).FetchUserInfo(context.Background(), "gho_abc")
	require.ErrorIs(t, err, providers.ErrNoVerifiedEmail)
}
