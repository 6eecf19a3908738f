package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/providers"
	"github.com/dropDatabas3/tenantauth/internal/providers/github"
	"github.com/dropDatabas3/tenantauth/internal/providers/google"
	"github.com/dropDatabas3/tenantauth/internal/security/secretbox"
	tokens "github.com/dropDatabas3/tenantauth/internal/security/token"
	"github.com/dropDatabas3/tenantauth/internal/store/memory"
)

var fastKDF = secretbox.KDFParams{Memory: 1024, Time: 1, Parallelism: 1}

type fixture struct {
	db      *memory.DB
	svc     Service
	issuer  *jwtx.Issuer
	now     time.Time
	project string
	srv     *httptest.Server
	// tokenStatus controla la respuesta del endpoint de token del mock.
	tokenStatus int
	// emails es la respuesta de /emails.
	emails []map[string]any
}

func newFixture(t *testing.T, master string) *fixture {
	t.Helper()
	f := &fixture{
		db:          memory.New(),
		now:         time.Now(),
		tokenStatus: http.StatusOK,
		emails:      []map[string]any{{"email": "Ana@Example.com", "primary": true, "verified": true}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_1", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "login": "ana", "name": "Ana Gómez"})
	})
	mux.HandleFunc("/emails", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(f.emails)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	ks, err := jwtx.GenerateEd25519()
	require.NoError(t, err)
	f.issuer = jwtx.NewIssuer("test", ks)

	vault, err := secretbox.NewVault(master, "salt-oauth-test", fastKDF)
	require.NoError(t, err)

	reg := providers.NewRegistry()
	reg.Register(providers.Google, google.New)
	reg.Register(providers.GitHub, github.New)

	f.svc = NewService(Deps{
		Store:        f.db,
		Vault:        vault,
		Registry:     reg,
		Issuer:       f.issuer,
		CallbackBase: "https://auth.example.com",
		HTTPTimeout:  2 * time.Second,
		Endpoints: map[string]providers.Endpoints{
			providers.GitHub: {
				TokenURL:    f.srv.URL + "/token",
				UserInfoURL: f.srv.URL + "/user",
				EmailsURL:   f.srv.URL + "/emails",
			},
		},
		Now: func() time.Time { return f.now },
	})

	ctx := context.Background()
	adminID := uuid.NewString()
	require.NoError(t, f.db.Admins().Create(ctx, &repository.Admin{ID: adminID, Email: "owner@x.com"}))
	f.project = uuid.NewString()
	require.NoError(t, f.db.Projects().Create(ctx, &repository.Project{ID: f.project, AdminID: adminID, Name: "Acme", ClientKey: "ck"}))
	return f
}

func (f *fixture) registerGitHub(t *testing.T) {
	t.Helper()
	_, err := f.svc.RegisterProvider(context.Background(), RegisterProviderInput{
		ProjectID: f.project, Provider: "github", ClientID: "cid", ClientSecret: "s|e|c",
	})
	require.NoError(t, err)
}

func (f *fixture) startFlow(t *testing.T) string {
	t.Helper()
	res, err := f.svc.AuthorizationURL(context.Background(), AuthorizationInput{ProjectID: f.project, Provider: "github"})
	require.NoError(t, err)
	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "cid", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "https://auth.example.com/v1/oauth/github/callback", q.Get("redirect_uri"))
	require.NotEmpty(t, q.Get("scope"))
	require.NotEmpty(t, q.Get("state"))
	return q.Get("state")
}

func TestRegisterProvider(t *testing.T) {
	f := newFixture(t, "master")
	ctx := context.Background()

	_, err := f.svc.RegisterProvider(ctx, RegisterProviderInput{ProjectID: f.project, Provider: "myspace", ClientID: "a", ClientSecret: "b"})
	require.Equal(t, httperrors.KindBadRequest, httperrors.KindOf(err))
	var appErr *httperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "myspace (soportados: github, google)", appErr.Detail)

	_, err = f.svc.AuthorizationURL(ctx, AuthorizationInput{ProjectID: f.project, Provider: "myspace"})
	require.ErrorIs(t, err, httperrors.ErrUnknownProvider)

	_, err = f.svc.RegisterProvider(ctx, RegisterProviderInput{ProjectID: "missing", Provider: "github", ClientID: "a", ClientSecret: "b"})
	require.Equal(t, httperrors.KindNotFound, httperrors.KindOf(err))

	f.registerGitHub(t)
	f.registerGitHub(t)
	list, err := f.svc.ListProviders(ctx, f.project)
	require.NoError(t, err)
	require.Len(t, list, 1)

	cfg, err := f.db.OAuthProviders().Get(ctx, f.project, "github")
	require.NoError(t, err)
	require.NotEqual(t, "cid", cfg.ClientIDEnc)
	require.NotContains(t, cfg.ClientSecretEnc, "s|e|c")
}

func TestAuthorizationURLWithoutConfigIsNotFound(t *testing.T) {
	f := newFixture(t, "master")
	_, err := f.svc.AuthorizationURL(context.Background(), AuthorizationInput{ProjectID: f.project, Provider: "google"})
	require.Equal(t, httperrors.KindNotFound, httperrors.KindOf(err))
}

func TestCallbackIssuesSessionAndStateIsSingleUse(t *testing.T) {
	f := newFixture(t, "master")
	ctx := context.Background()
	f.registerGitHub(t)
	state := f.startFlow(t)

	res, err := f.svc.HandleCallback(ctx, CallbackInput{Code: "abc", State: state})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Created)
	require.Equal(t, "ana@example.com", res.Email)

	claims, err := f.issuer.VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.project, claims.ProjectID)
	require.True(t, claims.Verified)
	require.Equal(t, "Ana", claims.FirstName)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), res.AccessExpiresAt, 5*time.Second)

	rt, err := f.db.RefreshTokens().GetByHash(ctx, tokens.SHA256Base64URL(res.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, repository.AuthGitHub, rt.AuthMethod)

	_, err = f.svc.HandleCallback(ctx, CallbackInput{Code: "abc", State: state})
	require.Equal(t, httperrors.KindNotFound, httperrors.KindOf(err))

	// segundo login: vincula, no crea
	again, err := f.svc.HandleCallback(ctx, CallbackInput{Code: "abc", State: f.startFlow(t)})
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, res.UserID, again.UserID)
}

func TestCallbackExpiredStateIsGone(t *testing.T) {
	f := newFixture(t, "master")
	f.registerGitHub(t)
	state := f.startFlow(t)

	f.now = f.now.Add(11 * time.Minute)
	_, err := f.svc.HandleCallback(context.Background(), CallbackInput{Code: "abc", State: state})
	require.Equal(t, httperrors.KindGone, httperrors.KindOf(err))
}

func TestCallbackExchangeFailureCarriesStatus(t *testing.T) {
	f := newFixture(t, "master")
	f.registerGitHub(t)
	state := f.startFlow(t)
	f.tokenStatus = http.StatusBadRequest

	_, err := f.svc.HandleCallback(context.Background(), CallbackInput{Code: "bad", State: state})
	require.Equal(t, httperrors.KindInternal, httperrors.KindOf(err))
	appErr := httperrors.FromError(err)
	require.Contains(t, appErr.Detail, "status=400")
	require.Contains(t, appErr.Detail, "bad_verification_code")
}

func TestDecryptionFailureIsInternal(t *testing.T) {
	f := newFixture(t, "master")
	f.registerGitHub(t)

	other := newFixture(t, "another-master")
	cfg, err := f.db.OAuthProviders().Get(context.Background(), f.project, "github")
	require.NoError(t, err)
	cfg.ProjectID = other.project
	require.NoError(t, other.db.OAuthProviders().Upsert(context.Background(), cfg))

	_, err = other.svc.AuthorizationURL(context.Background(), AuthorizationInput{ProjectID: other.project, Provider: "github"})
	require.Equal(t, httperrors.KindInternal, httperrors.KindOf(err))
	require.ErrorIs(t, err, httperrors.ErrDecryption)
}

// ─── Vinculación por email ───

func (f *fixture) seedUser(t *testing.T, addr string) string {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, f.db.Users().Create(ctx, &repository.User{ID: id, Email: addr}))
	require.NoError(t, f.db.Users().CreateMembership(ctx, &repository.Membership{
		UserID: id, ProjectID: f.project, Role: jwtx.RoleUser, Verified: true, PasswordHash: "x",
	}))
	return id
}

func TestCallbackUnverifiedEmailDoesNotLinkExistingUser(t *testing.T) {
	f := newFixture(t, "master")
	ctx := context.Background()
	victim := f.seedUser(t, "victim@example.com")
	f.registerGitHub(t)
	f.emails = []map[string]any{{"email": "victim@example.com", "primary": true, "verified": false}}

	_, err := f.svc.HandleCallback(ctx, CallbackInput{Code: "abc", State: f.startFlow(t)})
	require.ErrorIs(t, err, httperrors.ErrEmailNotVerified)
	require.Equal(t, httperrors.KindBadRequest, httperrors.KindOf(err))

	n, err := f.db.RefreshTokens().SetStateForOwner(ctx, repository.OwnerUser, victim, f.project, repository.TokenActive, repository.TokenActive)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLinkUnverifiedProfile(t *testing.T) {
	f := newFixture(t, "master")
	ctx := context.Background()
	svc := f.svc.(*service)
	f.seedUser(t, "victim@example.com")

	_, _, _, err := svc.link(ctx, f.project, &providers.UserProfile{ProviderID: "1", Email: "Victim@Example.com", EmailVerified: false})
	require.ErrorIs(t, err, httperrors.ErrEmailNotVerified)

	_, _, _, err = svc.link(ctx, f.project, &providers.UserProfile{ProviderID: "2"})
	require.ErrorIs(t, err, httperrors.ErrEmailNotVerified)

	// un email nuevo se acepta, pero la membresía queda sin verificar
	u, mb, created, err := svc.link(ctx, f.project, &providers.UserProfile{ProviderID: "3", Email: "new@example.com", EmailVerified: false})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "new@example.com", u.Email)
	require.False(t, mb.Verified)

	// verificado sí vincula
	_, mb, created, err = svc.link(ctx, f.project, &providers.UserProfile{ProviderID: "1", Email: "victim@example.com", EmailVerified: true})
	require.NoError(t, err)
	require.False(t, created)
	require.True(t, mb.Verified)
}
