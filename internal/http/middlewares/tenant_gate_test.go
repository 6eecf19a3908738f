package middlewares

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/services/admin"
	"github.com/dropDatabas3/tenantauth/internal/store/memory"
)

type gateFixture struct {
	gate    Middleware
	issuer  *jwtx.Issuer
	keys    *admin.ProjectKeys
	adminID string
}

func newGateFixture(t *testing.T, verifiedTTL time.Duration) *gateFixture {
	t.Helper()
	db := memory.New()
	h := password.NewHasher(password.Params{Memory: 1024, Time: 1, Parallelism: 1})
	svc := admin.NewService(admin.Deps{Store: db, Hasher: h, Policy: password.Policy{MinLength: 8}})
	ctx := context.Background()

	reg, err := svc.Register(ctx, admin.RegisterInput{Email: "a@x.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	keys, err := svc.CreateProject(ctx, reg.ID, admin.CreateProjectInput{Name: "Acme"})
	require.NoError(t, err)

	ks, err := jwtx.GenerateEd25519()
	require.NoError(t, err)
	issuer := jwtx.NewIssuer("tenantauth-test", ks)

	return &gateFixture{
		gate:    TenantGate(TenantGateConfig{Projects: db.Projects(), Hasher: h, Issuer: issuer, VerifiedTTL: verifiedTTL}),
		issuer:  issuer,
		keys:    keys,
		adminID: reg.ID,
	}
}

// captured es lo que ve el handler detrás del gate.
type captured struct {
	called    bool
	ctxProj   string
	queryProj string
	body      map[string]any
	claims    *jwtx.AccessClaims
}

func (c *captured) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.ctxProj = ProjectID(r.Context())
		c.queryProj = r.URL.Query().Get(ProjectIDParam)
		c.claims = Claims(r.Context())
		if r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			if len(b) > 0 {
				_ = json.Unmarshal(b, &c.body)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTenantGateWrongAPIKeyThenCorrectPair(t *testing.T) {
	f := newGateFixture(t, 0)

	var got captured
	h := f.gate(got.handler())

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"u@x.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderClientKey, f.keys.ClientKey)
	req.Header.Set(HeaderAPIKey, "sk_wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_API_KEY")
	require.False(t, got.called)

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login?projectId=spoofed", strings.NewReader(`{"email":"u@x.com","projectId":"spoofed"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderClientKey, f.keys.ClientKey)
	req.Header.Set(HeaderAPIKey, f.keys.APIKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, got.called)
	require.Equal(t, f.keys.ProjectID, got.ctxProj)
	require.Equal(t, f.keys.ProjectID, got.queryProj)
	require.Equal(t, f.keys.ProjectID, got.body[ProjectIDParam])
	require.Equal(t, "u@x.com", got.body["email"])
}

func TestTenantGateGetOnlyTouchesQuery(t *testing.T) {
	f := newGateFixture(t, 0)
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/v1/oauth/github/authorize", nil)
	req.Header.Set(HeaderClientKey, f.keys.ClientKey)
	req.Header.Set(HeaderAPIKey, f.keys.APIKey)
	rec := httptest.NewRecorder()
	f.gate(got.handler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, f.keys.ProjectID, got.queryProj)
	require.Nil(t, got.body)
}

func TestTenantGateRejections(t *testing.T) {
	f := newGateFixture(t, 0)
	cases := []struct {
		name      string
		clientKey string
		apiKey    string
		code      string
	}{
		{"missing headers", "", "", "MISSING_FIELDS"},
		{"missing api key", f.keys.ClientKey, "", "MISSING_FIELDS"},
		{"unknown client key", "ck_nope", f.keys.APIKey, "INVALID_CLIENT_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.clientKey != "" {
				req.Header.Set(HeaderClientKey, tc.clientKey)
			}
			if tc.apiKey != "" {
				req.Header.Set(HeaderAPIKey, tc.apiKey)
			}
			rec := httptest.NewRecorder()
			f.gate(got.handler()).ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tc.code)
			require.False(t, got.called)
		})
	}
}

func TestTenantGateAdminBypass(t *testing.T) {
	f := newGateFixture(t, 0)
	tok, _, err := f.issuer.IssueAccess(jwtx.AccessClaims{
		Email:            "a@x.com",
		Role:             jwtx.RoleAdmin,
		RegisteredClaims: jwtv5.RegisteredClaims{Subject: f.adminID},
	}, time.Minute)
	require.NoError(t, err)

	var got captured
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/projects", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.gate(got.handler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got.claims)
	require.Equal(t, f.adminID, got.claims.Subject)
	require.Empty(t, got.ctxProj)
}

func TestTenantGateUserBearerDoesNotBypass(t *testing.T) {
	f := newGateFixture(t, 0)
	tok, _, err := f.issuer.IssueAccess(jwtx.AccessClaims{
		Role:             jwtx.RoleUser,
		ProjectID:        f.keys.ProjectID,
		RegisteredClaims: jwtv5.RegisteredClaims{Subject: "u-1"},
	}, time.Minute)
	require.NoError(t, err)

	var got captured
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.gate(got.handler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, got.called)
}

func TestTenantGateVerifiedCache(t *testing.T) {
	f := newGateFixture(t, time.Minute)
	for i := 0; i < 2; i++ {
		var got captured
		req := httptest.NewRequest(http.MethodDelete, "/v1/auth/logout", nil)
		req.Header.Set(HeaderClientKey, f.keys.ClientKey)
		req.Header.Set(HeaderAPIKey, f.keys.APIKey)
		rec := httptest.NewRecorder()
		f.gate(got.handler()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, f.keys.ProjectID, got.body[ProjectIDParam])
	}

	var got captured
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderClientKey, f.keys.ClientKey)
	req.Header.Set(HeaderAPIKey, f.keys.APIKey+"x")
	rec := httptest.NewRecorder()
	f.gate(got.handler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
