package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/config"
	"github.com/dropDatabas3/tenantauth/internal/email"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/security/secretbox"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *captureMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last(t *testing.T) email.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

func newTestApp(t *testing.T) *App {
	a, _ := newTestAppWithMailer(t)
	return a
}

func newTestAppWithMailer(t *testing.T) (*App, *captureMailer) {
	t.Helper()
	cfg := config.Default()
	cfg.Vault.MasterKey = "0123456789abcdef0123456789abcdef"
	cfg.Vault.KDF = secretbox.KDFParams{Memory: 1024, Time: 1, Parallelism: 1}
	cfg.Password.Argon2 = password.Params{Memory: 1024, Time: 1, Parallelism: 1}
	cfg.Server.MetricsPath = ""

	keys, err := jwtx.GenerateEd25519()
	require.NoError(t, err)

	mailer := &captureMailer{}
	a, err := New(context.Background(), cfg, WithKeys(keys), WithMailer(mailer))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, mailer
}

type call struct {
	method, path string
	body         any
	header       map[string]string
	cookies      []*http.Cookie
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestEndToEndUserSession(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler

	// admin
	rec := do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/register", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/login", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adminToken := decode(t, rec)["accessToken"].(string)
	require.NotNil(t, cookie(rec, "admin_refresh_token"))

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/admin/projects/", body: map[string]string{"name": "shop"},
		header: map[string]string{"Authorization": "Bearer " + adminToken}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode(t, rec)
	gate := map[string]string{
		"X-API-Key":    project["apiKey"].(string),
		"X-Client-Key": project["clientKey"].(string),
	}

	// usuario
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/register", header: gate, body: map[string]string{
		"email": "ana@example.com", "password": "Passw0rdOk",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, project["projectId"], decode(t, rec)["projectId"])

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/login", header: gate, body: map[string]string{
		"email": "ana@example.com", "password": "Passw0rdOk",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refresh := cookie(rec, "refresh_token")
	require.NotNil(t, refresh)
	require.True(t, refresh.HttpOnly)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh", header: gate, cookies: []*http.Cookie{refresh}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := cookie(rec, "refresh_token")
	require.NotNil(t, rotated)
	require.NotEqual(t, refresh.Value, rotated.Value)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/logout", header: gate, cookies: []*http.Cookie{rotated}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// el token revocado ya no sirve
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh", header: gate, cookies: []*http.Cookie{rotated}})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestGateRejectsWrongAPIKey(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler

	do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/register", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	rec := do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/login", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	token := decode(t, rec)["accessToken"].(string)
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/admin/projects/", body: map[string]string{"name": "shop"},
		header: map[string]string{"Authorization": "Bearer " + token}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode(t, rec)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/login",
		header: map[string]string{"X-API-Key": "nope", "X-Client-Key": project["clientKey"].(string)},
		body:   map[string]string{"email": "ana@example.com", "password": "Passw0rdOk"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_API_KEY", decode(t, rec)["code"])
}

func TestInfraRoutes(t *testing.T) {
	a := newTestApp(t)

	rec := do(t, a.Handler, call{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, a.Handler, call{method: http.MethodGet, path: "/.well-known/jwks.json"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"kty":"OKP"`)

	rec = do(t, a.Handler, call{method: http.MethodGet, path: "/v1/nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepMarksExpiredRefreshTokens(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler

	do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/register", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	rec := do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/login", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	got := a.Sweep(context.Background(), time.Now().Add(365*24*time.Hour))
	require.Equal(t, int64(1), got["refresh_token"])
	require.Zero(t, got["otp"])
}

// ─── Aislamiento entre proyectos ───

// adminWithProjects registra un admin y crea un proyecto por nombre. Devuelve
// el access token del admin y los headers del gate de cada proyecto.
func adminWithProjects(t *testing.T, h http.Handler, names ...string) (string, []map[string]string) {
	t.Helper()
	rec := do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/register", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/login", body: map[string]string{
		"email": "owner@acme.io", "password": "Sup3rSecret!",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode(t, rec)["accessToken"].(string)

	var gates []map[string]string
	for _, name := range names {
		rec = do(t, h, call{method: http.MethodPost, path: "/v1/admin/projects/", body: map[string]string{"name": name},
			header: map[string]string{"Authorization": "Bearer " + token}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		p := decode(t, rec)
		gates = append(gates, map[string]string{
			"X-API-Key":    p["apiKey"].(string),
			"X-Client-Key": p["clientKey"].(string),
		})
	}
	return token, gates
}

func TestRefreshIsScopedToGateProject(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler
	_, gates := adminWithProjects(t, h, "shop", "blog")
	shop, blog := gates[0], gates[1]

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/register", header: blog, body: map[string]string{
		"email": "ana@example.com", "password": "Passw0rdOk",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	refresh := cookie(rec, "refresh_token")
	require.NotNil(t, refresh)

	// con las claves de otro proyecto
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh", header: shop, cookies: []*http.Cookie{refresh}})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	require.Equal(t, "REFRESH_TOKEN_INVALID", decode(t, rec)["code"])

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/logout", header: shop, body: map[string]string{"refreshToken": refresh.Value}})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	// por la ruta de admins, sin claves
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/admin/auth/refresh", body: map[string]string{"refreshToken": refresh.Value}})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())

	// el token sigue sirviendo en su proyecto
	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/refresh", header: blog, cookies: []*http.Cookie{refresh}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

var tokenInLink = regexp.MustCompile(`/verify\?token=([A-Za-z0-9_.\-]+)`)

func TestMagicLinkVerifyIsScopedAndSingleUse(t *testing.T) {
	a, mailer := newTestAppWithMailer(t)
	h := a.Handler
	_, gates := adminWithProjects(t, h, "shop", "blog")
	shop, blog := gates[0], gates[1]

	rec := do(t, h, call{method: http.MethodPost, path: "/v1/auth/register", header: shop, body: map[string]string{
		"email": "ana@example.com", "password": "Passw0rdOk",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/magic-link", header: shop, body: map[string]string{
		"email": "ana@example.com", "redirectBase": "https://shop.example.com",
	}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	m := tokenInLink.FindStringSubmatch(mailer.last(t).HTML)
	require.Len(t, m, 2)

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/magic-link/verify", header: blog, body: map[string]string{"token": m[1]}})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	require.Nil(t, cookie(rec, "refresh_token"))

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/magic-link/verify", header: shop, body: map[string]string{"token": m[1]}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, cookie(rec, "refresh_token"))

	rec = do(t, h, call{method: http.MethodPost, path: "/v1/auth/magic-link/verify", header: shop, body: map[string]string{"token": m[1]}})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}
