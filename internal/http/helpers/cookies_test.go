package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/services/common"
)

func TestSetSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	cfg := CookieConfig{Prefix: "admin_", Secure: true}
	SetSession(rec, cfg, &common.Session{
		AccessToken:      "acc",
		AccessExpiresAt:  time.Now().Add(10 * time.Minute),
		RefreshToken:     "ref",
		RefreshExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
		require.True(t, c.HttpOnly)
		require.True(t, c.Secure)
		require.Equal(t, http.SameSiteStrictMode, c.SameSite)
	}
	require.Equal(t, "ref", byName["admin_refresh_token"].Value)
	require.InDelta(t, 7*24*3600, byName["admin_refresh_token"].MaxAge, 5)
	require.InDelta(t, 600, byName["admin_access_token"].MaxAge, 5)
}

func TestRefreshTokenPrefersCookie(t *testing.T) {
	cfg := CookieConfig{}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.Equal(t, "body", RefreshToken(req, cfg, "body"))

	req.AddCookie(&http.Cookie{Name: cfg.RefreshName(), Value: "cookie"})
	require.Equal(t, "cookie", RefreshToken(req, cfg, "body"))
}
