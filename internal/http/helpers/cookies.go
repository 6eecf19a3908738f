package helpers

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/services/common"
)

// CookieConfig define cómo se entregan los tokens al navegador.
type CookieConfig struct {
	// Prefix separa las cookies de admins ("admin_") de las de usuarios ("").
	Prefix string
	Domain string
	// Secure se activa en producción.
	Secure bool
}

func (c CookieConfig) AccessName() string  { return c.Prefix + "access_token" }
func (c CookieConfig) RefreshName() string { return c.Prefix + "refresh_token" }

func (c CookieConfig) cookie(name, value string, expires time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if expires.IsZero() {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		return ck
	}
	ck.Expires = expires.UTC()
	ck.MaxAge = int(time.Until(expires).Seconds())
	if ck.MaxAge <= 0 {
		ck.MaxAge = 1
	}
	return ck
}

// SetSession pone access y refresh como cookies httpOnly.
func SetSession(w http.ResponseWriter, cfg CookieConfig, s *common.Session) {
	if s == nil {
		return
	}
	http.SetCookie(w, cfg.cookie(cfg.AccessName(), s.AccessToken, s.AccessExpiresAt))
	http.SetCookie(w, cfg.cookie(cfg.RefreshName(), s.RefreshToken, s.RefreshExpiresAt))
}

// ClearSession borra ambas cookies.
func ClearSession(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(cfg.AccessName(), "", time.Time{}))
	http.SetCookie(w, cfg.cookie(cfg.RefreshName(), "", time.Time{}))
}

// RefreshToken toma el refresh de la cookie o, si no hay, del body ya
// decodificado (clientes que no usan cookies).
func RefreshToken(r *http.Request, cfg CookieConfig, fromBody string) string {
	if ck, err := r.Cookie(cfg.RefreshName()); err == nil && ck.Value != "" {
		return ck.Value
	}
	return fromBody
}
