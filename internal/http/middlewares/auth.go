package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
)

// bearerToken devuelve el token de "Authorization: Bearer <jwt>" o "".
func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[7:])
}

func unauthorized(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
	errors.WriteError(w, err)
}

// RequireAdmin exige un access token de administrador. Las claims quedan en
// el contexto (ver Claims).
func RequireAdmin(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, errors.ErrUnauthorized)
				return
			}
			claims, err := issuer.VerifyAccess(raw)
			if err != nil {
				unauthorized(w, errors.ErrTokenInvalid)
				return
			}
			if !claims.IsAdmin() {
				errors.WriteError(w, errors.ErrForbidden)
				return
			}
			ctx := WithClaims(r.Context(), claims)
			ctx = logger.Enrich(ctx, logger.AdminID(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser exige un access token de usuario emitido para el proyecto que
// resolvió TenantGate. Debe montarse después del gate.
func RequireUser(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, errors.ErrUnauthorized)
				return
			}
			claims, err := issuer.VerifyAccess(raw)
			if err != nil {
				unauthorized(w, errors.ErrTokenInvalid)
				return
			}
			if claims.IsAdmin() || claims.ProjectID == "" {
				errors.WriteError(w, errors.ErrForbidden)
				return
			}
			if pid := ProjectID(r.Context()); pid != "" && pid != claims.ProjectID {
				errors.WriteError(w, errors.ErrForbidden.WithDetail("el token pertenece a otro proyecto"))
				return
			}
			ctx := WithClaims(r.Context(), claims)
			ctx = logger.Enrich(ctx, logger.UserID(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
