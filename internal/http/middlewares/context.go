package middlewares

import (
	"context"
	"net/http"

	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
)

// Middleware es un decorador de http.Handler, compatible con chi.Use.
type Middleware func(http.Handler) http.Handler

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	ctxClaimsKey    ctxKey = "claims"
	ctxProjectKey   ctxKey = "project_id"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithClaims inyecta las claims del access token verificado.
func WithClaims(ctx context.Context, c *jwtx.AccessClaims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, c)
}

// WithProjectID inyecta el proyecto resuelto por TenantGate.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, ctxProjectKey, projectID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// Claims devuelve las claims del token o nil si la ruta no pasó por un
// middleware de autenticación.
func Claims(ctx context.Context) *jwtx.AccessClaims {
	c, _ := ctx.Value(ctxClaimsKey).(*jwtx.AccessClaims)
	return c
}

// ProjectID devuelve el proyecto inyectado por TenantGate ("" para admins).
func ProjectID(ctx context.Context) string {
	s, _ := ctx.Value(ctxProjectKey).(string)
	return s
}

func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}
