// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	adminctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/oauth"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	mw "github.com/dropDatabas3/tenantauth/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/metrics"
	"github.com/dropDatabas3/tenantauth/internal/rate"
)

// RateLimits son los buckets por endpoint sensible.
type RateLimits struct {
	Login rate.Limit `yaml:"login"`
	OTP   rate.Limit `yaml:"otp"`
}

// Deps contiene todo lo que necesita el router.
type Deps struct {
	Issuer     *jwtx.Issuer
	TenantGate mw.Middleware

	Auth   *authctrl.Controller
	Admin  *adminctrl.Controllers
	OAuth  *oauthctrl.Controller
	Health *healthctrl.Controller

	Limiter     rate.Limiter
	RateLimits  RateLimits
	CORSOrigins []string
	// MetricsPath vacío deshabilita /metrics.
	MetricsPath string
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		metrics.Middleware,
	)
	if len(d.CORSOrigins) > 0 {
		r.Use(mw.WithCORS(d.CORSOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	loginLimit := mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, Limit: d.RateLimits.Login, Bucket: "login", KeyFunc: mw.EmailIPRateKey})
	otpLimit := mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, Limit: d.RateLimits.OTP, Bucket: "otp", KeyFunc: mw.EmailIPRateKey})

	// ─── Infra ───
	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Get("/.well-known/jwks.json", d.Health.JWKS)
	if d.MetricsPath != "" {
		r.Handle(d.MetricsPath, metrics.Handler())
	}

	// ─── Admin: sin token ───
	r.Route("/v1/admin/auth", func(r chi.Router) {
		acc := d.Admin.Account
		r.Post("/register", acc.Register)
		r.With(loginLimit).Post("/login", acc.Login)
		r.With(otpLimit).Post("/otp/send", acc.SendOTP)
		r.With(otpLimit).Post("/otp/verify", acc.VerifyOTP)
		r.Post("/refresh", acc.Refresh)
		r.Post("/logout", acc.Logout)
	})

	// ─── Admin: con token ───
	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(mw.RequireAdmin(d.Issuer))

		r.Get("/me", d.Admin.Account.Me)
		r.Put("/me/email", d.Admin.Account.ChangeEmail)

		r.Route("/projects", func(r chi.Router) {
			p := d.Admin.Projects
			r.Post("/", p.Create)
			r.Get("/", p.List)
			r.Get("/{projectID}", p.Get)
			r.Delete("/{projectID}", p.Delete)
			r.Post("/{projectID}/api-key", p.RotateAPIKey)

			pr := d.Admin.Providers
			r.Get("/{projectID}/oauth", pr.List)
			r.Put("/{projectID}/oauth/{provider}", pr.Upsert)
			r.Delete("/{projectID}/oauth/{provider}", pr.Delete)
		})

		r.Route("/webauthn", func(r chi.Router) {
			wa := d.Admin.WebAuthn
			r.Post("/register/begin", wa.BeginRegistration)
			r.Post("/register/finish", wa.FinishRegistration)
			r.Get("/credentials", wa.List)
			r.Delete("/credentials/{credentialID}", wa.Delete)
		})
	})

	// ─── Usuarios: detrás de TenantGate ───
	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(d.TenantGate)
		a := d.Auth
		r.Post("/register", a.Register)
		r.With(loginLimit).Post("/login", a.Login)
		r.Post("/magic-link", a.CreateMagicLink)
		r.Post("/magic-link/verify", a.VerifyMagicLink)
		r.With(otpLimit).Post("/otp/send", a.SendOTP)
		r.With(otpLimit).Post("/otp/verify", a.VerifyOTP)
		r.Post("/refresh", a.Refresh)
		r.Post("/logout", a.Logout)
		r.With(mw.RequireUser(d.Issuer)).Put("/password", a.ChangePassword)
	})

	// ─── OAuth ───
	r.Route("/v1/oauth/{provider}", func(r chi.Router) {
		r.With(d.TenantGate).Get("/authorize", d.OAuth.Authorize)
		r.Get("/callback", d.OAuth.Callback)
	})

	return r
}
