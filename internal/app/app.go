// Package app arma el servicio a partir de la configuración: store, cache,
// claves, servicios, controllers y router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/tenantauth/internal/cache"
	"github.com/dropDatabas3/tenantauth/internal/challenge"
	"github.com/dropDatabas3/tenantauth/internal/config"
	"github.com/dropDatabas3/tenantauth/internal/email"
	adminctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/admin"
	authctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/tenantauth/internal/http/controllers/oauth"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	mw "github.com/dropDatabas3/tenantauth/internal/http/middlewares"
	"github.com/dropDatabas3/tenantauth/internal/http/router"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/metrics"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/providers"
	"github.com/dropDatabas3/tenantauth/internal/providers/github"
	"github.com/dropDatabas3/tenantauth/internal/providers/google"
	"github.com/dropDatabas3/tenantauth/internal/rate"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/security/secretbox"
	adminsvc "github.com/dropDatabas3/tenantauth/internal/services/admin"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	"github.com/dropDatabas3/tenantauth/internal/services/oauth"
	"github.com/dropDatabas3/tenantauth/internal/services/session"
	"github.com/dropDatabas3/tenantauth/internal/services/webauthn"
	store "github.com/dropDatabas3/tenantauth/internal/store"

	// adapters
	_ "github.com/dropDatabas3/tenantauth/internal/store/memory"
	_ "github.com/dropDatabas3/tenantauth/internal/store/pg"
)

// App es el servicio cableado.
type App struct {
	Config     *config.Config
	Store      store.Connection
	Cache      cache.Client
	Keys       *jwtx.KeySet
	Issuer     *jwtx.Issuer
	Dispatcher *common.Dispatcher
	Handler    http.Handler

	closers []func() error
}

// Option sobreescribe piezas al construir la App (tests, CLI).
type Option func(*options)

type options struct {
	store     store.Connection
	keys      *jwtx.KeySet
	mailer    email.Mailer
	endpoints map[string]providers.Endpoints
	registry  prometheus.Registerer
}

func WithStore(s store.Connection) Option { return func(o *options) { o.store = s } }
func WithKeys(k *jwtx.KeySet) Option      { return func(o *options) { o.keys = k } }
func WithMailer(m email.Mailer) Option    { return func(o *options) { o.mailer = m } }

// WithProviderEndpoints redirige proveedores OAuth (tests contra httptest).
func WithProviderEndpoints(e map[string]providers.Endpoints) Option {
	return func(o *options) { o.endpoints = e }
}

func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

// New construye la App. Si falla a mitad de camino cierra lo ya abierto.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.From(ctx).With(logger.Component("app"))
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// ─── Infra ───
	if o.store != nil {
		a.Store = o.store
	} else {
		if a.Store, err = store.Open(ctx, cfg.Storage); err != nil {
			return nil, fmt.Errorf("app: store: %w", err)
		}
		a.closers = append(a.closers, a.Store.Close)
	}

	if a.Cache, err = cache.New(ctx, cfg.Cache); err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}
	a.closers = append(a.closers, a.Cache.Close)

	if err = metrics.Register(o.registry); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}
	if pooled, ok := a.Store.(interface{ Pool() *pgxpool.Pool }); ok {
		if err = metrics.RegisterPool(o.registry, pooled.Pool()); err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
	}

	// ─── Claves ───
	a.Keys = o.keys
	if a.Keys == nil {
		if a.Keys, err = jwtx.LoadOrGenerate(cfg.JWT.KeyPath, cfg.JWT.AllowGenerate); err != nil {
			return nil, fmt.Errorf("app: jwt keys: %w", err)
		}
	}
	a.Issuer = jwtx.NewIssuer(cfg.JWT.Issuer, a.Keys)

	vault, err := secretbox.NewVault(cfg.Vault.MasterKey, cfg.Vault.Salt, cfg.Vault.KDF)
	if err != nil {
		return nil, fmt.Errorf("app: vault: %w", err)
	}

	hasher := password.NewHasher(cfg.Password.Argon2)
	policy, err := cfg.Password.Policy.WithBlacklist(cfg.Password.BlacklistPath)
	if err != nil {
		return nil, fmt.Errorf("app: password blacklist: %w", err)
	}

	mailer := o.mailer
	if mailer == nil {
		if cfg.SMTP.Host != "" {
			mailer = email.NewSMTPMailer(cfg.SMTP)
		} else {
			log.Warn("smtp.host vacío: los emails sólo se loguean")
			mailer = email.LogMailer{}
		}
	}

	a.Dispatcher = common.NewDispatcher(5 * time.Second)

	// ─── Servicios ───
	sessions := session.NewManager(session.Deps{
		Store:      a.Store,
		Issuer:     a.Issuer,
		Hasher:     hasher,
		Policy:     policy,
		Mailer:     mailer,
		Cache:      a.Cache,
		Dispatcher: a.Dispatcher,
		TTL:        cfg.TTL,
	})
	admins := adminsvc.NewService(adminsvc.Deps{Store: a.Store, Hasher: hasher, Policy: policy})

	registry := providers.NewRegistry()
	registry.Register(providers.Google, google.New)
	registry.Register(providers.GitHub, github.New)
	oauthSvc := oauth.NewService(oauth.Deps{
		Store:        a.Store,
		Vault:        vault,
		Registry:     registry,
		Issuer:       a.Issuer,
		TTL:          cfg.TTL,
		CallbackBase: cfg.App.PublicURL,
		HTTPTimeout:  cfg.OAuth.HTTPTimeout,
		Endpoints:    o.endpoints,
	})

	var challenges challenge.Store
	switch cfg.Challenges.Backend {
	case "cache":
		challenges = challenge.NewCacheStore(a.Cache)
	default:
		challenges = challenge.NewRepoStore(a.Store.Challenges())
	}
	wa, err := webauthn.NewService(webauthn.Deps{Store: a.Store, Challenges: challenges, Config: cfg.WebAuthn})
	if err != nil {
		return nil, fmt.Errorf("app: webauthn: %w", err)
	}

	limiter, err := newLimiter(cfg, a.Cache)
	if err != nil {
		return nil, err
	}

	// ─── HTTP ───
	userCookies := helpers.CookieConfig{Secure: cfg.IsProd()}
	adminCookies := helpers.CookieConfig{Prefix: "admin_", Secure: cfg.IsProd()}

	a.Handler = router.New(router.Deps{
		Issuer: a.Issuer,
		TenantGate: mw.TenantGate(mw.TenantGateConfig{
			Projects:    a.Store.Projects(),
			Hasher:      hasher,
			Issuer:      a.Issuer,
			VerifiedTTL: cfg.TenantGate.VerifiedTTL,
		}),
		Auth: authctrl.NewController(sessions, userCookies),
		Admin: adminctrl.NewControllers(adminctrl.Services{
			Admin:    admins,
			Sessions: sessions,
			OAuth:    oauthSvc,
			WebAuthn: wa,
		}, adminCookies),
		OAuth: oauthctrl.NewController(oauthSvc, userCookies, cfg.OAuth.SuccessRedirect),
		Health: healthctrl.NewController(a.Keys, cfg.App.Version, map[string]healthctrl.Pinger{
			"store": a.Store,
			"cache": a.Cache,
		}),
		Limiter:     limiter,
		RateLimits:  router.RateLimits{Login: cfg.Rate.Login, OTP: cfg.Rate.OTP},
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsPath: cfg.Server.MetricsPath,
	})

	log.Info("app wired",
		logger.String("storage", a.Store.Name()),
		logger.String("cache", cfg.Cache.Driver),
		logger.String("rate", cfg.Rate.Driver),
	)
	return a, nil
}

func newLimiter(cfg *config.Config, c cache.Client) (rate.Limiter, error) {
	switch cfg.Rate.Driver {
	case "redis":
		client, ok := cache.RedisClient(c)
		if !ok {
			return nil, errors.New("app: rate.driver=redis requiere cache.driver=redis")
		}
		return rate.NewRedisLimiter(client, cfg.Cache.Prefix+"rl:"), nil
	default:
		return rate.NewMemoryLimiter(), nil
	}
}

// Close espera los efectos asíncronos pendientes y cierra en orden inverso.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
