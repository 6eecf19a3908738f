// Package config carga la configuración del servicio: defaults, YAML y
// overrides por variables de entorno (en ese orden).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/tenantauth/internal/cache"
	"github.com/dropDatabas3/tenantauth/internal/email"
	"github.com/dropDatabas3/tenantauth/internal/rate"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/security/secretbox"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	"github.com/dropDatabas3/tenantauth/internal/services/webauthn"
	store "github.com/dropDatabas3/tenantauth/internal/store"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env" env:"APP_ENV"`
		Version string `yaml:"version"`
		// PublicURL es la base de los redirect_uri OAuth.
		PublicURL string `yaml:"public_url" env:"APP_PUBLIC_URL"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr" env:"SERVER_ADDR"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"SERVER_CORS_ALLOWED_ORIGINS" envSeparator:","`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		MetricsPath        string        `yaml:"metrics_path"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`

	Storage store.Config `yaml:"storage"`
	Cache   cache.Config `yaml:"cache"`

	JWT struct {
		Issuer  string `yaml:"issuer" env:"JWT_ISSUER"`
		KeyPath string `yaml:"key_path" env:"JWT_KEY_PATH"`
		// AllowGenerate crea la clave si no existe. Sólo fuera de prod.
		AllowGenerate bool `yaml:"allow_generate"`
	} `yaml:"jwt"`

	TTL common.TTLs `yaml:"ttl"`

	Vault struct {
		MasterKey string              `yaml:"master_key" env:"VAULT_MASTER_KEY"`
		Salt      string              `yaml:"salt" env:"VAULT_SALT"`
		KDF       secretbox.KDFParams `yaml:"kdf"`
	} `yaml:"vault"`

	Password struct {
		Argon2        password.Params `yaml:"argon2"`
		Policy        password.Policy `yaml:"policy"`
		BlacklistPath string          `yaml:"blacklist_path" env:"PASSWORD_BLACKLIST_PATH"`
	} `yaml:"password"`

	SMTP email.SMTPConfig `yaml:"smtp"`

	OAuth struct {
		HTTPTimeout time.Duration `yaml:"http_timeout" env:"OAUTH_HTTP_TIMEOUT"`
		// SuccessRedirect recibe al navegador después del callback. Vacío responde JSON.
		SuccessRedirect string `yaml:"success_redirect" env:"OAUTH_SUCCESS_REDIRECT"`
	} `yaml:"oauth"`

	WebAuthn webauthn.Config `yaml:"webauthn"`

	Rate struct {
		// Driver: memory | redis. Vacío sigue al cache.
		Driver string     `yaml:"driver" env:"RATE_DRIVER"`
		Login  rate.Limit `yaml:"login"`
		OTP    rate.Limit `yaml:"otp"`
	} `yaml:"rate"`

	TenantGate struct {
		VerifiedTTL time.Duration `yaml:"verified_ttl"`
	} `yaml:"tenant_gate"`

	Challenges struct {
		// Backend: store | cache
		Backend string `yaml:"backend" env:"CHALLENGE_BACKEND"`
	} `yaml:"challenges"`

	Janitor struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"janitor"`
}

// Default devuelve la configuración de desarrollo.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.App.Version = "dev"
	c.App.PublicURL = "http://localhost:8080"
	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Server.MetricsPath = "/metrics"
	c.Log.Level = "info"
	c.Storage.Driver = "memory"
	c.Cache.Driver = "memory"
	c.Cache.Prefix = "tenantauth:"
	c.JWT.Issuer = "tenantauth"
	c.JWT.KeyPath = "data/jwt_ed25519.pem"
	c.JWT.AllowGenerate = true
	c.TTL = common.DefaultTTLs
	c.Vault.Salt = "tenantauth-vault"
	c.Vault.KDF = secretbox.DefaultKDF
	c.Password.Argon2 = password.Default
	c.Password.Policy = password.Policy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireDigit: true}
	c.SMTP.Port = 587
	c.SMTP.TLSMode = "auto"
	c.SMTP.Timeout = 10 * time.Second
	c.OAuth.HTTPTimeout = 10 * time.Second
	c.WebAuthn.RPID = "localhost"
	c.WebAuthn.RPDisplayName = "tenantauth"
	c.WebAuthn.RPOrigins = []string{"http://localhost:3000"}
	c.WebAuthn.ChallengeTTL = 5 * time.Minute
	c.Rate.Login = rate.Limit{Max: 10, Window: time.Minute}
	c.Rate.OTP = rate.Limit{Max: 5, Window: 10 * time.Minute}
	c.TenantGate.VerifiedTTL = time.Minute
	c.Challenges.Backend = "store"
	c.Janitor.Interval = 5 * time.Minute
	return &c
}

// Load aplica YAML (si path no es vacío) y env sobre los defaults y valida.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: yaml: %w", err)
		}
	}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	c.TTL = c.TTL.WithDefaults()
	if c.Rate.Driver == "" {
		c.Rate.Driver = c.Cache.Driver
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Validate junta todos los problemas en un solo error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.Storage.Driver {
	case "memory":
		if c.IsProd() {
			add("storage.driver=memory no está permitido en prod")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			add("storage.dsn es requerido para postgres")
		}
	default:
		add("storage.driver desconocido %q", c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case "", "memory":
	case "redis":
		if c.Cache.Addr == "" {
			add("cache.addr es requerido para redis")
		}
	default:
		add("cache.driver desconocido %q", c.Cache.Driver)
	}

	switch c.Rate.Driver {
	case "", "memory":
	case "redis":
		if c.Cache.Addr == "" {
			add("rate.driver=redis usa cache.addr, que está vacío")
		}
	default:
		add("rate.driver desconocido %q", c.Rate.Driver)
	}

	switch c.Challenges.Backend {
	case "store", "cache":
	default:
		add("challenges.backend desconocido %q", c.Challenges.Backend)
	}

	if c.JWT.Issuer == "" {
		add("jwt.issuer es requerido")
	}
	if c.IsProd() && c.JWT.AllowGenerate {
		add("jwt.allow_generate no está permitido en prod")
	}
	if len(c.Vault.MasterKey) < 32 {
		add("vault.master_key debe tener al menos 32 caracteres")
	}
	if c.WebAuthn.RPID == "" || len(c.WebAuthn.RPOrigins) == 0 {
		add("webauthn.rp_id y webauthn.rp_origins son requeridos")
	}
	if c.IsProd() && c.SMTP.Host == "" {
		add("smtp.host es requerido en prod")
	}
	if c.Rate.Login.Max < 0 || c.Rate.OTP.Max < 0 {
		add("rate: max no puede ser negativo")
	}
	return errors.Join(errs...)
}
