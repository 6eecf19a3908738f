package middlewares

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderClientKey = "X-Client-Key"

	// ProjectIDParam es el nombre con el que se inyecta el proyecto en query y body.
	ProjectIDParam = "projectId"

	maxGateBody = 1 << 20
)

// TenantGateConfig configura el gate.
type TenantGateConfig struct {
	Projects repository.ProjectRepository
	Hasher   *password.Hasher
	Issuer   *jwtx.Issuer

	// VerifiedTTL > 0 cachea verificaciones exitosas de (client key, api key)
	// para no pagar argon2 en cada request. Rotar la API key cambia el hash
	// guardado y con eso la clave del cache.
	VerifiedTTL time.Duration
}

type tenantGate struct {
	cfg      TenantGateConfig
	verified *gocache.Cache
}

// TenantGate es el único punto donde se valida el aislamiento entre tenants.
//
// Un bearer de administrador pasa sin verificación de tenant. Cualquier otro
// request debe traer X-API-Key y X-Client-Key; el proyecto dueño del client
// key queda inyectado en el query string, en el body JSON (métodos != GET) y
// en el contexto.
func TenantGate(cfg TenantGateConfig) Middleware {
	g := &tenantGate{cfg: cfg}
	if cfg.VerifiedTTL > 0 {
		g.verified = gocache.New(cfg.VerifiedTTL, 2*cfg.VerifiedTTL)
	}
	return g.middleware
}

func (g *tenantGate) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.From(r.Context()).With(logger.Component("tenant_gate"))

		// 1. Bypass de admin
		if raw := bearerToken(r); raw != "" && g.cfg.Issuer != nil {
			if claims, err := g.cfg.Issuer.VerifyAccess(raw); err == nil && claims.IsAdmin() {
				ctx := WithClaims(r.Context(), claims)
				ctx = logger.Enrich(ctx, logger.AdminID(claims.Subject))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		// 2. Verificación de tenant
		apiKey := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
		clientKey := strings.TrimSpace(r.Header.Get(HeaderClientKey))
		if apiKey == "" || clientKey == "" {
			errors.WriteError(w, errors.ErrMissingFields.WithDetail("se requieren X-API-Key y X-Client-Key"))
			return
		}

		projectID, err := g.verify(r.Context(), clientKey, apiKey)
		if err != nil {
			log.Debug("tenant verification failed", logger.Err(err))
			errors.WriteError(w, err)
			return
		}

		if err := injectProjectID(r, projectID); err != nil {
			errors.WriteError(w, err)
			return
		}
		ctx := WithProjectID(r.Context(), projectID)
		ctx = logger.Enrich(ctx, logger.ProjectID(projectID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify resuelve el proyecto por client key y compara la API key contra el
// hash guardado.
func (g *tenantGate) verify(ctx context.Context, clientKey, apiKey string) (string, error) {
	p, err := g.cfg.Projects.GetByClientKey(ctx, clientKey)
	if err != nil {
		if repository.IsNotFound(err) {
			// cuesta lo mismo que un client key válido
			g.cfg.Hasher.DummyVerify(apiKey)
			return "", errors.ErrInvalidClientKey
		}
		return "", errors.ErrInternalServerError.WithCause(err)
	}

	cacheKey := ""
	if g.verified != nil {
		sum := sha256.Sum256([]byte(p.APIKeyHash + "|" + apiKey))
		cacheKey = hex.EncodeToString(sum[:])
		if _, ok := g.verified.Get(cacheKey); ok {
			return p.ID, nil
		}
	}

	if !g.cfg.Hasher.Verify(apiKey, p.APIKeyHash) {
		return "", errors.ErrInvalidAPIKey
	}
	if g.verified != nil {
		g.verified.SetDefault(cacheKey, struct{}{})
	}
	return p.ID, nil
}

// injectProjectID pisa cualquier projectId que haya mandado el cliente.
func injectProjectID(r *http.Request, projectID string) error {
	q := r.URL.Query()
	q.Set(ProjectIDParam, projectID)
	r.URL.RawQuery = q.Encode()

	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return nil
	}

	var raw []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxGateBody+1))
		_ = r.Body.Close()
		if err != nil {
			return errors.ErrBadRequest.WithCause(err)
		}
		if len(b) > maxGateBody {
			return errors.ErrBadRequest.WithDetail("body demasiado grande")
		}
		raw = b
	}

	body := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil || body == nil {
			// sólo se reescriben objetos JSON; el resto pasa intacto
			setBody(r, raw)
			return nil
		}
	}
	body[ProjectIDParam] = projectID
	out, err := json.Marshal(body)
	if err != nil {
		return errors.ErrInternalServerError.WithCause(err)
	}
	setBody(r, out)
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	return nil
}

func setBody(r *http.Request, b []byte) {
	r.Body = io.NopCloser(bytes.NewReader(b))
	r.ContentLength = int64(len(b))
	r.Header.Set("Content-Length", strconv.Itoa(len(b)))
}
