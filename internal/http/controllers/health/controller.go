// Package health expone healthz, readyz y el JWKS.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
)

// Pinger es cualquier dependencia que se pueda chequear (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Controller struct {
	keys    *jwtx.KeySet
	checks  map[string]Pinger
	version string
	timeout time.Duration
}

func NewController(keys *jwtx.KeySet, version string, checks map[string]Pinger) *Controller {
	return &Controller{keys: keys, checks: checks, version: version, timeout: 2 * time.Second}
}

type readyResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components"`
}

// Healthz maneja GET /healthz. Sólo indica que el proceso responde.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	resp := readyResponse{Status: "ready", Version: c.version, Components: map[string]string{}}
	for name, p := range c.checks {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = "up"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, resp)
}

// JWKS maneja GET /.well-known/jwks.json
func (c *Controller) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(c.keys.JWKSJSON())
}
