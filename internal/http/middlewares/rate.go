package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/metrics"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// EmailIPRateKey combina el email del body JSON con la IP del cliente.
// Sin email en el body la clave queda sólo por IP.
func EmailIPRateKey(r *http.Request) string {
	email := strings.ToLower(strings.TrimSpace(peekJSONField(r, "email", 16<<10)))
	if email == "" {
		email = "-"
	}
	return email + "|" + clientIP(r)
}

func IPOnlyRateKey(r *http.Request) string { return clientIP(r) }

// peekJSONField lee hasta max bytes del body para extraer un campo string y
// repone el body completo.
func peekJSONField(r *http.Request, field string, max int64) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, max)
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf.Bytes()), r.Body))

	var tmp map[string]any
	if json.Unmarshal(buf.Bytes(), &tmp) != nil {
		return ""
	}
	s, _ := tmp[field].(string)
	return s
}

// RateLimitConfig configura un bucket de rate limiting.
type RateLimitConfig struct {
	Limiter rate.Limiter
	Limit   rate.Limit
	// Bucket separa contadores y etiqueta la métrica (ej: "login", "otp").
	Bucket  string
	KeyFunc RateKeyFunc
}

// WithRateLimit rechaza con 429 cuando el bucket se agota. Un error del
// limiter deja pasar el request.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil || !cfg.Limit.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPOnlyRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Bucket + "|" + cfg.KeyFunc(r)
			res, err := cfg.Limiter.Allow(r.Context(), key, cfg.Limit)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error", logger.Component("rate"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))

			if !res.Allowed {
				metrics.RateLimited.WithLabelValues(cfg.Bucket).Inc()
				if res.RetryAfter > 0 {
					secs := int(res.RetryAfter.Round(time.Second).Seconds())
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
