package app

import (
	"context"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/metrics"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
)

// Sweep limpia una vez los artefactos vencidos: OTPs, states OAuth y refresh
// tokens activos pasados de fecha (quedan EXPIRED, no se borran).
func (a *App) Sweep(ctx context.Context, now time.Time) map[string]int64 {
	log := logger.From(ctx).With(logger.Component("janitor"))

	jobs := []struct {
		kind string
		run  func(context.Context, time.Time) (int64, error)
	}{
		{"otp", a.Store.OTPs().DeleteExpired},
		{"oauth_state", a.Store.OAuthStates().DeleteExpired},
		{"refresh_token", a.Store.RefreshTokens().MarkExpired},
	}

	out := make(map[string]int64, len(jobs))
	for _, j := range jobs {
		n, err := j.run(ctx, now)
		if err != nil {
			log.Warn("janitor: limpieza falló", logger.String("kind", j.kind), logger.Err(err))
			continue
		}
		out[j.kind] = n
		if n > 0 {
			metrics.JanitorPurged.WithLabelValues(j.kind).Add(float64(n))
		}
	}
	return out
}

// RunJanitor corre Sweep cada interval hasta que ctx se cancele.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			a.Sweep(ctx, now)
		}
	}
}
