package pg

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type otpRepo struct{ pool *pgxpool.Pool }

func (r *otpRepo) Get(ctx context.Context, email string) (*repository.OTP, error) {
	var o repository.OTP
	err := r.pool.QueryRow(ctx,
		`SELECT email, code, expires_at, created_at, updated_at FROM otp WHERE email = $1`,
		strings.ToLower(email)).Scan(&o.Email, &o.Code, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapErr("get otp", err)
	}
	return &o, nil
}

// Upsert se apoya en la PK por email para garantizar una sola fila aun con
// envíos concurrentes.
func (r *otpRepo) Upsert(ctx context.Context, o *repository.OTP) error {
	const q = `
		INSERT INTO otp (email, code, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET
			code       = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, strings.ToLower(o.Email), o.Code, o.ExpiresAt).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	return mapErr("upsert otp", err)
}

func (r *otpRepo) Delete(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp WHERE email = $1`, strings.ToLower(email))
	return expectOne("delete otp", tag, err)
}

func (r *otpRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp WHERE expires_at < $1`, now)
	if err != nil {
		return 0, mapErr("delete expired otps", err)
	}
	return tag.RowsAffected(), nil
}
