package pg

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type adminRepo struct{ pool *pgxpool.Pool }

const adminColumns = `id, email, first_name, last_name, password_hash, verified, mfa_enabled,
	created_at, updated_at, last_login_at`

func scanAdmin(row pgx.Row) (*repository.Admin, error) {
	var a repository.Admin
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash,
		&a.Verified, &a.MFAEnabled, &a.CreatedAt, &a.UpdatedAt, &a.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *adminRepo) Create(ctx context.Context, a *repository.Admin) error {
	const q = `
		INSERT INTO admin (id, email, first_name, last_name, password_hash, verified, mfa_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, a.ID, strings.ToLower(a.Email), a.FirstName, a.LastName,
		a.PasswordHash, a.Verified, a.MFAEnabled).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapErr("create admin", err)
}

func (r *adminRepo) GetByID(ctx context.Context, id string) (*repository.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin WHERE id = $1`, id))
	return a, mapErr("get admin", err)
}

func (r *adminRepo) GetByEmail(ctx context.Context, email string) (*repository.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin WHERE email = $1`,
		strings.ToLower(email)))
	return a, mapErr("get admin by email", err)
}

func (r *adminRepo) Update(ctx context.Context, id string, in repository.UpdateAdminInput) error {
	var email *string
	if in.Email != nil {
		e := strings.ToLower(*in.Email)
		email = &e
	}
	const q = `
		UPDATE admin SET
			email         = COALESCE($2, email),
			first_name    = COALESCE($3, first_name),
			last_name     = COALESCE($4, last_name),
			password_hash = COALESCE($5, password_hash),
			verified      = COALESCE($6, verified),
			mfa_enabled   = COALESCE($7, mfa_enabled),
			last_login_at = COALESCE($8, last_login_at),
			updated_at    = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, email, in.FirstName, in.LastName, in.PasswordHash,
		in.Verified, in.MFAEnabled, in.LastLoginAt)
	return expectOne("update admin", tag, err)
}

// Delete: proyectos, challenge y credenciales caen por FK; los refresh tokens
// del admin no tienen FK (owner polimórfico) y se borran a mano.
func (r *adminRepo) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM refresh_token WHERE owner_kind = 'admin' AND owner_id = $1`, id); err != nil {
			return mapErr("delete admin tokens", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM admin WHERE id = $1`, id)
		return expectOne("delete admin", tag, err)
	})
}
