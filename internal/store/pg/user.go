package pg

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) Create(ctx context.Context, u *repository.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO app_user (id, email) VALUES ($1, $2) RETURNING created_at`,
		u.ID, strings.ToLower(u.Email)).Scan(&u.CreatedAt)
	return mapErr("create user", err)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, `SELECT id, email, created_at FROM app_user WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, mapErr("get user", err)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, `SELECT id, email, created_at FROM app_user WHERE email = $1`,
		strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, mapErr("get user by email", err)
	}
	return &u, nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM refresh_token WHERE owner_kind = 'user' AND owner_id = $1`, id); err != nil {
			return mapErr("delete user tokens", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
		return expectOne("delete user", tag, err)
	})
}

func (r *userRepo) CreateMembership(ctx context.Context, m *repository.Membership) error {
	const q = `
		INSERT INTO user_project (user_id, project_id, first_name, last_name, role, verified, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, m.UserID, m.ProjectID, m.FirstName, m.LastName, m.Role,
		m.Verified, nullIfEmpty(m.PasswordHash)).Scan(&m.CreatedAt, &m.UpdatedAt)
	return mapErr("create membership", err)
}

func (r *userRepo) GetMembership(ctx context.Context, userID, projectID string) (*repository.Membership, error) {
	const q = `
		SELECT user_id, project_id, first_name, last_name, role, verified,
		       COALESCE(password_hash, ''), created_at, updated_at, last_login_at
		FROM user_project WHERE user_id = $1 AND project_id = $2`
	var m repository.Membership
	err := r.pool.QueryRow(ctx, q, userID, projectID).Scan(&m.UserID, &m.ProjectID, &m.FirstName,
		&m.LastName, &m.Role, &m.Verified, &m.PasswordHash, &m.CreatedAt, &m.UpdatedAt, &m.LastLoginAt)
	if err != nil {
		return nil, mapErr("get membership", err)
	}
	return &m, nil
}

func (r *userRepo) UpdateMembership(ctx context.Context, userID, projectID string, in repository.UpdateMembershipInput) error {
	const q = `
		UPDATE user_project SET
			first_name    = COALESCE($3, first_name),
			last_name     = COALESCE($4, last_name),
			role          = COALESCE($5, role),
			verified      = COALESCE($6, verified),
			password_hash = COALESCE($7, password_hash),
			last_login_at = COALESCE($8, last_login_at),
			updated_at    = now()
		WHERE user_id = $1 AND project_id = $2`
	tag, err := r.pool.Exec(ctx, q, userID, projectID, in.FirstName, in.LastName, in.Role,
		in.Verified, in.PasswordHash, in.LastLoginAt)
	return expectOne("update membership", tag, err)
}
