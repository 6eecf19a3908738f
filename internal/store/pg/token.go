package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type tokenRepo struct{ pool *pgxpool.Pool }

func (r *tokenRepo) Create(ctx context.Context, t *repository.RefreshToken) error {
	if t.State == "" {
		t.State = repository.TokenActive
	}
	const q = `
		INSERT INTO refresh_token (id, token_hash, owner_kind, owner_id, project_id, auth_method, state, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, t.ID, t.TokenHash, string(t.OwnerKind), t.OwnerID,
		nullIfEmpty(t.ProjectID), string(t.AuthMethod), string(t.State), t.ExpiresAt).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapErr("create refresh token", err)
}

func (r *tokenRepo) GetByHash(ctx context.Context, hash string) (*repository.RefreshToken, error) {
	const q = `
		SELECT id, token_hash, owner_kind, owner_id, COALESCE(project_id::text, ''), auth_method, state,
		       expires_at, created_at, updated_at
		FROM refresh_token WHERE token_hash = $1`
	var t repository.RefreshToken
	var kind, method, state string
	err := r.pool.QueryRow(ctx, q, hash).Scan(&t.ID, &t.TokenHash, &kind, &t.OwnerID, &t.ProjectID,
		&method, &state, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr("get refresh token", err)
	}
	t.OwnerKind = repository.OwnerKind(kind)
	t.AuthMethod = repository.AuthMethod(method)
	t.State = repository.TokenState(state)
	return &t, nil
}

// SetState es un compare-and-set: sólo transiciona si el estado actual es from.
func (r *tokenRepo) SetState(ctx context.Context, id string, from, to repository.TokenState) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_token SET state = $3, updated_at = now() WHERE id = $1 AND state = $2`,
		id, string(from), string(to))
	return expectOne("set refresh token state", tag, err)
}

func (r *tokenRepo) SetStateForOwner(ctx context.Context, kind repository.OwnerKind, ownerID, projectID string, from, to repository.TokenState) (int64, error) {
	const q = `
		UPDATE refresh_token SET state = $5, updated_at = now()
		WHERE owner_kind = $1 AND owner_id = $2 AND state = $4
		  AND ($3::uuid IS NULL OR project_id = $3::uuid)`
	tag, err := r.pool.Exec(ctx, q, string(kind), ownerID, nullIfEmpty(projectID), string(from), string(to))
	if err != nil {
		return 0, mapErr("set owner token state", err)
	}
	return tag.RowsAffected(), nil
}

func (r *tokenRepo) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_token SET state = 'EXPIRED', updated_at = now()
		 WHERE state = 'ACTIVE' AND expires_at < $1`, now)
	if err != nil {
		return 0, mapErr("mark expired tokens", err)
	}
	return tag.RowsAffected(), nil
}
