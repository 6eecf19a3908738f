package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type providerRepo struct{ pool *pgxpool.Pool }

func (r *providerRepo) Upsert(ctx context.Context, c *repository.OAuthProviderConfig) error {
	const q = `
		INSERT INTO oauth_provider (id, project_id, provider, client_id_enc, client_secret_enc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, provider) DO UPDATE SET
			client_id_enc     = EXCLUDED.client_id_enc,
			client_secret_enc = EXCLUDED.client_secret_enc,
			updated_at        = now()
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.ID, c.ProjectID, c.Provider, c.ClientIDEnc, c.ClientSecretEnc).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapErr("upsert oauth provider", err)
}

const providerColumns = `id, project_id, provider, client_id_enc, client_secret_enc, created_at, updated_at`

func (r *providerRepo) Get(ctx context.Context, projectID, provider string) (*repository.OAuthProviderConfig, error) {
	var c repository.OAuthProviderConfig
	err := r.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM oauth_provider WHERE project_id = $1 AND provider = $2`,
		projectID, provider).Scan(&c.ID, &c.ProjectID, &c.Provider, &c.ClientIDEnc, &c.ClientSecretEnc, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr("get oauth provider", err)
	}
	return &c, nil
}

func (r *providerRepo) ListByProject(ctx context.Context, projectID string) ([]repository.OAuthProviderConfig, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM oauth_provider WHERE project_id = $1 ORDER BY provider`, projectID)
	if err != nil {
		return nil, mapErr("list oauth providers", err)
	}
	defer rows.Close()

	var out []repository.OAuthProviderConfig
	for rows.Next() {
		var c repository.OAuthProviderConfig
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Provider, &c.ClientIDEnc, &c.ClientSecretEnc, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, mapErr("scan oauth provider", err)
		}
		out = append(out, c)
	}
	return out, mapErr("list oauth providers", rows.Err())
}

func (r *providerRepo) Delete(ctx context.Context, projectID, provider string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM oauth_provider WHERE project_id = $1 AND provider = $2`, projectID, provider)
	return expectOne("delete oauth provider", tag, err)
}

type stateRepo struct{ pool *pgxpool.Pool }

func (r *stateRepo) Create(ctx context.Context, s *repository.OAuthState) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO oauth_state (state_hash, provider, project_id, expires_at)
		 VALUES ($1, $2, $3, $4) RETURNING created_at`,
		s.StateHash, s.Provider, s.ProjectID, s.ExpiresAt).Scan(&s.CreatedAt)
	return mapErr("create oauth state", err)
}

// Take usa DELETE ... RETURNING: dos callbacks concurrentes con el mismo state
// no pueden obtener la fila ambos.
func (r *stateRepo) Take(ctx context.Context, stateHash string) (*repository.OAuthState, error) {
	var s repository.OAuthState
	err := r.pool.QueryRow(ctx,
		`DELETE FROM oauth_state WHERE state_hash = $1
		 RETURNING state_hash, provider, project_id, expires_at, created_at`, stateHash).
		Scan(&s.StateHash, &s.Provider, &s.ProjectID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapErr("take oauth state", err)
	}
	return &s, nil
}

func (r *stateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_state WHERE expires_at < $1`, now)
	if err != nil {
		return 0, mapErr("delete expired states", err)
	}
	return tag.RowsAffected(), nil
}
