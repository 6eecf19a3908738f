package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type projectRepo struct{ pool *pgxpool.Pool }

const projectColumns = `id, admin_id, name, api_key_hash, client_key, created_at, updated_at`

func scanProject(row pgx.Row) (*repository.Project, error) {
	var p repository.Project
	if err := row.Scan(&p.ID, &p.AdminID, &p.Name, &p.APIKeyHash, &p.ClientKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) Create(ctx context.Context, p *repository.Project) error {
	const q = `
		INSERT INTO project (id, admin_id, name, api_key_hash, client_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, p.ID, p.AdminID, p.Name, p.APIKeyHash, p.ClientKey).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr("create project", err)
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*repository.Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM project WHERE id = $1`, id))
	return p, mapErr("get project", err)
}

func (r *projectRepo) GetByClientKey(ctx context.Context, clientKey string) (*repository.Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM project WHERE client_key = $1`, clientKey))
	return p, mapErr("get project by client key", err)
}

func (r *projectRepo) ListByAdmin(ctx context.Context, adminID string) ([]repository.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM project WHERE admin_id = $1 ORDER BY created_at`, adminID)
	if err != nil {
		return nil, mapErr("list projects", err)
	}
	defer rows.Close()

	var out []repository.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapErr("scan project", err)
		}
		out = append(out, *p)
	}
	return out, mapErr("list projects", rows.Err())
}

func (r *projectRepo) UpdateAPIKeyHash(ctx context.Context, id, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE project SET api_key_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	return expectOne("rotate api key", tag, err)
}

func (r *projectRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM project WHERE id = $1`, id)
	return expectOne("delete project", tag, err)
}
