package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
)

type challengeRepo struct{ pool *pgxpool.Pool }

func (r *challengeRepo) Upsert(ctx context.Context, c *repository.Challenge) error {
	const q = `
		INSERT INTO webauthn_challenge (admin_id, challenge, session_data, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (admin_id) DO UPDATE SET
			challenge    = EXCLUDED.challenge,
			session_data = EXCLUDED.session_data,
			expires_at   = EXCLUDED.expires_at,
			created_at   = now()
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, q, c.AdminID, c.Challenge, c.SessionData, c.ExpiresAt).Scan(&c.CreatedAt)
	return mapErr("upsert challenge", err)
}

func (r *challengeRepo) Get(ctx context.Context, adminID string) (*repository.Challenge, error) {
	var c repository.Challenge
	err := r.pool.QueryRow(ctx,
		`SELECT admin_id, challenge, session_data, expires_at, created_at
		 FROM webauthn_challenge WHERE admin_id = $1`, adminID).
		Scan(&c.AdminID, &c.Challenge, &c.SessionData, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return nil, mapErr("get challenge", err)
	}
	return &c, nil
}

func (r *challengeRepo) Delete(ctx context.Context, adminID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webauthn_challenge WHERE admin_id = $1`, adminID)
	return expectOne("delete challenge", tag, err)
}

type credentialRepo struct{ pool *pgxpool.Pool }

func (r *credentialRepo) Create(ctx context.Context, c *repository.WebAuthnCredential) error {
	const q = `
		INSERT INTO webauthn_credential (id, admin_id, public_key, attestation_type, aaguid, sign_count, transports)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	transports := c.Transports
	if transports == nil {
		transports = []string{}
	}
	err := r.pool.QueryRow(ctx, q, c.ID, c.AdminID, c.PublicKey, c.AttestationType, c.AAGUID,
		int64(c.SignCount), transports).Scan(&c.CreatedAt)
	return mapErr("create webauthn credential", err)
}

func (r *credentialRepo) ListByAdmin(ctx context.Context, adminID string) ([]repository.WebAuthnCredential, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, admin_id, public_key, attestation_type, COALESCE(aaguid, ''::bytea), sign_count, transports, created_at
		FROM webauthn_credential WHERE admin_id = $1 ORDER BY created_at`, adminID)
	if err != nil {
		return nil, mapErr("list webauthn credentials", err)
	}
	defer rows.Close()

	var out []repository.WebAuthnCredential
	for rows.Next() {
		var c repository.WebAuthnCredential
		var signCount int64
		if err := rows.Scan(&c.ID, &c.AdminID, &c.PublicKey, &c.AttestationType, &c.AAGUID,
			&signCount, &c.Transports, &c.CreatedAt); err != nil {
			return nil, mapErr("scan webauthn credential", err)
		}
		c.SignCount = uint32(signCount)
		out = append(out, c)
	}
	return out, mapErr("list webauthn credentials", rows.Err())
}

func (r *credentialRepo) Delete(ctx context.Context, adminID string, credentialID []byte) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM webauthn_credential WHERE admin_id = $1 AND id = $2`, adminID, credentialID)
	return expectOne("delete webauthn credential", tag, err)
}
