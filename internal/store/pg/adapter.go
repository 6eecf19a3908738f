// Package pg implementa los repositorios sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/store"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.Config) (store.Connection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 2
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Connection{pool: pool}, nil
}

// Connection representa una conexión activa a PostgreSQL.
type Connection struct {
	pool *pgxpool.Pool
}

func (c *Connection) Name() string                   { return "postgres" }
func (c *Connection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

// Pool expone el pool para el collector de métricas.
func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

// ─── Repositorios ───

func (c *Connection) Admins() repository.AdminRepository     { return &adminRepo{pool: c.pool} }
func (c *Connection) Users() repository.UserRepository       { return &userRepo{pool: c.pool} }
func (c *Connection) Projects() repository.ProjectRepository { return &projectRepo{pool: c.pool} }
func (c *Connection) OAuthProviders() repository.OAuthProviderRepository {
	return &providerRepo{pool: c.pool}
}
func (c *Connection) OAuthStates() repository.OAuthStateRepository { return &stateRepo{pool: c.pool} }
func (c *Connection) OTPs() repository.OTPRepository               { return &otpRepo{pool: c.pool} }
func (c *Connection) Challenges() repository.ChallengeRepository   { return &challengeRepo{pool: c.pool} }
func (c *Connection) WebAuthnCredentials() repository.WebAuthnCredentialRepository {
	return &credentialRepo{pool: c.pool}
}
func (c *Connection) RefreshTokens() repository.RefreshTokenRepository {
	return &tokenRepo{pool: c.pool}
}

// ─── Helpers ───

const (
	pgUniqueViolation           = "23505"
	pgForeignKeyViolation       = "23503"
	pgInvalidTextRepresentation = "22P02"
)

// mapErr traduce errores de pgx a los sentinels del repositorio.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return repository.ErrConflict
		case pgForeignKeyViolation:
			return repository.ErrNotFound
		case pgInvalidTextRepresentation:
			// Un id que no es UUID no puede existir en ninguna tabla.
			return repository.ErrNotFound
		}
	}
	return fmt.Errorf("pg: %s: %w", op, err)
}

// expectOne convierte "0 filas afectadas" en ErrNotFound.
func expectOne(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// nullIfEmpty devuelve nil para strings vacíos (columnas opcionales).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// inTx ejecuta fn en una transacción; rollback si fn falla.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
