package pg

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	migrations "github.com/dropDatabas3/tenantauth/migrations/postgres"
)

// ErrNoChange se devuelve cuando no hay migraciones para aplicar.
var ErrNoChange = migrate.ErrNoChange

// Migrate aplica las migraciones embebidas. direction es "up" o "down".
// Ya estar en la versión objetivo no es error.
func Migrate(dsn, direction string) error {
	if dsn == "" {
		return errors.New("pg: DATABASE_URL vacío")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("pg: direction debe ser up o down, obtuvo %q", direction)
	}

	src, err := iofs.New(migrations.FS, migrations.Dir)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
