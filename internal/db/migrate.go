package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies any pending embedded migrations. A database already at the
// latest version is not an error.
func Migrate(dbURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")

	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	// the pgx/v5 migrate driver registers itself under the pgx5 scheme
	url := strings.Replace(dbURL, "postgres://", "pgx5://", 1)

	m, err := migrate.NewWithSourceInstance("iofs", src, url)

	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}

	defer m.Close()

	err = m.Up()

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
