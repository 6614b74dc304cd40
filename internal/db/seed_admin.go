package db

import (
	"context"
	"errors"
	"strings"

	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the elevated principal from config on first boot.
// No-op when the seed credentials are unset or the user already exists.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// stored case-folded, like every other account
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	var dummy int64

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, 'admin')
		`,
		cfg.AdminName, email, hash,
	)

	return err
}
