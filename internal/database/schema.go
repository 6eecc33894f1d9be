// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the scorekeeping tables if they do not exist yet.
// Real deployments run migrations out of band; this keeps fresh dev
// environments and integration tests working against an empty database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id BIGSERIAL PRIMARY KEY,
			date TEXT,
			location TEXT,
			types TEXT,
			opponent TEXT,
			jersey_color_home TEXT,
			jersey_color_opp TEXT,
			result_home DOUBLE PRECISION,
			result_opp DOUBLE PRECISION,
			first_server TEXT,
			players TEXT,
			temp_numbers TEXT,
			finalized_sets TEXT,
			is_swapped INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			revision BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			number TEXT,
			last_name TEXT,
			initial TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sets (
			id BIGSERIAL PRIMARY KEY,
			match_id BIGINT NOT NULL,
			set_number INTEGER NOT NULL,
			home_score DOUBLE PRECISION,
			opp_score DOUBLE PRECISION,
			home_timeout_1 INTEGER NOT NULL DEFAULT 0,
			home_timeout_2 INTEGER NOT NULL DEFAULT 0,
			opp_timeout_1 INTEGER NOT NULL DEFAULT 0,
			opp_timeout_2 INTEGER NOT NULL DEFAULT 0,
			timeout_started_at TEXT,
			UNIQUE (match_id, set_number)
		)`,
	}

	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}
