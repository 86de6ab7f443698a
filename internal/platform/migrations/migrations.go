// Package migrations holds the schema shared by the PostgreSQL and SQLite
// stores. Statements are idempotent and written in the dialect subset both
// engines accept.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sql.DB, *sql.Tx and their sqlx wrappers.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var statements = []string{
	`CREATE TABLE IF NOT EXISTS kozak_sequences (
		name       TEXT PRIMARY KEY,
		next_value BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kozak_resource_balances (
		owner    TEXT     NOT NULL,
		resource SMALLINT NOT NULL,
		amount   BIGINT   NOT NULL CHECK (amount > 0),
		PRIMARY KEY (owner, resource)
	)`,
	`CREATE TABLE IF NOT EXISTS kozak_items (
		id         BIGINT    PRIMARY KEY,
		item_type  BIGINT    NOT NULL,
		owner      TEXT      NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS kozak_items_owner_idx ON kozak_items (owner)`,
	`CREATE TABLE IF NOT EXISTS kozak_currency_balances (
		owner  TEXT   PRIMARY KEY,
		amount BIGINT NOT NULL CHECK (amount > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS kozak_listings (
		id         BIGINT    PRIMARY KEY,
		item_id    BIGINT    NOT NULL,
		seller     TEXT      NOT NULL,
		price      BIGINT    NOT NULL CHECK (price > 0),
		status     TEXT      NOT NULL,
		buyer      TEXT      NOT NULL DEFAULT '',
		fee        BIGINT    NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS kozak_listings_active_item_idx
		ON kozak_listings (item_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS kozak_grants (
		ledger     TEXT      NOT NULL,
		principal  TEXT      NOT NULL,
		ops        SMALLINT  NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (ledger, principal)
	)`,
}

// Count is the number of statements Apply executes.
func Count() int { return len(statements) }

// Apply runs every migration statement in order.
func Apply(ctx context.Context, db Execer) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
