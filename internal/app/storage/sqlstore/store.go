// Package sqlstore implements storage.Store on PostgreSQL or SQLite. Every
// Update runs in one database transaction; on PostgreSQL the transaction is
// SERIALIZABLE and retried when the server reports a serialization failure.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/internal/platform/migrations"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Dialect selects SQL behaviour that differs between engines.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DefaultMaxRetries bounds serialization-failure retries per Update.
const DefaultMaxRetries = 5

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ParseDialect maps a driver name onto a dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported sql driver %q", driver)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Store is a transactional SQL store.
type Store struct {
	db         *sqlx.DB
	dialect    Dialect
	maxRetries int
	log        *logger.Logger
}

var _ storage.Store = (*Store)(nil)

// New wraps an open database handle. SQLite handles are limited to one
// connection so writers are serialized by the pool.
func New(db *sql.DB, dialect Dialect, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("sqlstore")
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	return &Store{
		db:         sqlx.NewDb(db, dialect.DriverName()),
		dialect:    dialect,
		maxRetries: DefaultMaxRetries,
		log:        log,
	}
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return migrations.Apply(ctx, s.db)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a read-write transaction and commits when it returns nil.
func (s *Store) Update(ctx context.Context, fn storage.TxFunc) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.log.WithError(err).Debugf("retrying serialization failure (attempt %d)", attempt+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
			}
		}
		err = s.run(ctx, fn, false)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("transaction aborted after %d retries: %w", s.maxRetries, err)
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn storage.TxFunc) error {
	return s.run(ctx, fn, true)
}

func (s *Store) txOptions(readOnly bool) *sql.TxOptions {
	if s.dialect != Postgres {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: readOnly}
}

func (s *Store) run(ctx context.Context, fn storage.TxFunc, readOnly bool) (err error) {
	tx, err := s.db.BeginTxx(ctx, s.txOptions(readOnly))
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txn{tx: tx, readOnly: readOnly}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.WithError(rbErr).Warn("rollback failed")
		}
		return err
	}
	if readOnly {
		return tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
