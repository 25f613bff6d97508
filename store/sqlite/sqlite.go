/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements finance.BlobStore (the persisted wallet blob) and
  finance.ActivityLog (the append-only activity trail) on one SQLite file.

INTERFACES IMPLEMENTED:
  finance.BlobStore:   Get/Put of opaque values by key
  finance.ActivityLog: Append/Recent of activity entries

APPEND-ONLY ENFORCEMENT:
  The activity table is append-only:
  - No UPDATE statements on activity
  - No DELETE statements on activity, except Reset
  Blobs are overwritten in place (last-writer-wins).

KEY TABLES:
  blobs:    key -> JSON value
  activity: Immutable log of applied effects

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

MIGRATIONS:
  Versioned SQL files under migrations/ are embedded and applied with
  golang-migrate on New(), over a separate connection.

USAGE:
  store, err := sqlite.New("./data/bensave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  persistence := finance.NewPersistence(store)

SEE ALSO:
  - finance/persist.go: Blob format
  - finance/activity.go: Activity log contract
  - finance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/bensave/wallet/finance"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ finance.BlobStore   = (*Store)(nil)
	_ finance.ActivityLog = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dsnFor(dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps shared in-memory databases alive and
	// serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// dsnFor builds a go-sqlite3 DSN. In-memory databases get a unique shared
// name so the migration connection sees the same database.
func dsnFor(dbPath string) string {
	if dbPath == MemoryPath || dbPath == "" {
		return "file:bensave-" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	}
	return "file:" + dbPath + "?_foreign_keys=on&_journal_mode=WAL"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(dsn string) error {
	migrateDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	// migrate.Close closes migrateDB through the driver.

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		migrateDB.Close()
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// BLOB STORE (finance.BlobStore interface)
// =============================================================================

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put overwrites the value stored under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write blob %q: %w", key, err)
	}
	return nil
}

// =============================================================================
// ACTIVITY LOG (finance.ActivityLog interface)
// =============================================================================

// Append adds an entry to the activity log.
func (s *Store) Append(ctx context.Context, e finance.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	metadataJSON, _ := json.Marshal(e.Metadata)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity
		(id, kind, occurred_at_ms, amount, description, balance_after,
		 idempotency_key, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		string(e.Kind),
		e.At.UnixMilli(),
		e.Amount.String(),
		e.Description,
		e.BalanceAfter.String(),
		nullString(e.IdempotencyKey),
		string(metadataJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return finance.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) Recent(ctx context.Context, limit int) ([]finance.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, occurred_at_ms, amount, description, balance_after,
		       idempotency_key, metadata_json
		FROM activity
		ORDER BY occurred_at_ms DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []finance.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (finance.Entry, error) {
	var (
		e               finance.Entry
		kind            string
		atMillis        int64
		amount, balance string
		description     sql.NullString
		idempotencyKey  sql.NullString
		metadataJSON    sql.NullString
	)
	if err := rows.Scan(&e.ID, &kind, &atMillis, &amount, &description, &balance, &idempotencyKey, &metadataJSON); err != nil {
		return e, fmt.Errorf("failed to scan activity: %w", err)
	}

	e.Kind = finance.ActivityKind(kind)
	e.At = time.UnixMilli(atMillis)
	e.Amount = parseDecimal(amount)
	e.BalanceAfter = parseDecimal(balance)
	e.Description = description.String
	e.IdempotencyKey = idempotencyKey.String
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &e.Metadata)
	}
	return e, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// ClearActivity deletes the activity log. The wallet blob is left alone.
func (s *Store) ClearActivity(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM activity"); err != nil {
		return fmt.Errorf("failed to clear activity: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
