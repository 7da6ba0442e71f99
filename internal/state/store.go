// Package state manages the SQLite database that holds the device-local working
// copy of users, shops, products, and bills. It is the source of truth for
// every read the application serves, online or not.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id    TEXT    PRIMARY KEY,
    name       TEXT    NOT NULL DEFAULT '',
    email      TEXT    NOT NULL DEFAULT '',
    role       TEXT    NOT NULL DEFAULT '',
    shop_id    TEXT    NOT NULL DEFAULT '',
    is_active  INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_users_email   ON users (email);
CREATE INDEX IF NOT EXISTS idx_users_role    ON users (role);
CREATE INDEX IF NOT EXISTS idx_users_shop_id ON users (shop_id);

CREATE TABLE IF NOT EXISTS shops (
    shop_id        TEXT    PRIMARY KEY,
    shop_name      TEXT    NOT NULL DEFAULT '',
    owner_id       TEXT    NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL DEFAULT 0,
    upi_id         TEXT    NOT NULL DEFAULT '',
    upi_payee_name TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_shops_owner_id ON shops (owner_id);

CREATE TABLE IF NOT EXISTS products (
    id      TEXT PRIMARY KEY,
    shop_id TEXT NOT NULL,
    name    TEXT NOT NULL,
    price   REAL NOT NULL DEFAULT 0,
    gst     REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_products_shop_id ON products (shop_id);

CREATE TABLE IF NOT EXISTS bills (
    bill_id        TEXT    PRIMARY KEY,
    shop_id        TEXT    NOT NULL,
    staff_id       TEXT    NOT NULL DEFAULT '',
    staff_name     TEXT    NOT NULL DEFAULT '',
    subtotal       REAL    NOT NULL DEFAULT 0,
    discount       REAL    NOT NULL DEFAULT 0,
    tax            REAL    NOT NULL DEFAULT 0,
    total_amount   REAL    NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL,
    synced_at      INTEGER,
    sync_status    TEXT    NOT NULL DEFAULT 'PENDING',
    payment_status TEXT    NOT NULL DEFAULT 'UNPAID',
    revision       INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_bills_shop_id       ON bills (shop_id);
CREATE INDEX IF NOT EXISTS idx_bills_staff_id      ON bills (staff_id);
CREATE INDEX IF NOT EXISTS idx_bills_created_at    ON bills (created_at);
CREATE INDEX IF NOT EXISTS idx_bills_sync_status   ON bills (sync_status);
CREATE INDEX IF NOT EXISTS idx_bills_shop_created  ON bills (shop_id, created_at);
CREATE INDEX IF NOT EXISTS idx_bills_staff_created ON bills (staff_id, created_at);

CREATE TABLE IF NOT EXISTS bill_items (
    item_id    TEXT    PRIMARY KEY,
    bill_id    TEXT    NOT NULL REFERENCES bills (bill_id) ON DELETE CASCADE,
    position   INTEGER NOT NULL,
    name       TEXT    NOT NULL,
    qty        INTEGER NOT NULL,
    rate       REAL    NOT NULL,
    line_total REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bill_items_bill_id ON bill_items (bill_id);

CREATE TABLE IF NOT EXISTS sync_markers (
    scope       TEXT    PRIMARY KEY,
    restored_at INTEGER NOT NULL
);
`

// Store is the SQLite-backed local store.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the local database:
// ~/.local/share/saleslive/local.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "saleslive", "local.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL. This also makes every
	// statement atomic with respect to concurrent callers.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- sync markers ------------------------------------------------------------

// SyncMarker returns when the given restore scope was last pulled from the
// remote store. ok is false if it never was.
func (s *Store) SyncMarker(ctx context.Context, scope string) (at time.Time, ok bool, err error) {
	var ms int64
	err = s.db.QueryRowContext(ctx, `SELECT restored_at FROM sync_markers WHERE scope = ?`, scope).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading sync marker %q: %w", scope, err)
	}
	return fromMillis(ms), true, nil
}

// SetSyncMarker records that scope was restored from the remote store at at.
func (s *Store) SetSyncMarker(ctx context.Context, scope string, at time.Time) error {
	const q = `
		INSERT INTO sync_markers (scope, restored_at) VALUES (?, ?)
		ON CONFLICT(scope) DO UPDATE SET restored_at = excluded.restored_at`
	if _, err := s.db.ExecContext(ctx, q, scope, toMillis(at)); err != nil {
		return fmt.Errorf("writing sync marker %q: %w", scope, err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scan helpers can be reused.
type scanner interface {
	Scan(dest ...any) error
}

// execer matches *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
