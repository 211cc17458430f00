// Package sqlite provides the durable Store: the action log and committed
// reducer state in one SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/batchmessaging/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/integrity"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/sqlite/migrations"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrBusy indicates the database stayed locked past the busy timeout.
var ErrBusy = errors.New("sqlite store busy")

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store is a SQLite-backed storage.Store.
type Store struct {
	sqlDB   *sql.DB
	keyring *integrity.Keyring
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the store at path, applies migrations, and seeds the initial
// reducer state. A nil keyring stores batches unsigned.
func Open(ctx context.Context, path string, keyring *integrity.Keyring, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// Writers take the lock at BEGIN so the log tail read inside an append
	// cannot change before the insert.
	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	initial := action.InitialState()
	if _, err := sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO batch_state (id, highest_msg_num, action_state, updated_at) VALUES (1, 0, ?, 0)`,
		initial[:],
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("seed batch state: %w", err)
	}

	store := &Store{sqlDB: sqlDB, keyring: keyring, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Close closes the underlying SQLite database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) check(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func isSQLiteBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

func wrapBusy(op string, err error) error {
	if isSQLiteBusyError(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrBusy, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
