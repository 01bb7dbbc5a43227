package terminology

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/tissguard/validator/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseInitMu sync.Mutex

// SQLiteConfig captures SQLite store settings.
type SQLiteConfig struct {
	// Path is the database file or ":memory:".
	Path string

	// BusyTimeout configures PRAGMA busy_timeout.
	BusyTimeout time.Duration
}

// SQLiteStore keeps the table in a SQLite database. Imports run in one
// transaction; with WAL, readers keep seeing the previous table until commit.
type SQLiteStore struct {
	cfg SQLiteConfig

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a store; call Init before use.
func NewSQLiteStore(cfg SQLiteConfig) *SQLiteStore {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	return &SQLiteStore{cfg: cfg}
}

func buildDSN(cfg SQLiteConfig) string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
	}
	if cfg.Path == ":memory:" {
		return ":memory:?" + strings.Join(pragmas, "&")
	}
	pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	return "file:" + cfg.Path + "?" + strings.Join(pragmas, "&")
}

// Init opens the database and applies the embedded migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", buildDSN(s.cfg))
	if err != nil {
		return fmt.Errorf("sqlite: open database: %w", err)
	}
	if s.cfg.Path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	logger.Debug("sqlite store ready", "path", s.cfg.Path)
	return nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	gooseInitMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseInitMu.Unlock()
	}()
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlite: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreNotInitialized
	}
	return s.db, nil
}

// Exists reports whether the code is in the table.
func (s *SQLiteStore) Exists(ctx context.Context, code string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM tuss_codes WHERE code = ?`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: exists %q: %w", code, err)
	}
	return true, nil
}

// Count returns the number of codes.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tuss_codes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// BulkReplace clears the table and inserts entries in a single transaction.
func (s *SQLiteStore) BulkReplace(ctx context.Context, entries []Entry) (n int, err error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	norm := Normalize(entries)

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rb := tx.Rollback(); rb != nil {
				logger.Warn("sqlite: rollback failed", "error", rb)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tuss_codes`); err != nil {
		return 0, fmt.Errorf("sqlite: clear table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tuss_codes (code, description) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range norm {
		if _, err = stmt.ExecContext(ctx, e.Code, e.Description); err != nil {
			return 0, fmt.Errorf("sqlite: insert %q: %w", e.Code, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO tuss_imports (id, codes) VALUES (?, ?)`,
		uuid.NewString(), len(norm)); err != nil {
		return 0, fmt.Errorf("sqlite: record import: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return len(norm), nil
}

// ImportRecord describes one completed BulkReplace.
type ImportRecord struct {
	ID         string
	Codes      int
	ImportedAt string
}

// LastImport returns the most recent import, if any.
func (s *SQLiteStore) LastImport(ctx context.Context) (ImportRecord, bool, error) {
	db, err := s.conn()
	if err != nil {
		return ImportRecord{}, false, err
	}
	const q = `SELECT id, codes, imported_at FROM tuss_imports ORDER BY imported_at DESC, rowid DESC LIMIT 1`
	var rec ImportRecord
	err = db.QueryRowContext(ctx, q).Scan(&rec.ID, &rec.Codes, &rec.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportRecord{}, false, nil
	}
	if err != nil {
		return ImportRecord{}, false, fmt.Errorf("sqlite: last import: %w", err)
	}
	return rec, true, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
