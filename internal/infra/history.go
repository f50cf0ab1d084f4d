package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
)

// HistoryStore implements domain.SessionLogger and domain.HistoryReader
// on a SQLCipher encrypted SQLite database.
type HistoryStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// NewHistoryStore opens (or creates) the encrypted history database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewHistoryStore(dataDir string, key []byte, logger *zap.Logger) (*HistoryStore, error) {
	if err := ensureDir(dataDir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, HistoryFileName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// A wrong key only surfaces on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	store := &HistoryStore{db: db, dbPath: dbPath, logger: logger}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *HistoryStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		release_error TEXT NOT NULL DEFAULT '',
		degraded INTEGER NOT NULL DEFAULT 0,
		killed INTEGER NOT NULL DEFAULT 0,
		kill_failures INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions (started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *HistoryStore) Path() string {
	return s.dbPath
}

// SessionStarted inserts the running row so a crashed session still shows
// up in reports.
func (s *HistoryStore) SessionStarted(ctx context.Context, rec domain.SessionRecord) error {
	rec.Outcome = domain.OutcomeRunning
	return s.upsert(ctx, rec)
}

// Record finalises the session row.
func (s *HistoryStore) Record(ctx context.Context, rec domain.SessionRecord) error {
	if err := s.upsert(ctx, rec); err != nil {
		return err
	}
	s.logger.Debug("session recorded",
		zap.String("id", rec.ID),
		zap.String("outcome", string(rec.Outcome)))
	return nil
}

func (s *HistoryStore) upsert(ctx context.Context, rec domain.SessionRecord) error {
	var ended int64
	if !rec.EndedAt.IsZero() {
		ended = rec.EndedAt.UnixNano()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(id, task, started_at, ended_at, outcome, reason, release_error, degraded, killed, kill_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Task, rec.StartedAt.UnixNano(), ended, string(rec.Outcome),
		rec.Reason, rec.ReleaseError, boolToInt(rec.Degraded), rec.Killed, rec.KillFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to store session %s: %w", rec.ID, err)
	}
	return nil
}

// List returns every session ordered by start time.
func (s *HistoryStore) List(ctx context.Context) ([]domain.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, started_at, ended_at, outcome, reason, release_error, degraded, killed, kill_failures
		FROM sessions ORDER BY started_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SessionRecord
	for rows.Next() {
		var (
			rec            domain.SessionRecord
			started, ended int64
			outcome        string
			degraded       int
		)
		if err := rows.Scan(&rec.ID, &rec.Task, &started, &ended, &outcome,
			&rec.Reason, &rec.ReleaseError, &degraded, &rec.Killed, &rec.KillFailures); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(0, started)
		if ended != 0 {
			rec.EndedAt = time.Unix(0, ended)
		}
		rec.Outcome = domain.Outcome(outcome)
		rec.Degraded = degraded != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure HistoryStore implements both interfaces.
var _ domain.SessionLogger = (*HistoryStore)(nil)
var _ domain.HistoryReader = (*HistoryStore)(nil)
