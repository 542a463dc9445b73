package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"skelrec/internal/config"
)

// Store indexes recording sessions in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Open initializes or connects to the catalog database. Sessions still
// marked as recording are from a previous daemon run and become
// interrupted.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CatalogPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	ctx := context.Background()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := store.markInterrupted(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a new session for path and returns it with its assigned
// id and start time.
func (s *Store) Begin(ctx context.Context, path, device string, external bool) (*Entry, error) {
	entry := &Entry{
		ID:        uuid.NewString(),
		Path:      path,
		Device:    device,
		Status:    StatusRecording,
		StartedAt: s.now().UTC(),
		External:  external,
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO recordings (id, path, device, status, lines_written, started_at, external)
         VALUES (?, ?, ?, ?, 0, ?, ?)`,
		entry.ID,
		entry.Path,
		nullableString(entry.Device),
		entry.Status,
		entry.StartedAt.Format(timeLayout),
		boolToInt(entry.External),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	return entry, nil
}

// Finish closes a session. A non-empty failure marks it failed.
func (s *Store) Finish(ctx context.Context, id string, lines uint64, stoppedAt time.Time, failure string) error {
	status := StatusCompleted
	if strings.TrimSpace(failure) != "" {
		status = StatusFailed
	}
	if stoppedAt.IsZero() {
		stoppedAt = s.now()
	}
	err := s.execWithRetry(ctx,
		`UPDATE recordings
         SET status = ?, lines_written = ?, stopped_at = ?, failure = ?
         WHERE id = ?`,
		status,
		int64(lines),
		stoppedAt.UTC().Format(timeLayout),
		nullableString(failure),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish recording %s: %w", id, err)
	}
	return nil
}

// Get fetches a session by id. It returns nil, nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM recordings WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return entry, nil
}

// List returns sessions newest first. limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM recordings ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of sessions in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM recordings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return n, nil
}

func (s *Store) markInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET status = ?, failure = 'daemon exited while recording'
         WHERE status = ?`,
		StatusInterrupted,
		StatusRecording,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted recordings: %w", err)
	}
	return res.RowsAffected()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

const entryColumns = "id, path, device, status, lines_written, started_at, stopped_at, failure, external"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id         string
		path       string
		device     sql.NullString
		status     string
		lines      int64
		startedRaw string
		stoppedRaw sql.NullString
		failure    sql.NullString
		external   int64
	)
	if err := scanner.Scan(&id, &path, &device, &status, &lines, &startedRaw, &stoppedRaw, &failure, &external); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:       id,
		Path:     path,
		Device:   device.String,
		Status:   Status(status),
		Failure:  failure.String,
		External: external != 0,
	}
	if lines > 0 {
		entry.Lines = uint64(lines)
	}
	if started, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		entry.StartedAt = started
	}
	if stoppedRaw.Valid {
		if stopped, err := time.Parse(time.RFC3339Nano, stoppedRaw.String); err == nil {
			entry.StoppedAt = &stopped
		}
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
