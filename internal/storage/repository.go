package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
	"github.com/yf-yang/thu-food-report/internal/log"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Snapshot is the last fetched raw dataset of a user.
type Snapshot struct {
	UserID      string
	Rows        []ingest.RawRow
	LastUpdated time.Time
}

// failureKinds maps stored failure names onto error kinds.
var failureKinds = map[string]error{
	"network":    core.ErrNetwork,
	"decryption": core.ErrDecryption,
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateSession binds a new session key to a user.
func (r *SQLiteRepository) CreateSession(ctx context.Context, sessionKey, userID string) error {
	err := r.queries.CreateSession(ctx, CreateSessionParams{
		SessionKey: sessionKey,
		UserID:     userID,
		CreatedAt:  formatTime(r.now()),
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	slog.DebugContext(ctx, "Session stored", log.FieldComponent, log.ComponentStorage, log.FieldSession, sessionKey)
	return nil
}

// ResolveSession returns the user a session key belongs to.
func (r *SQLiteRepository) ResolveSession(ctx context.Context, sessionKey string) (string, error) {
	s, err := r.getSession(ctx, sessionKey)
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

func (r *SQLiteRepository) getSession(ctx context.Context, sessionKey string) (SessionRow, error) {
	s, err := r.queries.GetSession(ctx, sessionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, core.NewError(core.ErrMissingSession, "resolve session", nil)
	}
	if err != nil {
		return SessionRow{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// SaveSnapshot replaces the user's stored rows and clears failures
// recorded against any of the user's sessions.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, userID string, rows []ingest.RawRow, lastUpdated time.Time) error {
	if rows == nil {
		rows = []ingest.RawRow{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.UpsertSnapshot(ctx, UpsertSnapshotParams{
		UserID:      userID,
		RawRows:     string(data),
		RowCount:    int64(len(rows)),
		LastUpdated: formatTime(lastUpdated),
	}); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	if err := q.ClearSessionFailures(ctx, userID); err != nil {
		return fmt.Errorf("clear session failures: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		log.FieldRows, len(rows),
		"last_updated", lastUpdated)
	return nil
}

// MarkSessionFailed records why ingestion for a session gave up, so later
// report requests surface the failure instead of waiting forever.
func (r *SQLiteRepository) MarkSessionFailed(ctx context.Context, sessionKey string, cause error) error {
	kind := "internal"
	for name, k := range failureKinds {
		if errors.Is(cause, k) {
			kind = name
			break
		}
	}
	n, err := r.queries.MarkSessionFailed(ctx, MarkSessionFailedParams{
		FailureKind:    kind,
		FailureMessage: cause.Error(),
		SessionKey:     sessionKey,
	})
	if err != nil {
		return fmt.Errorf("mark session failed: %w", err)
	}
	if n == 0 {
		return core.NewError(core.ErrMissingSession, "mark session failed", nil)
	}
	slog.WarnContext(ctx, "Session marked as failed", log.FieldComponent, log.ComponentStorage, log.FieldSession, sessionKey, "failure", kind)
	return nil
}

// LoadSnapshot resolves a session and returns its user's snapshot. A
// session whose ingestion has not finished yields core.ErrSnapshotPending;
// one whose ingestion failed yields the recorded failure kind.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, sessionKey string) (Snapshot, error) {
	s, err := r.getSession(ctx, sessionKey)
	if err != nil {
		return Snapshot{}, err
	}

	row, err := r.queries.GetSnapshot(ctx, s.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		if s.FailureKind.Valid {
			return Snapshot{}, storedFailure(s)
		}
		return Snapshot{}, core.NewError(core.ErrSnapshotPending, "load snapshot", nil)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	if s.FailureKind.Valid {
		// A newer fetch failed; the older snapshot is still served.
		slog.WarnContext(ctx, "Serving snapshot older than a failed ingestion",
			log.FieldComponent, log.ComponentStorage, log.FieldSession, sessionKey, "failure", s.FailureKind.String)
	}

	var rows []ingest.RawRow
	if err := json.Unmarshal([]byte(row.RawRows), &rows); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot rows: %w", err)
	}
	updated, err := time.Parse(timeLayout, row.LastUpdated)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot time: %w", err)
	}
	return Snapshot{UserID: row.UserID, Rows: rows, LastUpdated: updated}, nil
}

// PurgeSessions deletes sessions created before cutoff. Snapshots are kept
// so a returning user can be served from a new session.
func (r *SQLiteRepository) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.queries.DeleteSessionsBefore(ctx, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Expired sessions purged", log.FieldComponent, log.ComponentStorage, "count", n)
	}
	return n, nil
}

func storedFailure(s SessionRow) error {
	kind, ok := failureKinds[s.FailureKind.String]
	if !ok {
		return fmt.Errorf("ingestion failed: %s", s.FailureMessage.String)
	}
	return core.NewError(kind, "ingest", errors.New(s.FailureMessage.String))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
