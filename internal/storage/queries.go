package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements of the store.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SessionRow struct {
	SessionKey     string
	UserID         string
	CreatedAt      string
	FailureKind    sql.NullString
	FailureMessage sql.NullString
}

type SnapshotRow struct {
	UserID      string
	RawRows     string
	RowCount    int64
	LastUpdated string
}

const createSession = `INSERT INTO sessions (session_key, user_id, created_at) VALUES (?, ?, ?)`

type CreateSessionParams struct {
	SessionKey string
	UserID     string
	CreatedAt  string
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	_, err := q.db.ExecContext(ctx, createSession, arg.SessionKey, arg.UserID, arg.CreatedAt)
	return err
}

const getSession = `SELECT session_key, user_id, created_at, failure_kind, failure_message FROM sessions WHERE session_key = ?`

func (q *Queries) GetSession(ctx context.Context, sessionKey string) (SessionRow, error) {
	row := q.db.QueryRowContext(ctx, getSession, sessionKey)
	var s SessionRow
	err := row.Scan(&s.SessionKey, &s.UserID, &s.CreatedAt, &s.FailureKind, &s.FailureMessage)
	return s, err
}

const markSessionFailed = `UPDATE sessions SET failure_kind = ?, failure_message = ? WHERE session_key = ?`

type MarkSessionFailedParams struct {
	FailureKind    string
	FailureMessage string
	SessionKey     string
}

func (q *Queries) MarkSessionFailed(ctx context.Context, arg MarkSessionFailedParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSessionFailed, arg.FailureKind, arg.FailureMessage, arg.SessionKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const clearSessionFailures = `UPDATE sessions SET failure_kind = NULL, failure_message = NULL WHERE user_id = ?`

func (q *Queries) ClearSessionFailures(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, clearSessionFailures, userID)
	return err
}

const upsertSnapshot = `INSERT INTO snapshots (user_id, raw_rows, row_count, last_updated) VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET raw_rows = excluded.raw_rows, row_count = excluded.row_count, last_updated = excluded.last_updated`

type UpsertSnapshotParams struct {
	UserID      string
	RawRows     string
	RowCount    int64
	LastUpdated string
}

func (q *Queries) UpsertSnapshot(ctx context.Context, arg UpsertSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, upsertSnapshot, arg.UserID, arg.RawRows, arg.RowCount, arg.LastUpdated)
	return err
}

const getSnapshot = `SELECT user_id, raw_rows, row_count, last_updated FROM snapshots WHERE user_id = ?`

func (q *Queries) GetSnapshot(ctx context.Context, userID string) (SnapshotRow, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, userID)
	var s SnapshotRow
	err := row.Scan(&s.UserID, &s.RawRows, &s.RowCount, &s.LastUpdated)
	return s, err
}

const deleteSessionsBefore = `DELETE FROM sessions WHERE created_at < ?`

func (q *Queries) DeleteSessionsBefore(ctx context.Context, createdAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSessionsBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
