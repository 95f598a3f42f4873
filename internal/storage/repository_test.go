package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRows() []ingest.RawRow {
	return []ingest.RawRow{
		{TxDate: "2024-03-01 12:00:00", MerAddr: "桃李园", MerName: "桃李园_一层", TxAmt: 1250, Balance: 8750, TxCode: "1210"},
		{TxDate: "2024-03-01 12:05:00", MerAddr: "-", MerName: "桃李园_饮料", TxAmt: 300, Balance: 8450, TxCode: "1210"},
	}
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := repo.CreateSession(ctx, "key-1", "2020010001"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	user, err := repo.ResolveSession(ctx, "key-1")
	if err != nil || user != "2020010001" {
		t.Fatalf("ResolveSession() = %q, %v", user, err)
	}

	if _, err := repo.ResolveSession(ctx, "nope"); !errors.Is(err, core.ErrMissingSession) {
		t.Fatalf("expected ErrMissingSession, got %v", err)
	}
	if err := repo.CreateSession(ctx, "key-1", "someone-else"); err == nil {
		t.Fatalf("expected duplicate session key to fail")
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.CreateSession(ctx, "key-1", "u1"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := repo.LoadSnapshot(ctx, "key-1"); !errors.Is(err, core.ErrSnapshotPending) {
		t.Fatalf("expected ErrSnapshotPending before ingestion, got %v", err)
	}
	if _, err := repo.LoadSnapshot(ctx, "unknown"); !errors.Is(err, core.ErrMissingSession) {
		t.Fatalf("expected ErrMissingSession, got %v", err)
	}

	updated := time.Date(2024, 12, 30, 9, 15, 0, 123, core.ReportZone)
	if err := repo.SaveSnapshot(ctx, "u1", sampleRows(), updated); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	snap, err := repo.LoadSnapshot(ctx, "key-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap.UserID != "u1" || len(snap.Rows) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Rows[1] != sampleRows()[1] {
		t.Errorf("row changed in storage: %+v", snap.Rows[1])
	}
	if !snap.LastUpdated.Equal(updated) {
		t.Errorf("LastUpdated = %s, want %s", snap.LastUpdated, updated)
	}

	// A second session for the same user sees the same snapshot, and a
	// newer save replaces it.
	if err := repo.CreateSession(ctx, "key-2", "u1"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := repo.SaveSnapshot(ctx, "u1", sampleRows()[:1], updated.Add(time.Hour)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	snap, err = repo.LoadSnapshot(ctx, "key-2")
	if err != nil || len(snap.Rows) != 1 {
		t.Fatalf("LoadSnapshot() = %+v, %v", snap, err)
	}
}

func TestEmptySnapshotIsNotPending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.CreateSession(ctx, "key-1", "u1"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := repo.SaveSnapshot(ctx, "u1", nil, time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	snap, err := repo.LoadSnapshot(ctx, "key-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(snap.Rows))
	}
}

func TestMarkSessionFailed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.CreateSession(ctx, "key-1", "u1"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	cause := core.NewError(core.ErrDecryption, "fetch page 0", errors.New("invalid padding"))
	if err := repo.MarkSessionFailed(ctx, "key-1", cause); err != nil {
		t.Fatalf("MarkSessionFailed() error = %v", err)
	}
	_, err := repo.LoadSnapshot(ctx, "key-1")
	if !errors.Is(err, core.ErrDecryption) {
		t.Fatalf("expected stored ErrDecryption, got %v", err)
	}

	// A later successful ingestion clears the failure.
	if err := repo.SaveSnapshot(ctx, "u1", sampleRows(), time.Now()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if _, err := repo.LoadSnapshot(ctx, "key-1"); err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}

	if err := repo.MarkSessionFailed(ctx, "missing", cause); !errors.Is(err, core.ErrMissingSession) {
		t.Fatalf("expected ErrMissingSession, got %v", err)
	}
}

func TestPurgeSessions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if err := repo.CreateSession(ctx, "old", "u1"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	repo.now = func() time.Time { return now }
	if err := repo.CreateSession(ctx, "new", "u1"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	n, err := repo.PurgeSessions(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PurgeSessions() = %d, %v; want 1", n, err)
	}
	if _, err := repo.ResolveSession(ctx, "old"); !errors.Is(err, core.ErrMissingSession) {
		t.Errorf("expected old session to be gone, got %v", err)
	}
	if _, err := repo.ResolveSession(ctx, "new"); err != nil {
		t.Errorf("expected new session to remain, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}
