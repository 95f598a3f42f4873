package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yf-yang/thu-food-report/internal/amqp"
	"github.com/yf-yang/thu-food-report/internal/analytics"
	"github.com/yf-yang/thu-food-report/internal/cache"
	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
	"github.com/yf-yang/thu-food-report/internal/log"
	"github.com/yf-yang/thu-food-report/internal/storage"
)

// ErrInvalidInput marks requests rejected before any work is done.
var ErrInvalidInput = errors.New("invalid input")

// SessionStore persists sessions and raw snapshots.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionKey, userID string) error
	SaveSnapshot(ctx context.Context, userID string, rows []ingest.RawRow, lastUpdated time.Time) error
	MarkSessionFailed(ctx context.Context, sessionKey string, cause error) error
	LoadSnapshot(ctx context.Context, sessionKey string) (storage.Snapshot, error)
}

// Fetcher retrieves a user's raw rows from the card service.
type Fetcher interface {
	Fetch(ctx context.Context, client ingest.Doer, cred ingest.Credentials) ([]ingest.RawRow, error)
}

// Publisher hands ingestion to the worker.
type Publisher interface {
	PublishIngestRequest(ctx context.Context, msg *amqp.IngestRequest) error
}

// Options configures a ReportService.
type Options struct {
	Policy       core.Policy
	FetchTimeout time.Duration
	CacheSize    int
	CacheTTL     time.Duration
	// Publisher enables asynchronous ingestion. Nil ingests inline.
	Publisher Publisher
}

// Session is the outcome of CreateSession.
type Session struct {
	Key     string
	Pending bool
}

// CachedReport is a built report with the user whose snapshot it came from.
type CachedReport struct {
	UserID string
	Report core.Report
}

// ReportService orchestrates ingestion into the store and report
// generation from it.
type ReportService struct {
	store        SessionStore
	fetcher      Fetcher
	client       ingest.Doer
	publisher    Publisher
	policy       core.Policy
	fetchTimeout time.Duration

	reports *cache.LRUCache[CachedReport]
	group   singleflight.Group
	now     func() time.Time
}

func NewReportService(store SessionStore, fetcher Fetcher, client ingest.Doer, opts Options) *ReportService {
	return &ReportService{
		store:        store,
		fetcher:      fetcher,
		client:       client,
		publisher:    opts.Publisher,
		policy:       opts.Policy,
		fetchTimeout: opts.FetchTimeout,
		reports:      cache.NewLRUCache[CachedReport](opts.CacheSize, opts.CacheTTL),
		now:          time.Now,
	}
}

// ReportCache exposes the report cache for periodic cleanup.
func (s *ReportService) ReportCache() *cache.LRUCache[CachedReport] {
	return s.reports
}

// CreateSession registers a new session for the user and starts ingestion.
// With a publisher the fetch runs in the worker and the session is
// returned pending; if publishing fails the fetch runs inline instead.
func (s *ReportService) CreateSession(ctx context.Context, cred ingest.Credentials) (Session, error) {
	cred.UserID = strings.TrimSpace(cred.UserID)
	cred.Token = strings.TrimSpace(cred.Token)
	if cred.UserID == "" || cred.Token == "" {
		return Session{}, fmt.Errorf("%w: id and serviceHall are required", ErrInvalidInput)
	}

	key := uuid.NewString()
	if err := s.store.CreateSession(ctx, key, cred.UserID); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	if s.publisher != nil {
		err := s.publisher.PublishIngestRequest(ctx, amqp.NewIngestRequest(key, cred.UserID, cred.Token))
		if err == nil {
			return Session{Key: key, Pending: true}, nil
		}
		slog.ErrorContext(ctx, "Failed to publish ingest request, ingesting inline",
			log.FieldComponent, log.ComponentReport,
			log.FieldSession, key,
			log.FieldError, err)
	}

	if err := s.Ingest(ctx, key, cred); err != nil {
		return Session{Key: key}, err
	}
	return Session{Key: key}, nil
}

// Ingest fetches the user's rows and replaces the stored snapshot. A fetch
// failure is recorded against the session before it is returned.
func (s *ReportService) Ingest(ctx context.Context, sessionKey string, cred ingest.Credentials) error {
	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	start := s.now()
	rows, err := s.fetcher.Fetch(fetchCtx, s.client, cred)
	if err != nil {
		if ctx.Err() == nil {
			// Our own fetch timeout expired: the card service is too slow.
			if core.KindOf(err) == nil && errors.Is(err, context.DeadlineExceeded) {
				err = core.NewError(core.ErrNetwork, "fetch timed out", err)
			}
			if merr := s.store.MarkSessionFailed(ctx, sessionKey, err); merr != nil {
				slog.ErrorContext(ctx, "Failed to record ingestion failure",
					log.FieldComponent, log.ComponentReport,
					log.FieldOperation, log.OpIngest,
					log.FieldSession, sessionKey,
					log.FieldError, merr)
			}
		}
		return fmt.Errorf("ingest session: %w", err)
	}

	if err := s.store.SaveSnapshot(ctx, cred.UserID, rows, s.now()); err != nil {
		return fmt.Errorf("ingest session: %w", err)
	}
	// Snapshots are per user, so every session of the user is stale now.
	evicted := s.reports.DeleteFunc(func(_ string, c CachedReport) bool {
		return c.UserID == cred.UserID
	})

	slog.InfoContext(ctx, "Ingestion completed",
		log.FieldComponent, log.ComponentReport,
		log.FieldOperation, log.OpIngest,
		log.FieldSession, sessionKey,
		log.FieldRows, len(rows),
		"evicted_reports", evicted,
		log.FieldDuration, s.now().Sub(start).Milliseconds())
	return nil
}

// GenerateReport builds the report of a session from its stored snapshot.
// Reports are cached per session and concurrent requests for one session
// share a single build.
func (s *ReportService) GenerateReport(ctx context.Context, sessionKey string) (core.Report, error) {
	if c, ok := s.reports.Get(sessionKey); ok {
		slog.DebugContext(ctx, "Report served from cache",
			log.FieldComponent, log.ComponentReport,
			log.FieldSession, sessionKey,
			log.FieldCacheHit, true)
		return c.Report, nil
	}

	v, err, shared := s.group.Do(sessionKey, func() (any, error) {
		snap, err := s.store.LoadSnapshot(ctx, sessionKey)
		if err != nil {
			return core.Report{}, err
		}
		report, err := analytics.Analyze(snap.Rows, s.policy, analytics.Options{
			AsOf:        s.now(),
			LastUpdated: snap.LastUpdated,
		})
		if err != nil {
			return core.Report{}, err
		}
		s.reports.Set(sessionKey, CachedReport{UserID: snap.UserID, Report: report})

		slog.InfoContext(ctx, "Report generated",
			log.FieldComponent, log.ComponentReport,
			log.FieldOperation, log.OpReport,
			log.FieldSession, sessionKey,
			log.FieldUserID, snap.UserID,
			log.FieldRows, len(snap.Rows),
			log.FieldMeals, report.TotalMeals,
			log.FieldCacheHit, false)
		return report, nil
	})
	if err != nil {
		return core.Report{}, fmt.Errorf("generate report: %w", err)
	}
	if shared {
		slog.DebugContext(ctx, "Report build shared",
			log.FieldComponent, log.ComponentReport,
			log.FieldSession, sessionKey)
	}
	return v.(core.Report), nil
}
