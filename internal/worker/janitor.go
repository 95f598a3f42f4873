package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yf-yang/thu-food-report/internal/log"
)

// SessionPurger deletes sessions created before a cutoff.
type SessionPurger interface {
	PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// JanitorConfig holds configuration for the janitor
type JanitorConfig struct {
	// Interval is how often expired sessions are purged (default: 1h)
	Interval time.Duration
	// Retention is how long a session stays valid (default: 30 days)
	Retention time.Duration
}

// DefaultJanitorConfig returns sensible defaults
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:  time.Hour,
		Retention: 30 * 24 * time.Hour,
	}
}

// Janitor periodically removes expired sessions.
type Janitor struct {
	store  SessionPurger
	config JanitorConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewJanitor(store SessionPurger, config JanitorConfig) *Janitor {
	def := DefaultJanitorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Retention <= 0 {
		config.Retention = def.Retention
	}
	return &Janitor{store: store, config: config, now: time.Now}
}

// Start begins the purge loop. Returns an error if already running.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("janitor is already running")
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})

	go j.runLoop(ctx)

	slog.InfoContext(ctx, "Session janitor started",
		log.FieldComponent, log.ComponentWorker,
		"interval", j.config.Interval,
		"retention", j.config.Retention)
	return nil
}

// Stop signals the loop and waits for it or for ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = false
	stopCh, doneCh := j.stopCh, j.doneCh
	j.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PurgeOnce removes sessions older than the retention period.
func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	return j.store.PurgeSessions(ctx, j.now().Add(-j.config.Retention))
}

func (j *Janitor) runLoop(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.purge(ctx)
	for {
		select {
		case <-j.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	if _, err := j.PurgeOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Session purge failed", log.FieldComponent, log.ComponentWorker, log.FieldError, err)
	}
}
