package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yf-yang/thu-food-report/internal/amqp"
	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
	"github.com/yf-yang/thu-food-report/internal/log"
)

// Ingester runs one ingestion for an existing session.
type Ingester interface {
	Ingest(ctx context.Context, sessionKey string, cred ingest.Credentials) error
}

// IngestWorker turns broker deliveries into ingestion runs.
type IngestWorker struct {
	ingester Ingester
}

func NewIngestWorker(ingester Ingester) *IngestWorker {
	return &IngestWorker{ingester: ingester}
}

// HandleIngestMessage processes a single ingest request from AMQP. Errors
// that a retry cannot fix are acknowledged: bad credentials, unknown
// sessions and malformed data. Network failures are returned so the
// delivery is retried.
func (w *IngestWorker) HandleIngestMessage(ctx context.Context, msg *amqp.IngestRequest) error {
	slog.InfoContext(ctx, "Processing ingest request",
		log.FieldComponent, log.ComponentWorker,
		"message_id", msg.MessageID,
		log.FieldSession, msg.SessionKey,
		"user_id", msg.UserID)

	err := w.ingester.Ingest(ctx, msg.SessionKey, ingest.Credentials{UserID: msg.UserID, Token: msg.Token})
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Successfully ingested session",
			log.FieldComponent, log.ComponentWorker,
			log.FieldSession, msg.SessionKey)
		return nil
	case errors.Is(err, core.ErrDecryption),
		errors.Is(err, core.ErrMissingSession),
		errors.Is(err, core.ErrNormalization):
		slog.WarnContext(ctx, "Dropping ingest request",
			log.FieldComponent, log.ComponentWorker,
			log.FieldSession, msg.SessionKey,
			log.FieldError, err)
		return nil
	default:
		return fmt.Errorf("ingest session %s: %w", msg.SessionKey, err)
	}
}
