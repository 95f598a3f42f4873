package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/log"
)

type sessionResponse struct {
	Session string `json:"session"`
	Status  string `json:"status,omitempty"`
}

// handleCreateSession registers a session for the posted credentials.
// The serviceHall token never reaches the logs.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	cred, err := parseCredentials(r)
	if err != nil {
		logger.WarnContext(ctx, "Invalid session request",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation)
		BadRequestError("malformed request body").Write(w)
		return
	}

	sess, err := s.reports.CreateSession(ctx, cred)
	if err != nil {
		status, errorType, message := errorStatus(err)
		fields := log.NewFields()
		if sess.Key != "" {
			fields.WithSession(sess.Key, cred.UserID)
		}
		if status >= http.StatusInternalServerError {
			log.NewStructuredLogger(logger).LogError(ctx, "Session creation failed", err, errorType, log.OpCreateSession, fields)
		} else {
			logger.WarnContext(ctx, "Session creation rejected",
				fields.WithError(err).WithErrorType(errorType).ToSlice()...)
		}
		ErrorResponse(status, message).Write(w)
		return
	}

	log.NewStructuredLogger(logger).LogSessionCreated(ctx, sess.Key, cred.UserID, sess.Pending)

	if sess.Pending {
		NewJSONResponse().
			Status(http.StatusAccepted).
			Header("Location", "/reports/"+sess.Key).
			Body(sessionResponse{Session: sess.Key, Status: "pending"}).
			Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/reports/"+sess.Key).
		Body(sessionResponse{Session: sess.Key}).
		Write(w)
}

// handleReport returns the report of a session. A pending snapshot is
// 202 and an empty dataset is a 200 with status "empty".
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	key := r.PathValue("session")
	if _, err := uuid.Parse(key); err != nil {
		ErrorResponse(http.StatusNotFound, "unknown session").Write(w)
		return
	}

	report, err := s.reports.GenerateReport(ctx, key)
	switch {
	case err == nil:
		NewJSONResponse().Body(report).Write(w)
	case errors.Is(err, core.ErrEmptyDataset):
		logger.InfoContext(ctx, "No meals to report",
			log.NewFields().WithSession(key, "").WithErrorType(log.ErrorTypeEmpty).ToSlice()...)
		StatusResponse(http.StatusOK, "empty").Write(w)
	case errors.Is(err, core.ErrSnapshotPending):
		StatusResponse(http.StatusAccepted, "pending").
			Header("Retry-After", "2").
			Write(w)
	default:
		status, errorType, message := errorStatus(err)
		fields := log.NewFields().WithSession(key, "")
		if status >= http.StatusInternalServerError {
			log.NewStructuredLogger(logger).LogError(ctx, "Report generation failed", err, errorType, log.OpReport, fields)
		} else {
			logger.WarnContext(ctx, "Report unavailable",
				fields.WithError(err).WithErrorType(errorType).ToSlice()...)
		}
		ErrorResponse(status, message).Write(w)
	}
}
