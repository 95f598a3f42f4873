package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/log"
	"github.com/yf-yang/thu-food-report/internal/services"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// errorStatus maps a service error onto a response status, the error
// category logged with it and the message shown to the client.
func errorStatus(err error) (status int, errorType, message string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, log.ErrorTypeValidation, "id and serviceHall are required"
	case errors.Is(err, core.ErrMissingSession):
		return http.StatusNotFound, log.ErrorTypeNotFound, "unknown session"
	case errors.Is(err, core.ErrSnapshotPending):
		return http.StatusAccepted, log.ErrorTypePending, "report is being prepared"
	case errors.Is(err, core.ErrDecryption):
		return http.StatusUnauthorized, log.ErrorTypeAuth, "card service rejected the credentials"
	case errors.Is(err, core.ErrNetwork):
		return http.StatusBadGateway, log.ErrorTypeNetwork, "card service unavailable"
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal, "internal error"
	}
}
