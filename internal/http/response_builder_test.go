package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusAccepted).
		Header("Retry-After", "2").
		Body(map[string]string{"status": "pending"}).
		Write(rr)

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if got := rr.Body.String(); got != "{\"status\":\"pending\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(rr)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		b      *JSONResponseBuilder
		status int
		body   string
	}{
		{"bad request", BadRequestError("nope"), http.StatusBadRequest, "{\"error\":\"nope\"}\n"},
		{"status", StatusResponse(http.StatusOK, "empty"), http.StatusOK, "{\"status\":\"empty\"}\n"},
		{"too many", TooManyRequestsError("60"), http.StatusTooManyRequests, "{\"error\":\"rate limit exceeded\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.b.Write(rr)
			if rr.Code != tt.status || rr.Body.String() != tt.body {
				t.Errorf("got %d %q", rr.Code, rr.Body.String())
			}
		})
	}
}
