// Package http exposes the report pipeline as a small JSON API.
package http

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
	"github.com/yf-yang/thu-food-report/internal/log"
	"github.com/yf-yang/thu-food-report/internal/services"
)

// ReportService is the part of services.ReportService the API drives.
type ReportService interface {
	CreateSession(ctx context.Context, cred ingest.Credentials) (services.Session, error)
	GenerateReport(ctx context.Context, sessionKey string) (core.Report, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Logger *log.Logger
	// RequestsPerMinute caps session creation per client IP.
	RequestsPerMinute int
	// Ready is checked by /readyz. Nil means always ready.
	Ready Pinger
}

// Server is the HTTP front end of the report service.
type Server struct {
	http.Server

	reports     ReportService
	ready       Pinger
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, reports ReportService, opts Options) *Server {
	mux := http.NewServeMux()

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		reports:     reports,
		ready:       opts.Ready,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RequestsPerMinute),
		metrics:     &securityMetrics{},
	}

	mux.Handle("POST /sessions", s.withMiddleware(s.handleCreateSession))
	mux.Handle("GET /reports/{session}", s.withMiddleware(s.handleReport))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	return s
}

// SecurityStats returns the rate limiting and suspicious request counters.
func (s *Server) SecurityStats() SecurityStats {
	return s.metrics.snapshot()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// validRequestID limits the caller-supplied request IDs we echo back.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// withMiddleware assigns a request ID, puts a request-scoped logger into
// the context and wraps next with the guards of guard.
func (s *Server) withMiddleware(next http.HandlerFunc) http.Handler {
	inner := log.Middleware(s.logger)(
		log.RequestIDMiddleware(func(r *http.Request) string {
			return r.Header.Get("X-Request-ID")
		})(s.guard(next)),
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !validRequestID.MatchString(requestID) {
			requestID = generateRequestID()
			r.Header.Set("X-Request-ID", requestID)
		}
		w.Header().Set("X-Request-ID", requestID)
		inner.ServeHTTP(w, r)
	})
}

// guard applies security headers, rate limiting and request logging.
func (s *Server) guard(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.FromContext(ctx)
		clientIP := extractClientIP(r)

		setSecurityHeaders(w)

		if detectSuspiciousRequest(r, s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldComponent, log.ComponentRateLimit,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			TooManyRequestsError("60").Write(rw)
		} else {
			next(rw, r)
		}

		log.NewStructuredLogger(logger).
			LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
