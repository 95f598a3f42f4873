package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/ingest"
)

// Ingestion modes.
const (
	IngestSync  = "sync"
	IngestAsync = "async"
)

// DefaultValidRanges are the 2024 teaching sessions, end-exclusive.
const DefaultValidRanges = "2024-01-01..2024-01-08;" +
	"2024-02-26..2024-04-04;" +
	"2024-04-07..2024-04-30;" +
	"2024-05-06..2024-06-08;" +
	"2024-06-11..2024-06-17;" +
	"2024-09-09..2024-09-14;" +
	"2024-09-18..2024-10-01;" +
	"2024-10-08..2024-12-31"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Card service
	CardServiceURL   string
	FetchMaxAttempts int
	FetchTimeout     time.Duration
	IngestMode       string

	// Report policy, parsed by Policy
	ReportYear            int
	ValidRanges           string
	ExcludedStallKeywords string
	NewYearCutoff         string

	// Report cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	// Worker
	SessionRetention time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/foodreport.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "foodreport"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ingest_requests"),

		CardServiceURL:   getEnv("CARD_SERVICE_URL", ingest.DefaultBaseURL),
		FetchMaxAttempts: getEnvInt("FETCH_MAX_ATTEMPTS", ingest.DefaultMaxAttempts),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		IngestMode:       getEnv("INGEST_MODE", IngestSync),

		ReportYear:            getEnvInt("REPORT_YEAR", 2024),
		ValidRanges:           getEnv("VALID_RANGES", DefaultValidRanges),
		ExcludedStallKeywords: getEnv("EXCLUDED_STALL_KEYWORDS", strings.Join(ingest.DefaultExcludedStallKeywords, ",")),
		NewYearCutoff:         getEnv("NEW_YEAR_CUTOFF", "02-10"),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 256),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),

		SessionRetention: getEnvDuration("SESSION_RETENTION", 30*24*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.IngestMode {
	case IngestSync:
	case IngestAsync:
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP URL is required when ingest mode is 'async'")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ingest mode '%s': must be '%s' or '%s'", c.IngestMode, IngestSync, IngestAsync))
	}

	if u, err := url.Parse(c.CardServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid card service URL '%s'", c.CardServiceURL))
	}

	if c.FetchMaxAttempts < 1 || c.FetchMaxAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid fetch max attempts %d: must be between 1 and 10", c.FetchMaxAttempts))
	}
	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	}

	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}

	if c.SessionRetention < time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session retention %v: must be at least 1 hour", c.SessionRetention))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if _, err := c.Policy(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Policy parses the report policy settings and validates the result.
func (c *Config) Policy() (core.Policy, error) {
	ranges, err := ParseRanges(c.ValidRanges)
	if err != nil {
		return core.Policy{}, err
	}
	cutoff, err := ParseMonthDay(c.NewYearCutoff)
	if err != nil {
		return core.Policy{}, err
	}
	p := core.Policy{
		Year:                  c.ReportYear,
		ExcludedStallKeywords: splitList(c.ExcludedStallKeywords),
		ValidRanges:           ranges,
		NewYearCutoff:         cutoff,
	}
	if err := p.Validate(); err != nil {
		return core.Policy{}, fmt.Errorf("invalid report policy: %w", err)
	}
	return p, nil
}

// ParseRanges reads "start..end" pairs separated by ';'. Ends are exclusive.
func ParseRanges(s string) ([]core.DateRange, error) {
	var ranges []core.DateRange
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "..")
		if !ok {
			return nil, fmt.Errorf("%w: '%s' is not start..end", core.ErrInvalidRange, part)
		}
		start, err := core.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidRange, err)
		}
		end, err := core.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidRange, err)
		}
		ranges = append(ranges, core.DateRange{Start: start, End: end})
	}
	return ranges, nil
}

// ParseMonthDay reads an MM-DD day of the year.
func ParseMonthDay(s string) (core.MonthDay, error) {
	t, err := time.Parse("01-02", strings.TrimSpace(s))
	if err != nil {
		return core.MonthDay{}, fmt.Errorf("%w: '%s' is not MM-DD", core.ErrInvalidCutoff, s)
	}
	return core.MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// ParseLevel maps LOG_LEVEL names onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return l, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
