package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
	"github.com/yf-yang/thu-food-report/internal/log"
)

const (
	// DefaultBaseURL is the card service's self-service trade list endpoint.
	DefaultBaseURL = "https://card.tsinghua.edu.cn/business/querySelfTradeList"
	// DefaultPageSize is the page size the card service is queried with.
	DefaultPageSize = 1000
	// DefaultMaxAttempts caps the attempts per page.
	DefaultMaxAttempts = 3

	// tradeTypeAll asks for every transaction type.
	tradeTypeAll = "-1"
	// sessionCookie carries the caller's authorization token.
	sessionCookie = "servicehall"
	// maxPageBytes bounds a single page response body.
	maxPageBytes = 32 << 20
)

// Doer is the HTTP capability a fetch runs on. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials identify the card holder and authorize the queries.
type Credentials struct {
	UserID string
	Token  string
}

// FetcherConfig holds the fixed parameters of the remote query.
type FetcherConfig struct {
	BaseURL     string
	PageSize    int
	MaxAttempts int
	Start, End  time.Time // inclusive calendar-day bounds
}

// Fetcher retrieves every raw row of a user for the configured period.
// It holds no state between calls.
type Fetcher struct {
	cfg FetcherConfig
}

// NewFetcher fills unset config fields with the card service defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Fetcher{cfg: cfg}
}

// envelope is the undecrypted response body.
type envelope struct {
	Data string `json:"data"`
}

// Fetch pages through the remote endpoint until the cumulative row count
// reaches the total the server reports. A page that still fails after
// MaxAttempts aborts the whole fetch; no partial result is returned.
func (f *Fetcher) Fetch(ctx context.Context, client Doer, cred Credentials) ([]RawRow, error) {
	if client == nil {
		return nil, errors.New("fetch: nil http client")
	}
	var rows []RawRow
	for pageNumber := 0; ; pageNumber++ {
		page, attempts, err := Retry(ctx, f.cfg.MaxAttempts, func(ctx context.Context, attempt int) (Page, error) {
			p, err := f.fetchPage(ctx, client, cred, pageNumber)
			if err != nil && !errors.Is(err, core.ErrDecryption) && ctx.Err() == nil {
				slog.WarnContext(ctx, "Page fetch attempt failed",
					log.FieldComponent, log.ComponentIngest,
					"page", pageNumber,
					"attempt", attempt,
					"max_attempts", f.cfg.MaxAttempts,
					log.FieldError, err)
			}
			return p, err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// An expired deadline means the card service was too slow.
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					return nil, core.NewError(core.ErrNetwork, fmt.Sprintf("fetch page %d timed out", pageNumber), ctxErr)
				}
				return nil, fmt.Errorf("fetch page %d: %w", pageNumber, ctxErr)
			}
			if errors.Is(err, core.ErrDecryption) {
				return nil, err
			}
			return nil, core.NewError(core.ErrNetwork, fmt.Sprintf("fetch page %d after %d attempts", pageNumber, attempts), err)
		}

		got := page.ResultData.Rows
		rows = append(rows, got...)
		total := page.ResultData.Total

		slog.DebugContext(ctx, "Fetched page",
			log.FieldComponent, log.ComponentIngest,
			"page", pageNumber,
			log.FieldRows, len(got),
			"cumulative", len(rows),
			"total", total)

		if len(rows) >= total {
			break
		}
		if len(got) == 0 {
			slog.WarnContext(ctx, "Empty page before reported total, stopping",
				log.FieldComponent, log.ComponentIngest,
				"page", pageNumber,
				"cumulative", len(rows),
				"total", total)
			break
		}
	}
	return rows, nil
}

// fetchPage performs one attempt. Decryption failures come back wrapped
// in Permanent so the retry loop gives up on them at once.
func (f *Fetcher) fetchPage(ctx context.Context, client Doer, cred Credentials, pageNumber int) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.pageURL(cred.UserID, pageNumber), nil)
	if err != nil {
		return Page{}, &Permanent{Err: fmt.Errorf("build request: %w", err)}
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cred.Token})

	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Page{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(&env); err != nil {
		return Page{}, fmt.Errorf("decode response: %w", err)
	}

	page, err := DecodePage(env.Data)
	if err != nil {
		return Page{}, &Permanent{Err: err}
	}
	return page, nil
}

func (f *Fetcher) pageURL(userID string, pageNumber int) string {
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	q.Set("pageSize", strconv.Itoa(f.cfg.PageSize))
	q.Set("starttime", f.cfg.Start.Format(time.DateOnly))
	q.Set("endtime", f.cfg.End.Format(time.DateOnly))
	q.Set("idserial", userID)
	q.Set("tradetype", tradeTypeAll)
	return f.cfg.BaseURL + "?" + q.Encode()
}
