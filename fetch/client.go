// Package fetch is the inbound data boundary: it pulls consensus events and
// simulation status from the trace backend over HTTP.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Readm/consensus_trace/backoff"
)

// DefaultPageLimit is the page size requested when a Query leaves Limit unset.
const DefaultPageLimit = 10000

var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("fetch: not found")
	// ErrStale is returned for a load superseded by a newer one.
	ErrStale = errors.New("fetch: superseded by a newer request")
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error: %d - %s (%s)", e.StatusCode, e.Status, e.URL)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Observer is told about every completed request, successful or not.
type Observer func(endpoint string, d time.Duration, err error)

// Client talks to the trace backend.
type Client struct {
	baseURL  string
	http     *http.Client
	retry    backoff.Config
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets the retry policy. Responses in the 4xx range are never retried.
func WithRetry(cfg backoff.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithObserver installs a request observer, typically for metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient returns a client for the API rooted at baseURL
// (e.g. "http://localhost:8080/v1").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   backoff.Config{MinWait: 200 * time.Millisecond, MaxWait: 5 * time.Second, MaxAttempts: 3},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Query holds the optional parameters of an events request. Zero values are omitted.
type Query struct {
	From              time.Time
	To                time.Time
	Limit             int
	Cursor            string
	Before            string
	Segment           int
	IncludeTotalCount bool
}

// Values encodes q as URL query parameters. Mock cursors are dropped.
func (q Query) Values() url.Values {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339Nano))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339Nano))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if c := RealCursor(q.Cursor); c != "" {
		v.Set("cursor", c)
	}
	if q.Before != "" {
		v.Set("before", q.Before)
	}
	if q.Segment > 0 {
		v.Set("segment", strconv.Itoa(q.Segment))
	}
	if q.IncludeTotalCount {
		v.Set("includeTotalCount", "true")
	}
	return v
}

// Pagination is the paging block of an events response.
type Pagination struct {
	Limit          int    `json:"limit"`
	HasNext        bool   `json:"hasNext"`
	HasPrevious    bool   `json:"hasPrevious"`
	NextCursor     string `json:"nextCursor,omitempty"`
	PreviousCursor string `json:"previousCursor,omitempty"`
	TotalCount     *int   `json:"totalCount,omitempty"`
}

// Page is one events response. Records stay raw for the normalizer.
type Page struct {
	Data       []json.RawMessage `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// Simulation is the status document of a simulation.
type Simulation struct {
	ID               string `json:"id"`
	ProjectID        string `json:"projectId"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	ProcessingStatus string `json:"processingStatus,omitempty"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

// Simulation statuses reported by the backend.
const (
	StatusLogfileRequired = "logfile_required"
	StatusProcessing      = "processing"
	StatusProcessed       = "processed"
	StatusFailed          = "failed"
)

// Terminal reports whether the status will not change any more.
func (s *Simulation) Terminal() bool {
	return s.Status == StatusProcessed || s.Status == StatusFailed
}

// ConsensusEvents fetches one page of a simulation's events.
func (c *Client) ConsensusEvents(ctx context.Context, simulationID string, q Query) (*Page, error) {
	endpoint := "/simulations/" + url.PathEscape(simulationID) + "/events"
	if enc := q.Values().Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var page Page
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Simulation fetches a simulation's status document.
func (c *Client) Simulation(ctx context.Context, simulationID string) (*Simulation, error) {
	var sim Simulation
	if err := c.getJSON(ctx, "/simulations/"+url.PathEscape(simulationID), &sim); err != nil {
		return nil, err
	}
	return &sim, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	start := time.Now()
	err := c.retry.Retry(ctx, func() error {
		return c.once(ctx, endpoint, out)
	})
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if c.observer != nil {
		c.observer(endpoint, time.Since(start), err)
	}
	return err
}

func (c *Client) once(ctx context.Context, endpoint string, out any) error {
	u := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("fetch: build request: %w", err))
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("fetch: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		herr := &HTTPError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), URL: u}
		log.Debug().Str("request_id", reqID).Int("status", resp.StatusCode).Str("url", u).Msg("fetch: request failed")
		if resp.StatusCode < 500 {
			return backoff.Permanent(herr)
		}
		return herr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("fetch: decode %s: %w", endpoint, err))
	}
	log.Debug().Str("request_id", reqID).Str("url", u).Msg("fetch: ok")
	return nil
}
