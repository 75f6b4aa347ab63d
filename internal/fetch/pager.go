package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/phrazzld/throttleq/internal/journal"
	"github.com/phrazzld/throttleq/internal/platform/logger"
	"github.com/phrazzld/throttleq/internal/task"
)

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After.
const DefaultRetryAfter = 10 * time.Second

// Page is one response from the listing endpoint.
type Page struct {
	Entries []json.RawMessage `json:"entries"`
	Cursor  string            `json:"cursor"`
	HasMore bool              `json:"has_more"`
}

// PageResult is what a page task returns and the journal records.
type PageResult struct {
	// Cursor is the cursor the page was requested with; empty for the first page
	Cursor     string            `json:"cursor"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
	Entries    []json.RawMessage `json:"entries"`
}

// Queue is the part of the task queue the pager drives.
type Queue interface {
	Add(op task.Operation, opts ...task.AddOption) (*task.Handle, error)
	BlockQueue(d time.Duration) <-chan struct{}
	Process(ctx context.Context) ([]any, error)
	Resumed() []json.RawMessage
}

var _ Queue = (*task.TaskQueue)(nil)

// Config describes the listing endpoint.
type Config struct {
	BaseURL     string
	CursorParam string
	StartCursor string
	Token       string
	Timeout     time.Duration
}

// Pager fetches every page of a listing through a task queue.
type Pager struct {
	config Config
	base   *url.URL
	queue  Queue
	client *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	handles []*task.Handle
}

// Option configures a Pager.
type Option func(*Pager)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pager) { p.client = client }
}

// NewPager creates a Pager that submits page tasks to queue.
func NewPager(cfg Config, queue Queue, log *slog.Logger, opts ...Option) (*Pager, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.CursorParam == "" {
		cfg.CursorParam = "cursor"
	}

	p := &Pager{
		config: cfg,
		base:   base,
		queue:  queue,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.With("component", "fetch", "endpoint", base.Host+base.Path),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run fetches the remaining pages and returns every entry, including those
// of pages already in the journal. On failure it returns the entries fetched
// so far and an error wrapping a *CursorError for the page that failed.
func (p *Pager) Run(ctx context.Context) ([]json.RawMessage, error) {
	resumed, err := journal.Decode[PageResult](p.queue.Resumed())
	if err != nil {
		return nil, fmt.Errorf("failed to read journaled pages: %w", err)
	}

	var entries []json.RawMessage
	for _, page := range resumed {
		entries = append(entries, page.Entries...)
	}

	cursor := p.config.StartCursor
	if n := len(resumed); n > 0 {
		last := resumed[n-1]
		if !last.HasMore {
			p.logger.Info("journal already holds the final page", "pages", n, "entries", len(entries))
			return entries, nil
		}
		cursor = last.NextCursor
		p.logger.Info("resuming from journal", "pages", n, "entries", len(entries), "cursor", cursor)
	}

	if err := p.enqueue(ctx, cursor, len(resumed), len(entries)); err != nil {
		return entries, err
	}

	results, err := p.queue.Process(ctx)
	if err != nil {
		return entries, fmt.Errorf("waiting for pages: %w", err)
	}
	for _, r := range results {
		if page, ok := r.(PageResult); ok {
			entries = append(entries, page.Entries...)
		}
	}

	if err := p.firstFailure(); err != nil {
		return entries, err
	}
	p.logger.Info("fetch complete", "entries", len(entries))
	return entries, nil
}

func (p *Pager) enqueue(ctx context.Context, cursor string, index, seen int) error {
	name := fmt.Sprintf("page %d - starting from #%d", index+1, seen)
	h, err := p.queue.Add(p.pageOperation(ctx, cursor, index, seen), task.WithName(name))
	if err != nil {
		return fmt.Errorf("failed to queue %s: %w", name, err)
	}
	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()
	return nil
}

func (p *Pager) pageOperation(runCtx context.Context, cursor string, index, seen int) task.Operation {
	return func(ctx context.Context) (any, error) {
		log := logger.FromContext(ctx)

		page, err := p.fetch(runCtx, cursor)
		if err != nil {
			return nil, &CursorError{Cursor: cursor, Err: err}
		}
		log.Debug("page fetched", "cursor", cursor, "entries", len(page.Entries), "has_more", page.HasMore)

		if page.HasMore {
			if err := p.enqueue(runCtx, page.Cursor, index+1, seen+len(page.Entries)); err != nil {
				return nil, &CursorError{Cursor: cursor, Err: err}
			}
		}
		return PageResult{
			Cursor:     cursor,
			NextCursor: page.Cursor,
			HasMore:    page.HasMore,
			Entries:    page.Entries,
		}, nil
	}
}

func (p *Pager) fetch(ctx context.Context, cursor string) (*Page, error) {
	u := *p.base
	if cursor != "" {
		q := u.Query()
		q.Set(p.config.CursorParam, cursor)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, p.rateLimited(ctx, resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	if page.HasMore && page.Cursor == "" {
		return nil, errors.New("page has more results but no cursor")
	}
	return &page, nil
}

// rateLimited blocks the queue and waits out the block so that an in-place
// retry of the failed attempt does not hit the limit again.
func (p *Pager) rateLimited(ctx context.Context, header string) error {
	d := parseRetryAfter(header, time.Now())
	p.logger.Warn("rate limited, blocking queue", "retry_after", d)

	released := p.queue.BlockQueue(d)
	select {
	case <-released:
	case <-ctx.Done():
		return ctx.Err()
	}
	return &RateLimitError{RetryAfter: d}
}

func (p *Pager) firstFailure() error {
	p.mu.Lock()
	handles := append([]*task.Handle(nil), p.handles...)
	p.mu.Unlock()

	for _, h := range handles {
		if h.State() != task.StateFailed {
			continue
		}
		_, err := h.Result()
		return fmt.Errorf("fetch stopped: %w", err)
	}
	return nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return DefaultRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return DefaultRetryAfter
}
