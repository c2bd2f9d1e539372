package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// ErrPaginationExhausted is returned when a window's pagination hits the
// configured page ceiling without the server signalling an end. The records
// collected up to that point are still returned.
var ErrPaginationExhausted = errors.New("pagination safety ceiling reached")

// RequestError reports a non-success response or transport failure for one
// page request. It aborts only the window being fetched.
type RequestError struct {
	URL    string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Client talks to the Zendesk REST API with token basic auth.
type Client struct {
	cfg        config.ZendeskConfig
	httpClient *http.Client
	limiter    Limiter
}

// NewClient creates an API client with a fixed-interval request gate.
func NewClient(cfg config.ZendeskConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: NewIntervalLimiter(cfg.PageDelay),
	}
}

// page mirrors the envelope shared by the paginated endpoints: a record array
// plus a nullable continuation URL.
type page struct {
	Results    []map[string]any `json:"results"`
	Activities []map[string]any `json:"activities"`
	Tickets    []map[string]any `json:"tickets"`
	NextPage   *string          `json:"next_page"`
}

// SearchTickets fetches every ticket created inside the window, following the
// continuation URL until the server signals exhaustion. On a page failure the
// records collected so far are returned together with the error; the caller
// decides whether the partial window is worth keeping.
func (c *Client) SearchTickets(ctx context.Context, w models.Window) ([]models.RawRecord, error) {
	query := fmt.Sprintf(`type:ticket created_at>="%s" created_at<"%s"`,
		w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	first := fmt.Sprintf("%s/api/v2/search.json?query=%s", c.cfg.BaseURL, url.QueryEscape(query))
	return c.paginate(ctx, first)
}

// FetchActivities fetches the whole activity feed. The endpoint retains only
// a trailing window (about 30 days) and takes no date predicate, so there is
// nothing to scope the request by.
func (c *Client) FetchActivities(ctx context.Context) ([]models.RawRecord, error) {
	return c.paginate(ctx, c.cfg.BaseURL+"/api/v2/activities.json")
}

// paginate drives one cursor to exhaustion. Pagination is sequential: the
// continuation URL is stateful and cannot be followed in parallel.
func (c *Client) paginate(ctx context.Context, first string) ([]models.RawRecord, error) {
	var records []models.RawRecord
	next := first

	for pageNum := 1; next != ""; pageNum++ {
		if pageNum > c.cfg.MaxPages {
			return records, fmt.Errorf("page %d of %s: %w", pageNum, first, ErrPaginationExhausted)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return records, err
		}

		p, err := c.fetchPage(ctx, next)
		if err != nil {
			return records, err
		}

		entries := p.Results
		if entries == nil {
			entries = p.Activities
		}
		for _, e := range entries {
			records = append(records, models.NewRawRecord(e))
		}

		if p.NextPage == nil {
			break
		}
		next = *p.NextPage
	}

	return records, nil
}

// fetchPage issues one authenticated GET and decodes the page envelope.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &RequestError{URL: pageURL, Err: err}
	}
	req.SetBasicAuth(c.cfg.Email+"/token", c.cfg.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{URL: pageURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{URL: pageURL, Err: err}
	}

	var p page
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, &RequestError{URL: pageURL, Err: fmt.Errorf("decode page: %w", err)}
	}

	return &p, nil
}

// EarliestTicket probes the incremental export endpoint for the creation time
// of the very first ticket in the account.
func (c *Client) EarliestTicket(ctx context.Context) (time.Time, error) {
	p, err := c.fetchPage(ctx, c.cfg.BaseURL+"/api/v2/incremental/tickets.json?start_time=0")
	if err != nil {
		return time.Time{}, err
	}
	if len(p.Tickets) == 0 {
		return time.Time{}, fmt.Errorf("no tickets returned by incremental export")
	}

	created := models.NewRawRecord(p.Tickets[0]).Get("created_at")
	s, ok := created.AsString()
	if !ok {
		return time.Time{}, fmt.Errorf("first ticket has no created_at")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
