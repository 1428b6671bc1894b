// Package wikipedia reads page summaries, plain-text extracts, categories,
// and search results from the Wikipedia REST and Action APIs. The REST API
// serves summaries; the Action API serves full extracts and categories. The
// two surfaces are paced independently because the Action API asks for far
// slower request rates.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gleaner/internal/config"
	"gleaner/internal/fetch"
)

// Default API endpoints.
const (
	DefaultRestBaseURL   = "https://en.wikipedia.org/api/rest_v1"
	DefaultActionBaseURL = "https://en.wikipedia.org/w/api.php"
)

// notFoundType marks a summary response for a missing page.
const notFoundType = "https://mediawiki.org/wiki/HyperSwitch/errors/not_found"

const sourceName = "wikipedia"

// Summary is a REST page summary.
type Summary struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// URL returns the canonical desktop page URL.
func (s *Summary) URL() string {
	return s.ContentURLs.Desktop.Page
}

// SearchResult is one Action API search hit.
type SearchResult struct {
	Title   string `json:"title"`
	PageID  int64  `json:"pageid"`
	Snippet string `json:"snippet"`
}

// BioMatch is a biography located by trying name variations.
type BioMatch struct {
	Extract     string
	URL         string
	MatchedName string
}

type actionResponse struct {
	Query struct {
		Pages  []actionPage   `json:"pages"`
		Search []SearchResult `json:"search"`
	} `json:"query"`
}

type actionPage struct {
	PageID     int64  `json:"pageid"`
	Title      string `json:"title"`
	Missing    bool   `json:"missing"`
	Extract    string `json:"extract"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

// Client provides access to the Wikipedia APIs.
type Client struct {
	userAgent  string
	restBase   string
	actionBase string
	httpClient *http.Client
	rest       *fetch.Requester
	action     *fetch.Requester
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the REST and Action API endpoints.
func WithBaseURLs(restBase, actionBase string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(restBase); trimmed != "" {
			c.restBase = strings.TrimRight(trimmed, "/")
		}
		if trimmed := strings.TrimSpace(actionBase); trimmed != "" {
			c.actionBase = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequesters replaces the REST and Action request machinery.
func WithRequesters(rest, action *fetch.Requester) Option {
	return func(c *Client) {
		if rest != nil {
			c.rest = rest
		}
		if action != nil {
			c.action = action
		}
	}
}

// New creates a Wikipedia client. The user agent is required; Wikipedia asks
// every API consumer to identify itself.
func New(userAgent string, opts ...Option) (*Client, error) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("wikipedia user agent required")
	}
	client := &Client{
		userAgent:  userAgent,
		restBase:   DefaultRestBaseURL,
		actionBase: DefaultActionBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	policy := fetch.RetryPolicy{MaxAttempts: 3, Floor: time.Second, Cap: 10 * time.Second}
	if client.rest == nil {
		client.rest = fetch.NewRequester(sourceName,
			fetch.NewPacer(100*time.Millisecond, 5*time.Second), policy)
	}
	if client.action == nil {
		client.action = fetch.NewRequester(sourceName,
			fetch.NewPacer(8*time.Second, 30*time.Second), policy)
	}
	return client, nil
}

// NewFromConfig builds a client with pacing and retry settings taken from the
// configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	policy := fetch.RetryPolicy{
		MaxAttempts: cfg.Wikipedia.MaxRetries,
		Floor:       time.Second,
		Cap:         10 * time.Second,
	}
	rest := fetch.NewRequester(sourceName,
		fetch.NewPacer(time.Duration(cfg.Wikipedia.RestDelayMs)*time.Millisecond, 5*time.Second),
		policy, fetch.WithLogger(logger))
	action := fetch.NewRequester(sourceName,
		fetch.NewPacer(time.Duration(cfg.Wikipedia.ActionDelayMs)*time.Millisecond, 30*time.Second),
		policy, fetch.WithLogger(logger))
	return New(cfg.Wikipedia.UserAgent,
		WithBaseURLs(cfg.Wikipedia.RestBaseURL, cfg.Wikipedia.ActionBaseURL),
		WithRequesters(rest, action))
}

// PageSummary fetches the REST summary for a page title. A missing page
// returns nil without error.
func (c *Client) PageSummary(ctx context.Context, title string) (*Summary, error) {
	endpoint := "/page/summary/" + encodeTitle(title)
	var summary Summary
	err := c.getJSON(ctx, c.rest, c.restBase+endpoint, endpoint, &summary)
	if fetch.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if summary.Type == notFoundType {
		return nil, nil
	}
	return &summary, nil
}

// PageExtract fetches the full plain-text article body, section headings
// included. A missing page returns the empty string without error.
func (c *Client) PageExtract(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("titles", title)

	page, err := c.queryAction(ctx, "extracts", params)
	if err != nil || page == nil {
		return "", err
	}
	return page.Extract, nil
}

// PageCategories fetches up to limit category titles for a page.
func (c *Client) PageCategories(ctx context.Context, title string, limit int) ([]string, error) {
	if limit < 1 || limit > 500 {
		limit = 500
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "categories")
	params.Set("titles", title)
	params.Set("cllimit", strconv.Itoa(limit))

	page, err := c.queryAction(ctx, "categories", params)
	if err != nil || page == nil {
		return nil, err
	}
	categories := make([]string, 0, len(page.Categories))
	for _, category := range page.Categories {
		categories = append(categories, category.Title)
	}
	return categories, nil
}

// SearchTitles runs a full-text search and returns up to limit hits.
func (c *Client) SearchTitles(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("format", "json")
	params.Set("formatversion", "2")

	endpoint := "search"
	var payload actionResponse
	if err := c.getJSON(ctx, c.action, c.actionBase+"?"+params.Encode(), endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Query.Search, nil
}

// PersonBio looks for a biography by trying each name in order, first as an
// exact title, then through search. Lookup failures on one name do not stop
// the remaining names from being tried.
func (c *Client) PersonBio(ctx context.Context, names []string) (*BioMatch, error) {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary, err := c.PageSummary(ctx, name)
		if err == nil && summary != nil && summary.Extract != "" {
			return &BioMatch{Extract: summary.Extract, URL: summary.URL(), MatchedName: name}, nil
		}
		hits, err := c.SearchTitles(ctx, name, 3)
		if err != nil || len(hits) == 0 {
			continue
		}
		summary, err = c.PageSummary(ctx, hits[0].Title)
		if err == nil && summary != nil && summary.Extract != "" {
			return &BioMatch{Extract: summary.Extract, URL: summary.URL(), MatchedName: name}, nil
		}
	}
	return nil, nil
}

// queryAction issues an Action API query and returns the first page of the
// response, or nil when the page is missing.
func (c *Client) queryAction(ctx context.Context, endpoint string, params url.Values) (*actionPage, error) {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var payload actionResponse
	if err := c.getJSON(ctx, c.action, c.actionBase+"?"+params.Encode(), endpoint, &payload); err != nil {
		return nil, err
	}
	if len(payload.Query.Pages) == 0 || payload.Query.Pages[0].Missing {
		return nil, nil
	}
	return &payload.Query.Pages[0], nil
}

func (c *Client) getJSON(ctx context.Context, requester *fetch.Requester, target, endpoint string, payload any) error {
	resp, err := requester.Do(ctx, endpoint, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(payload); err != nil {
		return fetch.Wrap(fetch.ErrPermanent, sourceName, endpoint, "decode response", err)
	}
	return nil
}

// encodeTitle converts a page title to its URL form, spaces as underscores.
func encodeTitle(title string) string {
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}
