package tmdb

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

// DefaultBaseURL is the production TMDB API endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

const (
	movieAppend  = "credits,keywords,videos,images,watch/providers,external_ids,release_dates,alternative_titles,translations,recommendations,similar"
	tvAppend     = "credits,keywords,videos,images,watch/providers,external_ids,content_ratings,alternative_titles,translations,recommendations,similar"
	personAppend = "combined_credits,images,external_ids,tagged_images"
)

const sourceName = "tmdb"

// Client provides access to the TMDB API. All calls flow through a shared
// requester, so pacing, retries, and breaker state apply across every
// endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	requester  *fetch.Requester
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the production API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithLanguage sets the language parameter sent on every request.
func WithLanguage(language string) Option {
	return func(c *Client) {
		c.language = strings.TrimSpace(language)
	}
}

// WithRequester replaces the default request machinery.
func WithRequester(requester *fetch.Requester) Option {
	return func(c *Client) {
		if requester != nil {
			c.requester = requester
		}
	}
}

// New creates a TMDB client.
func New(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.requester == nil {
		client.requester = fetch.NewRequester(sourceName,
			fetch.NewPacer(50*time.Millisecond, 5*time.Second),
			fetch.RetryPolicy{MaxAttempts: 5, Floor: time.Second, Cap: 30 * time.Second})
	}
	return client, nil
}

// NewFromConfig builds a client with pacing, retry, ceiling, and breaker
// settings taken from the configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	pacer := fetch.NewPacer(
		time.Duration(cfg.TMDB.BaseDelayMs)*time.Millisecond,
		time.Duration(cfg.TMDB.MaxDelayMs)*time.Millisecond)
	policy := fetch.RetryPolicy{
		MaxAttempts: cfg.TMDB.MaxRetries,
		Floor:       time.Duration(cfg.TMDB.RetryFloorMs) * time.Millisecond,
		Cap:         time.Duration(cfg.TMDB.RetryCapMs) * time.Millisecond,
	}
	requesterOpts := []fetch.RequesterOption{fetch.WithLogger(logger)}
	if cfg.TMDB.CeilingPerSec > 0 {
		requesterOpts = append(requesterOpts, fetch.WithCeiling(cfg.TMDB.CeilingPerSec))
	}
	if cfg.Breaker.Enabled {
		requesterOpts = append(requesterOpts, fetch.WithBreaker(fetch.BreakerSettings{
			MinRequests:  uint32(cfg.Breaker.MinRequests),
			FailureRatio: cfg.Breaker.FailureRatio,
			Window:       time.Duration(cfg.Breaker.WindowSeconds) * time.Second,
			Cooldown:     time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
		}))
	}
	return New(cfg.TMDB.APIKey,
		WithBaseURL(cfg.TMDB.BaseURL),
		WithLanguage(cfg.TMDB.Language),
		WithRequester(fetch.NewRequester(sourceName, pacer, policy, requesterOpts...)))
}

// DiscoverOptions filters a discover call.
type DiscoverOptions struct {
	OriginCountry string
	SortBy        string
	Page          int
	IncludeAdult  bool
}

// Discover enumerates content for one origin-country and sort-order pair.
func (c *Client) Discover(ctx context.Context, kind Kind, opts DiscoverOptions) (*Page, error) {
	params := url.Values{}
	if opts.OriginCountry != "" {
		params.Set("with_origin_country", opts.OriginCountry)
	}
	if opts.SortBy != "" {
		params.Set("sort_by", opts.SortBy)
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("include_adult", strconv.FormatBool(opts.IncludeAdult))

	var payload Page
	if err := c.get(ctx, fmt.Sprintf("/discover/%s", kind), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Detail fetches the complete record for one movie or TV show, including
// every append bundle.
func (c *Client) Detail(ctx context.Context, kind Kind, id int64) (*Detail, error) {
	if id <= 0 {
		return nil, errors.New("content id must be positive")
	}
	appendList := movieAppend
	if kind == KindTV {
		appendList = tvAppend
	}
	params := url.Values{}
	params.Set("append_to_response", appendList)

	var payload Detail
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", kind, id), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// PersonDetail fetches the complete record for one person, including combined
// credits, images, and external ids.
func (c *Client) PersonDetail(ctx context.Context, id int64) (*Person, error) {
	if id <= 0 {
		return nil, errors.New("person id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", personAppend)

	var payload Person
	if err := c.get(ctx, fmt.Sprintf("/person/%d", id), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ChangesKind extends Kind with the person changes surface.
type ChangesKind string

// Changes feed surfaces.
const (
	ChangesMovie  ChangesKind = "movie"
	ChangesTV     ChangesKind = "tv"
	ChangesPerson ChangesKind = "person"
)

// Changes fetches one page of ids changed inside the window. Dates are
// formatted YYYY-MM-DD.
func (c *Client) Changes(ctx context.Context, kind ChangesKind, start, end time.Time, page int) (*ChangesPage, error) {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("start_date", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		params.Set("end_date", end.Format("2006-01-02"))
	}
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))

	var payload ChangesPage
	if err := c.get(ctx, fmt.Sprintf("/%s/changes", kind), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// LatestID returns the id of the newest record on a content surface, the
// upper bound for sequential scans.
func (c *Client) LatestID(ctx context.Context, kind Kind) (int64, error) {
	var payload Latest
	if err := c.get(ctx, fmt.Sprintf("/%s/latest", kind), url.Values{}, &payload); err != nil {
		return 0, err
	}
	return payload.ID, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, payload any) error {
	target, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	target.RawQuery = params.Encode()

	resp, err := c.requester.Do(ctx, endpoint, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
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
