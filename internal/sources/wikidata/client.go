// Package wikidata resolves TMDB ids to Wikidata entities and reads entity
// properties over the SPARQL endpoint. Lookups ride on the P4947/P4983
// identifier properties; facts come back as Q-ids or literals, with a
// separate batch label query to turn Q-ids into readable names.
package wikidata

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

// DefaultSparqlURL is the public Wikidata query service endpoint.
const DefaultSparqlURL = "https://query.wikidata.org/sparql"

// IDProperty selects which TMDB identifier property a lookup matches on.
type IDProperty string

// TMDB identifier properties.
const (
	MovieID IDProperty = "P4947"
	TVID    IDProperty = "P4983"
)

// Properties read during content enrichment.
const (
	PropGenre             = "P136"
	PropOriginalNetwork   = "P449"
	PropDirector          = "P57"
	PropScreenwriter      = "P58"
	PropCreator           = "P170"
	PropCountryOfOrigin   = "P495"
	PropPublicationDate   = "P577"
	PropNarrativeLocation = "P840"
	PropFilmingLocation   = "P915"
	PropDuration          = "P2047"
	PropIMDBID            = "P345"
)

// ContentProperties is the default property set for content facts.
var ContentProperties = []string{
	PropGenre,
	PropOriginalNetwork,
	PropDirector,
	PropScreenwriter,
	PropCreator,
	PropCountryOfOrigin,
	PropPublicationDate,
	PropNarrativeLocation,
	PropFilmingLocation,
	PropDuration,
	PropIMDBID,
}

const entityURIPrefix = "http://www.wikidata.org/entity/"

const sourceName = "wikidata"

// Entity is a Wikidata item matched to a TMDB id, with its English Wikipedia
// article when one exists.
type Entity struct {
	WikidataID     string
	Label          string
	WikipediaTitle string
	WikipediaURL   string
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

// Client queries the Wikidata SPARQL endpoint.
type Client struct {
	userAgent  string
	sparqlURL  string
	httpClient *http.Client
	requester  *fetch.Requester
}

// Option configures a Client.
type Option func(*Client)

// WithSparqlURL overrides the query service endpoint.
func WithSparqlURL(sparqlURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(sparqlURL); trimmed != "" {
			c.sparqlURL = strings.TrimRight(trimmed, "/")
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

// WithRequester replaces the default request machinery.
func WithRequester(requester *fetch.Requester) Option {
	return func(c *Client) {
		if requester != nil {
			c.requester = requester
		}
	}
}

// New creates a Wikidata client. The user agent is required by the query
// service's usage policy.
func New(userAgent string, opts ...Option) (*Client, error) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("wikidata user agent required")
	}
	client := &Client{
		userAgent: userAgent,
		sparqlURL: DefaultSparqlURL,
		// SPARQL queries can run long before the first byte arrives.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.requester == nil {
		client.requester = fetch.NewRequester(sourceName,
			fetch.NewPacer(time.Second, 30*time.Second),
			fetch.RetryPolicy{MaxAttempts: 3, Floor: 2 * time.Second, Cap: 30 * time.Second})
	}
	return client, nil
}

// NewFromConfig builds a client with pacing and retry settings taken from the
// configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	requester := fetch.NewRequester(sourceName,
		fetch.NewPacer(time.Duration(cfg.Wikidata.DelayMs)*time.Millisecond, 30*time.Second),
		fetch.RetryPolicy{MaxAttempts: cfg.Wikidata.MaxRetries, Floor: 2 * time.Second, Cap: 30 * time.Second},
		fetch.WithLogger(logger))
	return New(cfg.Wikidata.UserAgent,
		WithSparqlURL(cfg.Wikidata.SparqlURL),
		WithRequester(requester))
}

// EntityByTMDBID finds the Wikidata item carrying the given TMDB id. Items
// without an English Wikipedia article are not matched. Returns nil when no
// item carries the id.
func (c *Client) EntityByTMDBID(ctx context.Context, prop IDProperty, tmdbID int64) (*Entity, error) {
	query := fmt.Sprintf(`SELECT ?item ?itemLabel ?article WHERE {
  ?item wdt:%s "%d".
  ?article schema:about ?item;
           schema:isPartOf <https://en.wikipedia.org/>.
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT 1`, prop, tmdbID)

	result, err := c.query(ctx, "entity_by_tmdb_id", query)
	if err != nil {
		return nil, err
	}
	if len(result.Results.Bindings) == 0 {
		return nil, nil
	}
	entity := bindingToEntity(result.Results.Bindings[0])
	return &entity, nil
}

// EntitiesByTMDBIDs resolves a batch of TMDB ids in one query. Ids without a
// matching item are absent from the result map.
func (c *Client) EntitiesByTMDBIDs(ctx context.Context, prop IDProperty, tmdbIDs []int64) (map[int64]Entity, error) {
	if len(tmdbIDs) == 0 {
		return map[int64]Entity{}, nil
	}
	values := make([]string, 0, len(tmdbIDs))
	for _, id := range tmdbIDs {
		values = append(values, strconv.Quote(strconv.FormatInt(id, 10)))
	}
	query := fmt.Sprintf(`SELECT ?tmdbId ?item ?itemLabel ?article WHERE {
  VALUES ?tmdbId { %s }
  ?item wdt:%s ?tmdbId.
  OPTIONAL {
    ?article schema:about ?item;
             schema:isPartOf <https://en.wikipedia.org/>.
  }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}`, strings.Join(values, " "), prop)

	result, err := c.query(ctx, "entities_by_tmdb_ids", query)
	if err != nil {
		return nil, err
	}
	entities := make(map[int64]Entity, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		tmdbID, err := strconv.ParseInt(binding["tmdbId"].Value, 10, 64)
		if err != nil {
			continue
		}
		entities[tmdbID] = bindingToEntity(binding)
	}
	return entities, nil
}

// EntityFacts reads the given properties of one entity. Values are Q-ids for
// entity-valued properties and literals otherwise, deduplicated in first-seen
// order and keyed by property id.
func (c *Client) EntityFacts(ctx context.Context, entityID string, properties []string) (map[string][]string, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, errors.New("entity id required")
	}
	if len(properties) == 0 {
		properties = ContentProperties
	}
	clauses := make([]string, 0, len(properties))
	for _, prop := range properties {
		clauses = append(clauses, fmt.Sprintf("OPTIONAL { wd:%s wdt:%s ?%s . }", entityID, prop, prop))
	}
	query := "SELECT * WHERE {\n  " + strings.Join(clauses, "\n  ") + "\n}"

	result, err := c.query(ctx, "entity_facts", query)
	if err != nil {
		return nil, err
	}

	// OPTIONAL clauses multiply bindings, so the same value shows up once per
	// combination of the other properties.
	facts := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, binding := range result.Results.Bindings {
		for _, prop := range properties {
			value, ok := binding[prop]
			if !ok || value.Value == "" {
				continue
			}
			trimmed := strings.TrimPrefix(value.Value, entityURIPrefix)
			if seen[prop] == nil {
				seen[prop] = make(map[string]bool)
			}
			if seen[prop][trimmed] {
				continue
			}
			seen[prop][trimmed] = true
			facts[prop] = append(facts[prop], trimmed)
		}
	}
	return facts, nil
}

// Labels resolves entity ids to their labels in one query. An id with no
// label maps to itself.
func (c *Client) Labels(ctx context.Context, entityIDs []string, language string) (map[string]string, error) {
	if len(entityIDs) == 0 {
		return map[string]string{}, nil
	}
	if language == "" {
		language = "en"
	}
	values := make([]string, 0, len(entityIDs))
	for _, id := range entityIDs {
		values = append(values, "wd:"+id)
	}
	query := fmt.Sprintf(`SELECT ?item ?itemLabel WHERE {
  VALUES ?item { %s }
  SERVICE wikibase:label { bd:serviceParam wikibase:language %q. }
}`, strings.Join(values, " "), language)

	result, err := c.query(ctx, "entity_labels", query)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		entityID := lastSegment(binding["item"].Value)
		label := binding["itemLabel"].Value
		if label == "" {
			label = entityID
		}
		labels[entityID] = label
	}
	return labels, nil
}

func (c *Client) query(ctx context.Context, endpoint, query string) (*sparqlResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	target := c.sparqlURL + "?" + params.Encode()

	resp, err := c.requester.Do(ctx, endpoint, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/sparql-results+json")
		req.Header.Set("User-Agent", c.userAgent)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fetch.Wrap(fetch.ErrPermanent, sourceName, endpoint, "decode response", err)
	}
	return &payload, nil
}

func bindingToEntity(binding map[string]sparqlValue) Entity {
	entity := Entity{
		WikidataID: lastSegment(binding["item"].Value),
		Label:      binding["itemLabel"].Value,
	}
	if article, ok := binding["article"]; ok && article.Value != "" {
		entity.WikipediaURL = article.Value
		entity.WikipediaTitle = titleFromURL(article.Value)
	}
	return entity
}

func lastSegment(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}

// titleFromURL recovers a page title from its article URL.
func titleFromURL(articleURL string) string {
	_, title, found := strings.Cut(articleURL, "/wiki/")
	if !found {
		return ""
	}
	if decoded, err := url.PathUnescape(title); err == nil {
		title = decoded
	}
	return strings.ReplaceAll(title, "_", " ")
}
