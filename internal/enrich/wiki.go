package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/logging"
	"gleaner/internal/sources/wikidata"
	"gleaner/internal/sources/wikipedia"
)

// readPageSize is how many stored records one walk step loads.
const readPageSize = 1000

// categoryFetchLimit is how many raw categories to pull per article before
// filtering; maintenance categories burn most of the budget.
const categoryFetchLimit = 50

// WikiStore is the catalog slice the wiki pass walks and writes.
type WikiStore interface {
	ContentPage(ctx context.Context, mediaType catalog.ItemType, afterID int64, limit int) ([]*catalog.Content, error)
	UpsertContent(ctx context.Context, record *catalog.Content) error
}

// EntitySource resolves knowledge-base entities and their claims.
type EntitySource interface {
	EntityByTMDBID(ctx context.Context, prop wikidata.IDProperty, tmdbID int64) (*wikidata.Entity, error)
	EntityFacts(ctx context.Context, entityID string, properties []string) (map[string][]string, error)
	Labels(ctx context.Context, entityIDs []string, language string) (map[string]string, error)
}

// ArticleSource fetches encyclopedia article text and categories. A nil
// source limits the pass to structured facts.
type ArticleSource interface {
	PageExtract(ctx context.Context, title string) (string, error)
	PageCategories(ctx context.Context, title string, limit int) ([]string, error)
	PageSummary(ctx context.Context, title string) (*wikipedia.Summary, error)
}

// WikiRunOptions narrows what one wiki pass covers.
type WikiRunOptions struct {
	// Types to walk; movies and series when empty.
	Types []catalog.ItemType
	// Limit stops the walk after this many records when positive.
	Limit int
}

// WikiResult summarizes one wiki pass.
type WikiResult struct {
	Scanned   int
	Matched   int
	Unmatched int
	Updated   int
	Failed    int
}

// WikiPass walks the stored corpus in id order and layers encyclopedia
// text and knowledge-base facts onto each title. It feeds off records the
// content pass already wrote rather than the work queue: a title missing
// from the encyclopedia today is worth retrying on every walk.
type WikiPass struct {
	entities EntitySource
	articles ArticleSource
	store    WikiStore
	logger   *slog.Logger

	keywordCap int
}

// NewWikiPass builds a wiki pass with the keyword cap from the
// configuration.
func NewWikiPass(cfg *config.Config, entities EntitySource, articles ArticleSource, store WikiStore, logger *slog.Logger) *WikiPass {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WikiPass{
		entities:   entities,
		articles:   articles,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "enrich-wiki"),
		keywordCap: cfg.Enrichment.KeywordCap,
	}
}

// Run pages through stored titles and enriches each one. Lookup and fetch
// problems fail the record and move on; only store errors abort the walk.
func (p *WikiPass) Run(ctx context.Context, opts WikiRunOptions) (WikiResult, error) {
	var result WikiResult
	types := opts.Types
	if len(types) == 0 {
		types = []catalog.ItemType{catalog.ItemTypeMovie, catalog.ItemTypeSeries}
	}
	for _, itemType := range types {
		if itemType != catalog.ItemTypeMovie && itemType != catalog.ItemTypeSeries {
			continue
		}
		if err := p.runType(ctx, itemType, opts.Limit, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (p *WikiPass) runType(ctx context.Context, itemType catalog.ItemType, limit int, result *WikiResult) error {
	var afterID int64
	for {
		pageSize := readPageSize
		if limit > 0 {
			remaining := limit - result.Scanned
			if remaining <= 0 {
				return nil
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}
		records, err := p.store.ContentPage(ctx, itemType, afterID, pageSize)
		if err != nil {
			return fmt.Errorf("page %s content: %w", itemType, err)
		}
		if len(records) == 0 {
			return nil
		}
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			afterID = record.ID
			result.Scanned++
			if err := p.enrichRecord(ctx, record, result); err != nil {
				return err
			}
		}
	}
}

func (p *WikiPass) enrichRecord(ctx context.Context, record *catalog.Content, result *WikiResult) error {
	entity, err := p.entities.EntityByTMDBID(ctx, entityProperty(record.MediaType), record.ID)
	if err != nil {
		result.Failed++
		p.logger.Warn("entity lookup failed",
			logging.String(logging.FieldItemType, string(record.MediaType)),
			logging.Int64("content_id", record.ID),
			logging.Error(err))
		return nil
	}
	if entity == nil {
		result.Unmatched++
		return nil
	}
	result.Matched++

	record.WikidataID = FillString(record.WikidataID, entity.WikidataID)
	record.WikipediaURL = FillString(record.WikipediaURL, entity.WikipediaURL)

	p.applyFacts(ctx, record, entity.WikidataID)
	p.applyArticle(ctx, record, entity)

	if err := p.store.UpsertContent(ctx, record); err != nil {
		return fmt.Errorf("store %s %d: %w", record.MediaType, record.ID, err)
	}
	result.Updated++
	return nil
}

// applyFacts folds structured claims into the record. Genres union in,
// single-valued fields fill blanks only, and entity references resolve to
// labels in one batch per record.
func (p *WikiPass) applyFacts(ctx context.Context, record *catalog.Content, entityID string) {
	facts, err := p.entities.EntityFacts(ctx, entityID, nil)
	if err != nil {
		p.logger.Warn("entity facts failed",
			logging.String("entity", entityID),
			logging.Error(err))
		return
	}
	if len(facts) == 0 {
		return
	}
	labels := p.resolveLabels(ctx, facts)

	record.Genres = Union(record.Genres, labelValues(facts[wikidata.PropGenre], labels), 0)
	if names := labelValues(facts[wikidata.PropOriginalNetwork], labels); len(names) > 0 {
		record.Network = FillString(record.Network, names[0])
	}
	record.Directors = FillList(record.Directors, labelValues(facts[wikidata.PropDirector], labels))
	record.Screenwriters = FillList(record.Screenwriters, labelValues(facts[wikidata.PropScreenwriter], labels))
	record.Creators = FillList(record.Creators, labelValues(facts[wikidata.PropCreator], labels))
	record.OriginCountries = FillList(record.OriginCountries, labelValues(facts[wikidata.PropCountryOfOrigin], labels))
	record.FilmingLocations = FillList(record.FilmingLocations, labelValues(facts[wikidata.PropFilmingLocation], labels))
	record.NarrativeLocations = FillList(record.NarrativeLocations, labelValues(facts[wikidata.PropNarrativeLocation], labels))
	record.IMDBID = FillString(record.IMDBID, firstValue(facts[wikidata.PropIMDBID]))

	if record.ReleaseDate == "" {
		if date := firstValue(facts[wikidata.PropPublicationDate]); len(date) >= 10 {
			record.ReleaseDate = date[:10]
		}
	}
	if record.Runtime == 0 {
		if minutes := firstValue(facts[wikidata.PropDuration]); minutes != "" {
			if parsed, err := strconv.ParseFloat(minutes, 64); err == nil && parsed > 0 {
				record.Runtime = int(parsed)
			}
		}
	}
}

// resolveLabels collects every entity reference across the fact set and
// resolves them in one label call.
func (p *WikiPass) resolveLabels(ctx context.Context, facts map[string][]string) map[string]string {
	var ids []string
	seen := make(map[string]struct{})
	for _, values := range facts {
		for _, value := range values {
			if !isEntityRef(value) {
				continue
			}
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			ids = append(ids, value)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	labels, err := p.entities.Labels(ctx, ids, "en")
	if err != nil {
		p.logger.Warn("label resolution failed", logging.Error(err))
		return nil
	}
	return labels
}

// applyArticle fetches the full article, splits it into canonical
// sections, and replaces the stored wiki columns wholesale: the article is
// the authority on its own text. The overview changes only when the
// encyclopedia candidate is substantially richer than what stands. When
// the full text is missing the short REST summary can still improve the
// overview, but carries no sections or categories.
func (p *WikiPass) applyArticle(ctx context.Context, record *catalog.Content, entity *wikidata.Entity) {
	if p.articles == nil || entity.WikipediaTitle == "" {
		return
	}
	extract, err := p.articles.PageExtract(ctx, entity.WikipediaTitle)
	if err != nil {
		p.logger.Warn("article fetch failed",
			logging.String("title", entity.WikipediaTitle),
			logging.Error(err))
		return
	}
	if extract == "" {
		p.applySummaryFallback(ctx, record, entity.WikipediaTitle)
		return
	}

	sections := wikipedia.SplitSections(extract)
	record.Wiki = catalog.WikiSections{
		Plot:         sections.Plot,
		Synopsis:     sections.Synopsis,
		EpisodeGuide: sections.EpisodeGuide,
		Production:   sections.Production,
		CastNotes:    sections.CastNotes,
		Reception:    sections.Reception,
		Soundtrack:   sections.Soundtrack,
		Release:      sections.Release,
		Accolades:    sections.Accolades,
	}
	if candidate := sections.Overview(); RicherText(record.Overview, candidate) {
		record.Overview = candidate
		record.OverviewSource = sourceWikipedia
	}

	categories, err := p.articles.PageCategories(ctx, entity.WikipediaTitle, categoryFetchLimit)
	if err != nil {
		p.logger.Warn("category fetch failed",
			logging.String("title", entity.WikipediaTitle),
			logging.Error(err))
		return
	}
	record.Keywords = Union(record.Keywords, wikipedia.FilterCategories(categories), p.keywordCap)
}

func (p *WikiPass) applySummaryFallback(ctx context.Context, record *catalog.Content, title string) {
	summary, err := p.articles.PageSummary(ctx, title)
	if err != nil {
		p.logger.Warn("summary fetch failed",
			logging.String("title", title),
			logging.Error(err))
		return
	}
	if summary == nil {
		return
	}
	if RicherText(record.Overview, summary.Extract) {
		record.Overview = summary.Extract
		record.OverviewSource = sourceWikipedia
	}
}

func entityProperty(mediaType catalog.ItemType) wikidata.IDProperty {
	if mediaType == catalog.ItemTypeSeries {
		return wikidata.TVID
	}
	return wikidata.MovieID
}

// labelValues maps claim values through the label table, passing literals
// straight through. References the batch could not resolve are dropped.
func labelValues(values []string, labels map[string]string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if isEntityRef(value) {
			if label, ok := labels[value]; ok && label != "" {
				out = append(out, label)
			}
			continue
		}
		out = append(out, value)
	}
	return out
}

// isEntityRef reports whether value is a Q-id reference rather than a
// literal.
func isEntityRef(value string) bool {
	if len(value) < 2 || value[0] != 'Q' {
		return false
	}
	for _, r := range value[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
