package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/fetch"
	"gleaner/internal/linker"
	"gleaner/internal/logging"
	"gleaner/internal/sources/tmdb"
)

// Provenance labels recorded alongside overview and biography text.
const (
	sourceTMDB      = "tmdb"
	sourceWikipedia = "wikipedia"
)

// ContentSource is the slice of the TMDB client the content pass drives.
type ContentSource interface {
	Detail(ctx context.Context, kind tmdb.Kind, id int64) (*tmdb.Detail, error)
}

// ContentStore is the catalog slice the content pass reads and writes.
type ContentStore interface {
	Dequeue(ctx context.Context, limit int, filter catalog.DequeueFilter) ([]*catalog.WorkItem, error)
	GetContent(ctx context.Context, id int64, mediaType catalog.ItemType) (*catalog.Content, error)
	UpsertContentBatch(ctx context.Context, records []*catalog.Content) (int, error)
	MarkCompleted(ctx context.Context, ids ...int64) error
	MarkFailed(ctx context.Context, reason string, ids ...int64) error
}

// CreditSink receives each batch's credit blocks. A nil sink disables
// linking.
type CreditSink interface {
	LinkContentBatch(ctx context.Context, batch []linker.ContentCredits) (linker.Stats, error)
}

// Result summarizes one enrichment pass.
type Result struct {
	Claimed  int
	Enriched int
	Failed   int
	Credits  linker.Stats
}

// ContentRunOptions narrows what one content pass claims.
type ContentRunOptions struct {
	// Types to process; movies and series when empty.
	Types []catalog.ItemType
	// Cycle restricts claims to one scheduler bucket when set.
	Cycle *int
	// Limit overrides the configured batch size when positive.
	Limit int
}

// ContentPass drains the title queue: fetch the full detail bundle, merge
// it onto any stored record, write the batch back, and hand the credits to
// the linker.
type ContentPass struct {
	source ContentSource
	store  ContentStore
	sink   CreditSink
	logger *slog.Logger

	batchSize  int
	gateWidth  int
	relatedCap int
}

// NewContentPass builds a content pass with batch tuning from the
// configuration.
func NewContentPass(cfg *config.Config, source ContentSource, store ContentStore, sink CreditSink, logger *slog.Logger) *ContentPass {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ContentPass{
		source:     source,
		store:      store,
		sink:       sink,
		logger:     logging.NewComponentLogger(logger, "enrich-content"),
		batchSize:  cfg.Enrichment.ContentBatchSize,
		gateWidth:  cfg.Enrichment.GateWidth,
		relatedCap: cfg.Enrichment.RelatedCap,
	}
}

// Run claims pending title work and enriches it type by type. Fetch
// failures mark the item with a reason; store write errors abort the run
// and leave the batch in processing for the stuck-item sweep to reclaim.
func (p *ContentPass) Run(ctx context.Context, opts ContentRunOptions) (Result, error) {
	var result Result
	types := opts.Types
	if len(types) == 0 {
		types = []catalog.ItemType{catalog.ItemTypeMovie, catalog.ItemTypeSeries}
	}
	limit := p.batchSize
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	for _, itemType := range types {
		if itemType != catalog.ItemTypeMovie && itemType != catalog.ItemTypeSeries {
			p.logger.Warn("skipping non-content item type",
				logging.String(logging.FieldItemType, string(itemType)))
			continue
		}
		items, err := p.store.Dequeue(ctx, limit, catalog.DequeueFilter{ItemType: itemType, Cycle: opts.Cycle})
		if err != nil {
			return result, fmt.Errorf("dequeue %s work: %w", itemType, err)
		}
		if len(items) == 0 {
			continue
		}
		result.Claimed += len(items)
		if err := p.runBatch(ctx, itemType, items, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (p *ContentPass) runBatch(ctx context.Context, itemType catalog.ItemType, items []*catalog.WorkItem, result *Result) error {
	kind := sourceKind(itemType)
	details := fetch.Batch(ctx, p.gateWidth, items, func(ctx context.Context, item *catalog.WorkItem) (*tmdb.Detail, error) {
		return p.source.Detail(ctx, kind, item.ExternalID)
	})

	now := time.Now().UTC()
	records := make([]*catalog.Content, 0, len(items))
	credits := make([]linker.ContentCredits, 0, len(items))
	completed := make([]int64, 0, len(items))
	failures := make(map[string][]int64)

	for i, slot := range details {
		item := items[i]
		if !slot.Ok() {
			reason := "source fetch failed"
			if fetch.IsNotFound(slot.Err) {
				reason = "source record missing"
			}
			failures[reason] = append(failures[reason], item.ID)
			result.Failed++
			p.logger.Warn("content detail fetch failed",
				logging.String(logging.FieldItemType, string(itemType)),
				logging.Int64("external_id", item.ExternalID),
				logging.Error(slot.Err))
			continue
		}
		fresh := contentFromDetail(itemType, slot.Value, p.relatedCap, now)
		existing, err := p.store.GetContent(ctx, fresh.ID, itemType)
		if err != nil {
			return fmt.Errorf("load stored %s %d: %w", itemType, fresh.ID, err)
		}
		if existing != nil {
			mergeContent(existing, fresh)
		}
		records = append(records, fresh)
		completed = append(completed, item.ID)
		credits = append(credits, creditsFromDetail(fresh.ID, itemType, slot.Value))
	}

	if len(records) > 0 {
		if _, err := p.store.UpsertContentBatch(ctx, records); err != nil {
			return fmt.Errorf("upsert %s batch: %w", itemType, err)
		}
	}
	if err := p.store.MarkCompleted(ctx, completed...); err != nil {
		return fmt.Errorf("complete %s items: %w", itemType, err)
	}
	result.Enriched += len(completed)
	for reason, ids := range failures {
		if err := p.store.MarkFailed(ctx, reason, ids...); err != nil {
			return fmt.Errorf("fail %s items: %w", itemType, err)
		}
	}

	if p.sink != nil && len(credits) > 0 {
		stats, err := p.sink.LinkContentBatch(ctx, credits)
		if err != nil {
			p.logger.Warn("credit linking failed",
				logging.String(logging.FieldItemType, string(itemType)),
				logging.Error(err))
		}
		result.Credits.Add(stats)
	}
	return nil
}

func sourceKind(itemType catalog.ItemType) tmdb.Kind {
	if itemType == catalog.ItemTypeSeries {
		return tmdb.KindTV
	}
	return tmdb.KindMovie
}

// contentFromDetail flattens a detail bundle into a catalog record. The
// source owns every field it reports; wiki-owned columns stay zero and are
// carried over from the stored record when one exists.
func contentFromDetail(itemType catalog.ItemType, detail *tmdb.Detail, relatedCap int, now time.Time) *catalog.Content {
	record := &catalog.Content{
		ID:               detail.ID,
		MediaType:        itemType,
		Title:            detail.DisplayTitle(),
		OriginalTitle:    detail.DisplayOriginalTitle(),
		Overview:         detail.Overview,
		Tagline:          detail.Tagline,
		ReleaseDate:      detail.DisplayDate(),
		Runtime:          detail.DisplayRuntime(),
		OriginCountries:  detail.OriginCountry,
		VoteAverage:      detail.VoteAverage,
		VoteCount:        detail.VoteCount,
		Popularity:       detail.Popularity,
		PosterPath:       detail.PosterPath,
		BackdropPath:     detail.BackdropPath,
		ContentRating:    detail.USRating(),
		IMDBID:           detail.IMDBID,
		Homepage:         detail.Homepage,
		ProductionStatus: detail.Status,
		Budget:           detail.Budget,
		Revenue:          detail.Revenue,
		Seasons:          detail.NumberOfSeasons,
		Episodes:         detail.NumberOfEpisodes,
		EnrichedAt:       &now,
	}
	if strings.TrimSpace(record.Overview) != "" {
		record.OverviewSource = sourceTMDB
	}
	if len(detail.Networks) > 0 {
		record.Network = detail.Networks[0].Name
	}
	for _, genre := range detail.Genres {
		if genre.Name != "" {
			record.Genres = append(record.Genres, genre.Name)
		}
	}
	if detail.Keywords != nil {
		for _, keyword := range detail.Keywords.All() {
			if keyword.Name != "" {
				record.Keywords = append(record.Keywords, keyword.Name)
			}
		}
	}
	for _, lang := range detail.SpokenLanguages {
		name := lang.EnglishName
		if name == "" {
			name = lang.Name
		}
		if name != "" {
			record.SpokenLanguages = append(record.SpokenLanguages, name)
		}
	}
	if detail.AlternativeTitles != nil {
		for _, alt := range detail.AlternativeTitles.All() {
			if alt.Title != "" {
				record.AlternativeTitles = append(record.AlternativeTitles, alt.Title)
			}
		}
	}
	if detail.ExternalIDs != nil {
		record.IMDBID = FillString(record.IMDBID, detail.ExternalIDs.IMDBID)
		record.WikidataID = detail.ExternalIDs.WikidataID
	}
	if detail.Videos != nil {
		record.VideoCount = len(detail.Videos.Results)
	}
	if detail.Images != nil {
		record.ImageCount = detail.Images.Count()
	}
	if detail.WatchProviders != nil {
		record.ProviderCount = len(detail.WatchProviders.Results)
	}
	if detail.Translations != nil {
		record.TranslationCount = len(detail.Translations.Translations)
	}
	record.Related = relatedIDs(detail, relatedCap)
	return record
}

// relatedIDs collects recommendation and similar-title ids, each feed
// capped separately, deduplicated in feed order.
func relatedIDs(detail *tmdb.Detail, limit int) []int64 {
	var related []int64
	seen := make(map[int64]struct{})
	collect := func(page *tmdb.Page) {
		if page == nil {
			return
		}
		taken := 0
		for _, entry := range page.Results {
			if limit > 0 && taken >= limit {
				break
			}
			if entry.ID <= 0 {
				continue
			}
			if _, dup := seen[entry.ID]; dup {
				continue
			}
			seen[entry.ID] = struct{}{}
			related = append(related, entry.ID)
			taken++
		}
	}
	collect(detail.Recommendations)
	collect(detail.Similar)
	return related
}

// creditsFromDetail builds the linker's credit block for one title: stub
// person records plus the cast and crew links. Link keys are stamped by
// the store from the block's own id and kind.
func creditsFromDetail(contentID int64, itemType catalog.ItemType, detail *tmdb.Detail) linker.ContentCredits {
	block := linker.ContentCredits{ContentID: contentID, MediaType: itemType}
	if detail.Credits == nil {
		return block
	}
	seen := make(map[int64]struct{})
	addPerson := func(id int64, name, profile string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		block.People = append(block.People, &catalog.Person{ID: id, Name: name, ProfilePath: profile})
	}
	for _, member := range detail.Credits.Cast {
		if member.ID <= 0 {
			continue
		}
		block.Cast = append(block.Cast, catalog.CastCredit{
			PersonID:  member.ID,
			Character: member.Character,
			Order:     member.Order,
		})
		addPerson(member.ID, member.Name, member.ProfilePath)
	}
	for _, member := range detail.Credits.Crew {
		if member.ID <= 0 || member.Job == "" {
			continue
		}
		block.Crew = append(block.Crew, catalog.CrewCredit{
			PersonID:   member.ID,
			Department: member.Department,
			Job:        member.Job,
		})
		addPerson(member.ID, member.Name, member.ProfilePath)
	}
	return block
}

// mergeContent folds the stored record's wiki-owned and bookkeeping fields
// into a fresh source snapshot. Source fields take the new value; text and
// facts the other enrichers wrote survive the re-fetch.
func mergeContent(existing, fresh *catalog.Content) {
	fresh.CreatedAt = existing.CreatedAt
	fresh.QualityScore = existing.QualityScore
	fresh.Wiki = existing.Wiki
	fresh.WikipediaURL = existing.WikipediaURL
	fresh.Directors = existing.Directors
	fresh.Screenwriters = existing.Screenwriters
	fresh.Creators = existing.Creators
	fresh.FilmingLocations = existing.FilmingLocations
	fresh.NarrativeLocations = existing.NarrativeLocations

	fresh.IMDBID = FillString(fresh.IMDBID, existing.IMDBID)
	fresh.WikidataID = FillString(fresh.WikidataID, existing.WikidataID)
	fresh.Network = FillString(fresh.Network, existing.Network)
	fresh.ReleaseDate = FillString(fresh.ReleaseDate, existing.ReleaseDate)
	if fresh.Runtime == 0 {
		fresh.Runtime = existing.Runtime
	}
	fresh.Genres = Union(fresh.Genres, existing.Genres, 0)
	fresh.Keywords = Union(fresh.Keywords, existing.Keywords, 0)

	if existing.OverviewSource == sourceWikipedia && !RicherText(existing.Overview, fresh.Overview) {
		fresh.Overview = existing.Overview
		fresh.OverviewSource = existing.OverviewSource
	}
}
