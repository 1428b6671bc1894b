package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const contentColumns = "id, media_type, title, original_title, overview, overview_source, tagline, release_date, runtime, genres, keywords, spoken_languages, origin_countries, alternative_titles, network, directors, screenwriters, creators, filming_locations, narrative_locations, vote_average, vote_count, popularity, poster_path, backdrop_path, content_rating, imdb_id, wikidata_id, wikipedia_url, homepage, production_status, budget, revenue, seasons, episodes, video_count, image_count, provider_count, translation_count, wiki_plot, wiki_synopsis, wiki_episode_guide, wiki_production, wiki_cast_notes, wiki_reception, wiki_soundtrack, wiki_release, wiki_accolades, related, quality_score, enriched_at, created_at, updated_at"

var upsertContentSQL = `INSERT INTO content (` + contentColumns + `)
VALUES (` + makePlaceholders(53) + `)
ON CONFLICT(id, media_type) DO UPDATE SET
    title = excluded.title,
    original_title = excluded.original_title,
    overview = excluded.overview,
    overview_source = excluded.overview_source,
    tagline = excluded.tagline,
    release_date = excluded.release_date,
    runtime = excluded.runtime,
    genres = excluded.genres,
    keywords = excluded.keywords,
    spoken_languages = excluded.spoken_languages,
    origin_countries = excluded.origin_countries,
    alternative_titles = excluded.alternative_titles,
    network = excluded.network,
    directors = excluded.directors,
    screenwriters = excluded.screenwriters,
    creators = excluded.creators,
    filming_locations = excluded.filming_locations,
    narrative_locations = excluded.narrative_locations,
    vote_average = excluded.vote_average,
    vote_count = excluded.vote_count,
    popularity = excluded.popularity,
    poster_path = excluded.poster_path,
    backdrop_path = excluded.backdrop_path,
    content_rating = excluded.content_rating,
    imdb_id = excluded.imdb_id,
    wikidata_id = excluded.wikidata_id,
    wikipedia_url = excluded.wikipedia_url,
    homepage = excluded.homepage,
    production_status = excluded.production_status,
    budget = excluded.budget,
    revenue = excluded.revenue,
    seasons = excluded.seasons,
    episodes = excluded.episodes,
    video_count = excluded.video_count,
    image_count = excluded.image_count,
    provider_count = excluded.provider_count,
    translation_count = excluded.translation_count,
    wiki_plot = excluded.wiki_plot,
    wiki_synopsis = excluded.wiki_synopsis,
    wiki_episode_guide = excluded.wiki_episode_guide,
    wiki_production = excluded.wiki_production,
    wiki_cast_notes = excluded.wiki_cast_notes,
    wiki_reception = excluded.wiki_reception,
    wiki_soundtrack = excluded.wiki_soundtrack,
    wiki_release = excluded.wiki_release,
    wiki_accolades = excluded.wiki_accolades,
    related = excluded.related,
    quality_score = excluded.quality_score,
    enriched_at = excluded.enriched_at,
    updated_at = excluded.updated_at`

func contentArgs(record *Content) []any {
	return []any{
		record.ID,
		record.MediaType,
		nullableString(record.Title),
		nullableString(record.OriginalTitle),
		nullableString(record.Overview),
		nullableString(record.OverviewSource),
		nullableString(record.Tagline),
		nullableString(record.ReleaseDate),
		record.Runtime,
		marshalStrings(record.Genres),
		marshalStrings(record.Keywords),
		marshalStrings(record.SpokenLanguages),
		marshalStrings(record.OriginCountries),
		marshalStrings(record.AlternativeTitles),
		nullableString(record.Network),
		marshalStrings(record.Directors),
		marshalStrings(record.Screenwriters),
		marshalStrings(record.Creators),
		marshalStrings(record.FilmingLocations),
		marshalStrings(record.NarrativeLocations),
		record.VoteAverage,
		record.VoteCount,
		record.Popularity,
		nullableString(record.PosterPath),
		nullableString(record.BackdropPath),
		nullableString(record.ContentRating),
		nullableString(record.IMDBID),
		nullableString(record.WikidataID),
		nullableString(record.WikipediaURL),
		nullableString(record.Homepage),
		nullableString(record.ProductionStatus),
		record.Budget,
		record.Revenue,
		record.Seasons,
		record.Episodes,
		record.VideoCount,
		record.ImageCount,
		record.ProviderCount,
		record.TranslationCount,
		nullableString(record.Wiki.Plot),
		nullableString(record.Wiki.Synopsis),
		nullableString(record.Wiki.EpisodeGuide),
		nullableString(record.Wiki.Production),
		nullableString(record.Wiki.CastNotes),
		nullableString(record.Wiki.Reception),
		nullableString(record.Wiki.Soundtrack),
		nullableString(record.Wiki.Release),
		nullableString(record.Wiki.Accolades),
		marshalIDs(record.Related),
		record.QualityScore,
		nullableTime(record.EnrichedAt),
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func scanContent(scanner interface{ Scan(dest ...any) error }) (*Content, error) {
	var (
		id                 int64
		mediaType          string
		title              sql.NullString
		originalTitle      sql.NullString
		overview           sql.NullString
		overviewSource     sql.NullString
		tagline            sql.NullString
		releaseDate        sql.NullString
		runtime            sql.NullInt64
		genres             sql.NullString
		keywords           sql.NullString
		spokenLanguages    sql.NullString
		originCountries    sql.NullString
		alternativeTitles  sql.NullString
		network            sql.NullString
		directors          sql.NullString
		screenwriters      sql.NullString
		creators           sql.NullString
		filmingLocations   sql.NullString
		narrativeLocations sql.NullString
		voteAverage        sql.NullFloat64
		voteCount          sql.NullInt64
		popularity         sql.NullFloat64
		posterPath         sql.NullString
		backdropPath       sql.NullString
		contentRating      sql.NullString
		imdbID             sql.NullString
		wikidataID         sql.NullString
		wikipediaURL       sql.NullString
		homepage           sql.NullString
		productionStatus   sql.NullString
		budget             sql.NullInt64
		revenue            sql.NullInt64
		seasons            sql.NullInt64
		episodes           sql.NullInt64
		videoCount         sql.NullInt64
		imageCount         sql.NullInt64
		providerCount      sql.NullInt64
		translationCount   sql.NullInt64
		wikiPlot           sql.NullString
		wikiSynopsis       sql.NullString
		wikiEpisodeGuide   sql.NullString
		wikiProduction     sql.NullString
		wikiCastNotes      sql.NullString
		wikiReception      sql.NullString
		wikiSoundtrack     sql.NullString
		wikiRelease        sql.NullString
		wikiAccolades      sql.NullString
		related            sql.NullString
		qualityScore       sql.NullInt64
		enrichedRaw        sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&mediaType,
		&title,
		&originalTitle,
		&overview,
		&overviewSource,
		&tagline,
		&releaseDate,
		&runtime,
		&genres,
		&keywords,
		&spokenLanguages,
		&originCountries,
		&alternativeTitles,
		&network,
		&directors,
		&screenwriters,
		&creators,
		&filmingLocations,
		&narrativeLocations,
		&voteAverage,
		&voteCount,
		&popularity,
		&posterPath,
		&backdropPath,
		&contentRating,
		&imdbID,
		&wikidataID,
		&wikipediaURL,
		&homepage,
		&productionStatus,
		&budget,
		&revenue,
		&seasons,
		&episodes,
		&videoCount,
		&imageCount,
		&providerCount,
		&translationCount,
		&wikiPlot,
		&wikiSynopsis,
		&wikiEpisodeGuide,
		&wikiProduction,
		&wikiCastNotes,
		&wikiReception,
		&wikiSoundtrack,
		&wikiRelease,
		&wikiAccolades,
		&related,
		&qualityScore,
		&enrichedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Content{
		ID:                 id,
		MediaType:          ItemType(mediaType),
		Title:              title.String,
		OriginalTitle:      originalTitle.String,
		Overview:           overview.String,
		OverviewSource:     overviewSource.String,
		Tagline:            tagline.String,
		ReleaseDate:        releaseDate.String,
		Runtime:            int(runtime.Int64),
		Genres:             unmarshalStrings(genres),
		Keywords:           unmarshalStrings(keywords),
		SpokenLanguages:    unmarshalStrings(spokenLanguages),
		OriginCountries:    unmarshalStrings(originCountries),
		AlternativeTitles:  unmarshalStrings(alternativeTitles),
		Network:            network.String,
		Directors:          unmarshalStrings(directors),
		Screenwriters:      unmarshalStrings(screenwriters),
		Creators:           unmarshalStrings(creators),
		FilmingLocations:   unmarshalStrings(filmingLocations),
		NarrativeLocations: unmarshalStrings(narrativeLocations),
		VoteAverage:        voteAverage.Float64,
		VoteCount:          voteCount.Int64,
		Popularity:         popularity.Float64,
		PosterPath:         posterPath.String,
		BackdropPath:       backdropPath.String,
		ContentRating:      contentRating.String,
		IMDBID:             imdbID.String,
		WikidataID:         wikidataID.String,
		WikipediaURL:       wikipediaURL.String,
		Homepage:           homepage.String,
		ProductionStatus:   productionStatus.String,
		Budget:             budget.Int64,
		Revenue:            revenue.Int64,
		Seasons:            int(seasons.Int64),
		Episodes:           int(episodes.Int64),
		VideoCount:         int(videoCount.Int64),
		ImageCount:         int(imageCount.Int64),
		ProviderCount:      int(providerCount.Int64),
		TranslationCount:   int(translationCount.Int64),
		Wiki: WikiSections{
			Plot:         wikiPlot.String,
			Synopsis:     wikiSynopsis.String,
			EpisodeGuide: wikiEpisodeGuide.String,
			Production:   wikiProduction.String,
			CastNotes:    wikiCastNotes.String,
			Reception:    wikiReception.String,
			Soundtrack:   wikiSoundtrack.String,
			Release:      wikiRelease.String,
			Accolades:    wikiAccolades.String,
		},
		Related:      unmarshalIDs(related),
		QualityScore: int(qualityScore.Int64),
	}
	if enrichedRaw.Valid {
		if enriched, err := parseTimeString(enrichedRaw.String); err == nil {
			record.EnrichedAt = &enriched
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

// UpsertContent writes one full content record, preserving created_at for
// existing rows.
func (s *Store) UpsertContent(ctx context.Context, record *Content) error {
	if record == nil {
		return errors.New("content is nil")
	}
	now := time.Now().UTC()
	record.UpdatedAt = now
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if err := s.execWithoutResultRetry(ctx, upsertContentSQL, contentArgs(record)...); err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

// UpsertContentBatch writes records in one transaction and returns how many
// were written.
func (s *Store) UpsertContentBatch(ctx context.Context, records []*Content) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin content tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	written := 0
	for _, record := range records {
		if record == nil {
			continue
		}
		record.UpdatedAt = now
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, upsertContentSQL, contentArgs(record)...); err != nil {
			return written, fmt.Errorf("upsert %s %d: %w", record.MediaType, record.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("commit content batch: %w", err)
	}
	return written, nil
}

// GetContent fetches a content record by id and media type.
func (s *Store) GetContent(ctx context.Context, id int64, mediaType ItemType) (*Content, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+contentColumns+` FROM content WHERE id = ? AND media_type = ?`, id, mediaType)
	record, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return record, nil
}

// ContentIDs returns the set of known content ids, optionally filtered by
// media type. Harvest passes hold it as an in-memory membership snapshot so
// dedup stays O(1) per candidate.
func (s *Store) ContentIDs(ctx context.Context, mediaType ItemType) (map[int64]struct{}, error) {
	ctx = ensureContext(ctx)

	var (
		rows *sql.Rows
		err  error
	)
	if mediaType == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT id FROM content`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id FROM content WHERE media_type = ?`, mediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("select content ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ContentCounts returns record counts grouped by media type.
func (s *Store) ContentCounts(ctx context.Context) (map[ItemType]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT media_type, COUNT(1) FROM content GROUP BY media_type`)
	if err != nil {
		return nil, fmt.Errorf("content counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[ItemType]int)
	for rows.Next() {
		var mediaType ItemType
		var count int
		if err := rows.Scan(&mediaType, &count); err != nil {
			return nil, err
		}
		counts[mediaType] = count
	}
	return counts, rows.Err()
}

// ContentPage returns up to limit records of one media type with ids
// greater than afterID, ordered by id. Callers walk a type by passing the
// last id they saw; the id cursor is only meaningful within a single type.
func (s *Store) ContentPage(ctx context.Context, mediaType ItemType, afterID int64, limit int) ([]*Content, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+contentColumns+` FROM content WHERE media_type = ? AND id > ? ORDER BY id LIMIT ?`, mediaType, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("content page: %w", err)
	}
	defer rows.Close()

	var records []*Content
	for rows.Next() {
		record, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
