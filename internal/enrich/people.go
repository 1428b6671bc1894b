package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/fetch"
	"gleaner/internal/linker"
	"gleaner/internal/logging"
	"gleaner/internal/sources/tmdb"
	"gleaner/internal/sources/wikipedia"
)

// Person-side filmography links carry no real billing order, so they link
// at the bottom of the bill and never displace a content-pass link.
const filmographyOrder = 999

// aliasLookupCap bounds how many aliases feed the encyclopedia lookup.
const aliasLookupCap = 5

// PeopleSource is the slice of the TMDB client the people pass drives.
type PeopleSource interface {
	PersonDetail(ctx context.Context, id int64) (*tmdb.Person, error)
}

// BioSource looks up encyclopedia biographies by name. A nil source skips
// biography enrichment.
type BioSource interface {
	PersonBio(ctx context.Context, names []string) (*wikipedia.BioMatch, error)
}

// PeopleStore is the catalog slice the people pass reads and writes.
type PeopleStore interface {
	Dequeue(ctx context.Context, limit int, filter catalog.DequeueFilter) ([]*catalog.WorkItem, error)
	UpsertPersonBatch(ctx context.Context, people []*catalog.Person) (int, error)
	MarkCompleted(ctx context.Context, ids ...int64) error
	MarkFailed(ctx context.Context, reason string, ids ...int64) error
}

// FilmographySink receives person-side credit links. A nil sink disables
// linking.
type FilmographySink interface {
	LinkPeopleBatch(ctx context.Context, cast []catalog.CastCredit, crew []catalog.CrewCredit) (linker.Stats, error)
}

// PeopleRunOptions narrows what one people pass claims.
type PeopleRunOptions struct {
	// Cycle restricts claims to one scheduler bucket when set.
	Cycle *int
	// Limit overrides the configured batch size when positive.
	Limit int
}

// PeoplePass drains the person queue: fetch the full person bundle, layer
// an encyclopedia biography over thin source text, write the batch back,
// and hand the filmography to the linker.
type PeoplePass struct {
	source PeopleSource
	bio    BioSource
	store  PeopleStore
	sink   FilmographySink
	logger *slog.Logger

	batchSize int
	gateWidth int
}

// NewPeoplePass builds a people pass with batch tuning from the
// configuration.
func NewPeoplePass(cfg *config.Config, source PeopleSource, bio BioSource, store PeopleStore, sink FilmographySink, logger *slog.Logger) *PeoplePass {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PeoplePass{
		source:    source,
		bio:       bio,
		store:     store,
		sink:      sink,
		logger:    logging.NewComponentLogger(logger, "enrich-people"),
		batchSize: cfg.Enrichment.PeopleBatchSize,
		gateWidth: cfg.Enrichment.GateWidth,
	}
}

// Run claims pending person work and enriches it. Fetch failures mark the
// item with a reason; store write errors abort the run and leave the batch
// in processing for the stuck-item sweep to reclaim.
func (p *PeoplePass) Run(ctx context.Context, opts PeopleRunOptions) (Result, error) {
	var result Result
	limit := p.batchSize
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	items, err := p.store.Dequeue(ctx, limit, catalog.DequeueFilter{ItemType: catalog.ItemTypePerson, Cycle: opts.Cycle})
	if err != nil {
		return result, fmt.Errorf("dequeue person work: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}
	result.Claimed = len(items)

	details := fetch.Batch(ctx, p.gateWidth, items, func(ctx context.Context, item *catalog.WorkItem) (*tmdb.Person, error) {
		return p.source.PersonDetail(ctx, item.ExternalID)
	})

	now := time.Now().UTC()
	records := make([]*catalog.Person, 0, len(items))
	completed := make([]int64, 0, len(items))
	failures := make(map[string][]int64)
	var castLinks []catalog.CastCredit
	var crewLinks []catalog.CrewCredit

	for i, slot := range details {
		item := items[i]
		if !slot.Ok() {
			reason := "source fetch failed"
			if fetch.IsNotFound(slot.Err) {
				reason = "source record missing"
			}
			failures[reason] = append(failures[reason], item.ID)
			result.Failed++
			p.logger.Warn("person detail fetch failed",
				logging.Int64("external_id", item.ExternalID),
				logging.Error(slot.Err))
			continue
		}
		record := personFromDetail(slot.Value, now)
		p.enrichBiography(ctx, record, slot.Value)
		records = append(records, record)
		completed = append(completed, item.ID)

		cast, crew := filmographyCredits(slot.Value)
		castLinks = append(castLinks, cast...)
		crewLinks = append(crewLinks, crew...)
	}

	if len(records) > 0 {
		if _, err := p.store.UpsertPersonBatch(ctx, records); err != nil {
			return result, fmt.Errorf("upsert person batch: %w", err)
		}
	}
	if err := p.store.MarkCompleted(ctx, completed...); err != nil {
		return result, fmt.Errorf("complete person items: %w", err)
	}
	result.Enriched = len(completed)
	for reason, ids := range failures {
		if err := p.store.MarkFailed(ctx, reason, ids...); err != nil {
			return result, fmt.Errorf("fail person items: %w", err)
		}
	}

	if p.sink != nil && len(castLinks)+len(crewLinks) > 0 {
		stats, err := p.sink.LinkPeopleBatch(ctx, castLinks, crewLinks)
		if err != nil {
			p.logger.Warn("filmography linking failed", logging.Error(err))
		}
		result.Credits.Add(stats)
	}
	return result, nil
}

// enrichBiography asks the encyclopedia for a biography under the person's
// name variations and keeps it when substantially richer than the source
// text. Lookup failures only log; the source biography still stands.
func (p *PeoplePass) enrichBiography(ctx context.Context, record *catalog.Person, person *tmdb.Person) {
	if p.bio == nil {
		return
	}
	match, err := p.bio.PersonBio(ctx, nameVariations(person.Name, person.AlsoKnownAs))
	if err != nil {
		p.logger.Warn("biography lookup failed",
			logging.Int64("person_id", record.ID),
			logging.Error(err))
		return
	}
	if match == nil {
		return
	}
	if RicherText(record.Biography, match.Extract) {
		record.Biography = match.Extract
		record.BiographySource = sourceWikipedia
		p.logger.Debug("biography taken from encyclopedia",
			logging.Int64("person_id", record.ID),
			logging.String("matched_name", match.MatchedName))
	}
}

// personFromDetail flattens a person bundle into a catalog record.
func personFromDetail(person *tmdb.Person, now time.Time) *catalog.Person {
	record := &catalog.Person{
		ID:           person.ID,
		Name:         person.Name,
		AlsoKnownAs:  person.AlsoKnownAs,
		Biography:    person.Biography,
		Birthday:     person.Birthday,
		Deathday:     person.Deathday,
		PlaceOfBirth: person.PlaceOfBirth,
		KnownFor:     person.KnownForDepartment,
		ProfilePath:  person.BestProfilePath(),
		Popularity:   person.Popularity,
		IMDBID:       person.IMDBID,
		ImageCount:   person.ImageCount(),
		CreditCount:  person.CreditCount(),
		EnrichedAt:   &now,
	}
	if strings.TrimSpace(record.Biography) != "" {
		record.BiographySource = sourceTMDB
	}
	if person.ExternalIDs != nil {
		record.IMDBID = FillString(record.IMDBID, person.ExternalIDs.IMDBID)
		record.WikidataID = person.ExternalIDs.WikidataID
	}
	return record
}

// nameVariations builds the encyclopedia lookup list: the canonical name,
// a handful of aliases, a hyphenation variant, and title-cased forms of
// all-caps entries. Earlier entries are tried first.
func nameVariations(name string, aka []string) []string {
	var variants []string
	seen := make(map[string]struct{})
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		if _, dup := seen[candidate]; dup {
			return
		}
		seen[candidate] = struct{}{}
		variants = append(variants, candidate)
	}

	add(name)
	for i, alias := range aka {
		if i >= aliasLookupCap {
			break
		}
		add(alias)
	}

	if strings.Contains(name, "-") {
		add(strings.ReplaceAll(name, "-", " "))
	} else if parts := strings.Fields(name); len(parts) >= 2 {
		tail := parts[len(parts)-2] + "-" + parts[len(parts)-1]
		if head := strings.Join(parts[:len(parts)-2], " "); head != "" {
			add(head + " " + tail)
		} else {
			add(tail)
		}
	}

	titler := cases.Title(language.Und)
	for _, variant := range append([]string(nil), variants...) {
		if isAllCaps(variant) {
			add(titler.String(strings.ToLower(variant)))
		}
	}
	return variants
}

// isAllCaps reports whether s contains letters and none of them lowercase.
func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// filmographyCredits maps the combined filmography onto catalog credit
// links. Credits outside the movie and TV surfaces are skipped, as are
// crew entries without a job since the job is part of the link key.
func filmographyCredits(person *tmdb.Person) ([]catalog.CastCredit, []catalog.CrewCredit) {
	if person.CombinedCredits == nil {
		return nil, nil
	}
	var cast []catalog.CastCredit
	for _, credit := range person.CombinedCredits.Cast {
		mediaType, ok := creditMediaType(credit.MediaType)
		if !ok || credit.ID <= 0 {
			continue
		}
		cast = append(cast, catalog.CastCredit{
			ContentID: credit.ID,
			MediaType: mediaType,
			PersonID:  person.ID,
			Character: credit.Character,
			Order:     filmographyOrder,
		})
	}
	var crew []catalog.CrewCredit
	for _, credit := range person.CombinedCredits.Crew {
		mediaType, ok := creditMediaType(credit.MediaType)
		if !ok || credit.ID <= 0 || credit.Job == "" {
			continue
		}
		crew = append(crew, catalog.CrewCredit{
			ContentID:  credit.ID,
			MediaType:  mediaType,
			PersonID:   person.ID,
			Department: credit.Department,
			Job:        credit.Job,
		})
	}
	return cast, crew
}

func creditMediaType(raw string) (catalog.ItemType, bool) {
	switch raw {
	case "movie":
		return catalog.ItemTypeMovie, true
	case "tv":
		return catalog.ItemTypeSeries, true
	}
	return "", false
}
