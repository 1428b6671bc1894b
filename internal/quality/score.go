// Package quality measures how complete the catalog is. Every record
// earns points for the fields it actually carries, normalized to a 0..100
// score; the analyzer aggregates the scores into a per-run report and can
// send the worst scorers back through enrichment.
package quality

import (
	"math"

	"gleaner/internal/catalog"
)

// check awards points when a field predicate holds on a record.
type check[T any] struct {
	field  string
	points int
	filled func(T) bool
}

// Critical content fields weigh 15, the rest 5; the raw sum normalizes
// to 100.
var contentChecks = []check[*catalog.Content]{
	{"poster", 15, func(c *catalog.Content) bool { return c.PosterPath != "" }},
	{"overview", 15, func(c *catalog.Content) bool { return c.Overview != "" }},
	{"genres", 15, func(c *catalog.Content) bool { return len(c.Genres) > 0 }},
	{"backdrop", 5, func(c *catalog.Content) bool { return c.BackdropPath != "" }},
	{"keywords", 5, func(c *catalog.Content) bool { return len(c.Keywords) > 0 }},
	{"videos", 5, func(c *catalog.Content) bool { return c.VideoCount > 0 }},
	{"images", 5, func(c *catalog.Content) bool { return c.ImageCount > 0 }},
	{"providers", 5, func(c *catalog.Content) bool { return c.ProviderCount > 0 }},
	{"imdb id", 5, func(c *catalog.Content) bool { return c.IMDBID != "" }},
	{"rating", 5, func(c *catalog.Content) bool { return c.ContentRating != "" }},
	{"translations", 5, func(c *catalog.Content) bool { return c.TranslationCount > 0 }},
}

// A person is mostly their photo and biography; the rest is trim.
var personChecks = []check[*catalog.Person]{
	{"profile", 30, func(p *catalog.Person) bool { return p.ProfilePath != "" }},
	{"biography", 30, func(p *catalog.Person) bool { return p.Biography != "" }},
	{"birthday", 5, func(p *catalog.Person) bool { return p.Birthday != "" }},
	{"birthplace", 5, func(p *catalog.Person) bool { return p.PlaceOfBirth != "" }},
	{"aliases", 5, func(p *catalog.Person) bool { return len(p.AlsoKnownAs) > 0 }},
	{"images", 5, func(p *catalog.Person) bool { return p.ImageCount > 0 }},
	{"credits", 5, func(p *catalog.Person) bool { return p.CreditCount > 0 }},
	{"imdb id", 5, func(p *catalog.Person) bool { return p.IMDBID != "" }},
	{"wikidata id", 5, func(p *catalog.Person) bool { return p.WikidataID != "" }},
}

// rate scores one record against a check table. The bool slice marks which
// checks passed, index-aligned with the table for coverage counting.
func rate[T any](record T, checks []check[T]) (int, []bool) {
	raw, max := 0, 0
	hits := make([]bool, len(checks))
	for i, c := range checks {
		max += c.points
		if c.filled(record) {
			raw += c.points
			hits[i] = true
		}
	}
	return normalize(raw, max), hits
}

func normalize(raw, max int) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(float64(raw) * 100 / float64(max)))
}

// ScoreContent rates a content record 0..100 by its filled fields.
func ScoreContent(record *catalog.Content) int {
	score, _ := rate(record, contentChecks)
	return score
}

// ScorePerson rates a person record 0..100 by its filled fields.
func ScorePerson(record *catalog.Person) int {
	score, _ := rate(record, personChecks)
	return score
}

func coverageFor[T any](checks []check[T]) []FieldCoverage {
	coverage := make([]FieldCoverage, len(checks))
	for i, c := range checks {
		coverage[i].Field = c.field
	}
	return coverage
}
