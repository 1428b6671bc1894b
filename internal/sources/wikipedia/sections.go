package wikipedia

import "strings"

// Sections holds article text split by canonical heading. Intro is the
// lead text before the first heading; the rest map one-to-one onto the
// stored section columns.
type Sections struct {
	Intro        string
	Plot         string
	Synopsis     string
	EpisodeGuide string
	Production   string
	CastNotes    string
	Reception    string
	Soundtrack   string
	Release      string
	Accolades    string
}

// Empty reports whether the split produced no text at all.
func (s Sections) Empty() bool {
	return s == Sections{}
}

// Overview returns the best short-description candidate: the lead text,
// or the plot when the article opens straight into a heading.
func (s Sections) Overview() string {
	if s.Intro != "" {
		return s.Intro
	}
	return s.Plot
}

// headingKeys maps lowercased article headings onto canonical sections.
// Headings outside this table are discarded along with their text.
var headingKeys = map[string]string{
	"plot":         "plot",
	"plot summary": "plot",
	"story":        "plot",
	"storyline":    "plot",
	"narrative":    "plot",

	"synopsis": "synopsis",

	"episodes":        "episode_guide",
	"episode list":    "episode_guide",
	"episode guide":   "episode_guide",
	"series overview": "episode_guide",
	"season overview": "episode_guide",
	"seasons":         "episode_guide",

	"production":      "production",
	"development":     "production",
	"filming":         "production",
	"pre-production":  "production",
	"post-production": "production",
	"writing":         "production",
	"direction":       "production",
	"cinematography":  "production",
	"visual effects":  "production",

	"cast":                "cast_notes",
	"cast and characters": "cast_notes",
	"characters":          "cast_notes",
	"casting":             "cast_notes",

	"reception":          "reception",
	"critical reception": "reception",
	"critical response":  "reception",
	"box office":         "reception",
	"ratings":            "reception",
	"audience reception": "reception",
	"reviews":            "reception",

	"soundtrack": "soundtrack",
	"music":      "soundtrack",
	"score":      "soundtrack",

	"release":      "release",
	"distribution": "release",
	"broadcast":    "release",
	"premiere":     "release",
	"streaming":    "release",

	"accolades":              "accolades",
	"awards":                 "accolades",
	"awards and nominations": "accolades",
	"recognition":            "accolades",
}

func (s *Sections) field(key string) *string {
	switch key {
	case "plot":
		return &s.Plot
	case "synopsis":
		return &s.Synopsis
	case "episode_guide":
		return &s.EpisodeGuide
	case "production":
		return &s.Production
	case "cast_notes":
		return &s.CastNotes
	case "reception":
		return &s.Reception
	case "soundtrack":
		return &s.Soundtrack
	case "release":
		return &s.Release
	case "accolades":
		return &s.Accolades
	}
	return nil
}

// SplitSections splits wikitext by its headings. A heading line is fenced
// by equal-length runs of two to four '=' characters around a non-empty
// title. Headings sharing a canonical section concatenate; an article with
// no headings at all is treated as pure plot.
func SplitSections(text string) Sections {
	var sections Sections
	if strings.TrimSpace(text) == "" {
		return sections
	}

	appendTo := func(field *string, chunk string) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			return
		}
		if *field == "" {
			*field = chunk
			return
		}
		*field += "\n\n" + chunk
	}

	var buf strings.Builder
	current := &sections.Intro
	flush := func() {
		if current != nil {
			appendTo(current, buf.String())
		}
		buf.Reset()
	}

	sawHeading := false
	for _, line := range strings.Split(text, "\n") {
		if title, ok := headingTitle(line); ok {
			flush()
			sawHeading = true
			if key, mapped := headingKeys[strings.ToLower(title)]; mapped {
				current = sections.field(key)
			} else {
				current = nil
			}
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()

	if !sawHeading {
		sections.Plot = sections.Intro
		sections.Intro = ""
	}
	return sections
}

// headingTitle reports whether line is a section heading and returns its
// title. The leading and trailing fences must be the same length.
func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	lead := 0
	for lead < len(trimmed) && trimmed[lead] == '=' {
		lead++
	}
	if lead < 2 || lead > 4 || lead*2 >= len(trimmed) {
		return "", false
	}
	trail := 0
	for trail < lead+1 && trimmed[len(trimmed)-1-trail] == '=' {
		trail++
	}
	if trail != lead {
		return "", false
	}
	title := strings.TrimSpace(trimmed[lead : len(trimmed)-trail])
	if title == "" {
		return "", false
	}
	return title, true
}

// skipCategoryPatterns marks maintenance and housekeeping categories that
// never describe the work itself.
var skipCategoryPatterns = []string{
	"Articles",
	"Pages",
	"Wikipedia",
	"Webarchive",
	"CS1",
	"All articles",
	"Use dmy dates",
	"Use mdy dates",
	"Infobox",
	"Commons",
	"Wikidata",
}

// FilterCategories strips the namespace prefix and drops maintenance
// categories, preserving input order.
func FilterCategories(raw []string) []string {
	var kept []string
	for _, category := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(category, "Category:"))
		if name == "" {
			continue
		}
		skip := false
		for _, pattern := range skipCategoryPatterns {
			if strings.Contains(name, pattern) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, name)
		}
	}
	return kept
}
