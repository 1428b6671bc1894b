package catalog

import (
	"fmt"
	"strings"
	"time"
)

// ItemType partitions work items and corpus records by entity kind.
type ItemType string

const (
	ItemTypeMovie  ItemType = "movie"
	ItemTypeSeries ItemType = "series"
	ItemTypePerson ItemType = "person"
)

var allItemTypes = []ItemType{ItemTypeMovie, ItemTypeSeries, ItemTypePerson}

// AllItemTypes returns the ordered list of known item types.
func AllItemTypes() []ItemType {
	cp := make([]ItemType, len(allItemTypes))
	copy(cp, allItemTypes)
	return cp
}

// ParseItemType converts a string into a known ItemType.
func ParseItemType(value string) (ItemType, bool) {
	normalized := ItemType(strings.ToLower(strings.TrimSpace(value)))
	for _, itemType := range allItemTypes {
		if normalized == itemType {
			return itemType, true
		}
	}
	return "", false
}

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if normalized == status {
			return status, true
		}
	}
	return "", false
}

// NaturalKey returns the queue identity for an external id and item type.
// The key is what makes enqueueing idempotent.
func NaturalKey(itemType ItemType, externalID int64) string {
	return fmt.Sprintf("%s:%d", itemType, externalID)
}

// WorkItem is one queued unit of harvest or enrichment work persisted in
// SQLite.
type WorkItem struct {
	ID          int64
	NaturalKey  string
	ExternalID  int64
	ItemType    ItemType
	Priority    int
	Cycle       int
	Status      Status
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// EnqueueResult describes the effect of one enqueue batch.
type EnqueueResult struct {
	Inserted int
	Raised   int
	Skipped  int
}

// DequeueFilter narrows which pending work a runner claims.
type DequeueFilter struct {
	ItemType ItemType
	Cycle    *int
}

// WikiSections holds full-article section text extracted from Wikipedia,
// one column per canonical section.
type WikiSections struct {
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

// Empty reports whether no section carries any text.
func (w WikiSections) Empty() bool {
	return w == WikiSections{}
}

// ContentRef names one content record by its composite key. TMDB movie and
// TV ids occupy overlapping number spaces, so an id alone is ambiguous.
type ContentRef struct {
	ID        int64
	MediaType ItemType
}

// Content is one movie or series record in the catalog.
type Content struct {
	ID                 int64
	MediaType          ItemType
	Title              string
	OriginalTitle      string
	Overview           string
	OverviewSource     string
	Tagline            string
	ReleaseDate        string
	Runtime            int
	Genres             []string
	Keywords           []string
	SpokenLanguages    []string
	OriginCountries    []string
	AlternativeTitles  []string
	Network            string
	Directors          []string
	Screenwriters      []string
	Creators           []string
	FilmingLocations   []string
	NarrativeLocations []string
	VoteAverage        float64
	VoteCount          int64
	Popularity         float64
	PosterPath         string
	BackdropPath       string
	ContentRating      string
	IMDBID             string
	WikidataID         string
	WikipediaURL       string
	Homepage           string
	ProductionStatus   string
	Budget             int64
	Revenue            int64
	Seasons            int
	Episodes           int
	VideoCount         int
	ImageCount         int
	ProviderCount      int
	TranslationCount   int
	Wiki               WikiSections
	Related            []int64
	QualityScore       int
	EnrichedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Person is one cast or crew member in the catalog.
type Person struct {
	ID              int64
	Name            string
	AlsoKnownAs     []string
	Biography       string
	BiographySource string
	Birthday        string
	Deathday        string
	PlaceOfBirth    string
	KnownFor        string
	ProfilePath     string
	Popularity      float64
	IMDBID          string
	WikidataID      string
	ImageCount      int
	CreditCount     int
	EnrichedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CastCredit links a person to content they appeared in. One link per
// person per title; a person with several roles keeps the best-billed one.
type CastCredit struct {
	ContentID int64
	MediaType ItemType
	PersonID  int64
	Character string
	Order     int
}

// CrewCredit links a person to content they worked on, one link per job.
type CrewCredit struct {
	ContentID  int64
	MediaType  ItemType
	PersonID   int64
	Department string
	Job        string
}

// QualityReport aggregates one completeness scan over the catalog. ID is
// the scan's run id, shared with the run's log lines.
type QualityReport struct {
	ID           string
	RunAt        time.Time
	Total        int
	AverageScore float64
	LowCount     int
	Requeued     int
}
