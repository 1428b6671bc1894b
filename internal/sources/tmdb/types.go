package tmdb

// Kind selects between the two content surfaces TMDB exposes.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// ListEntry is one row of a paginated TMDB listing.
type ListEntry struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	MediaType    string  `json:"media_type"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
}

// DisplayTitle returns the movie title or the TV name, whichever is set.
func (e ListEntry) DisplayTitle() string {
	if e.Title != "" {
		return e.Title
	}
	return e.Name
}

// Page is the paginated envelope shared by discover and the appended
// recommendation feeds.
type Page struct {
	Page         int         `json:"page"`
	Results      []ListEntry `json:"results"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
}

// ChangeEntry is one changed id reported by the changes feed.
type ChangeEntry struct {
	ID    int64 `json:"id"`
	Adult bool  `json:"adult"`
}

// ChangesPage is one page of the changes feed.
type ChangesPage struct {
	Page         int           `json:"page"`
	Results      []ChangeEntry `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// Genre is a TMDB genre tag.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SpokenLanguage is one language entry on a detail record.
type SpokenLanguage struct {
	ISO6391     string `json:"iso_639_1"`
	Name        string `json:"name"`
	EnglishName string `json:"english_name"`
}

// Company is a production company or broadcast network.
type Company struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	OriginCountry string `json:"origin_country"`
}

// CastMember is one appended cast credit.
type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path"`
}

// CrewMember is one appended crew credit.
type CrewMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	Job         string `json:"job"`
	ProfilePath string `json:"profile_path"`
}

// Credits is the appended credits bundle.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// Keyword is one keyword tag.
type Keyword struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// KeywordBundle is the appended keywords bundle. Movies list keywords under
// "keywords", TV under "results".
type KeywordBundle struct {
	Keywords []Keyword `json:"keywords"`
	Results  []Keyword `json:"results"`
}

// All returns the keyword list regardless of which field the API used.
func (b KeywordBundle) All() []Keyword {
	if len(b.Keywords) > 0 {
		return b.Keywords
	}
	return b.Results
}

// Video is one trailer, teaser, or clip entry.
type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// VideoBundle is the appended videos bundle.
type VideoBundle struct {
	Results []Video `json:"results"`
}

// Image is one poster, backdrop, or logo entry.
type Image struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
}

// ImageBundle is the appended images bundle.
type ImageBundle struct {
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
	Logos     []Image `json:"logos"`
}

// Count returns the total number of images across all groups.
func (b ImageBundle) Count() int {
	return len(b.Posters) + len(b.Backdrops) + len(b.Logos)
}

// ProviderItem is one streaming provider offer.
type ProviderItem struct {
	ProviderID   int64  `json:"provider_id"`
	ProviderName string `json:"provider_name"`
}

// ProviderOffer groups the offer types available in one country.
type ProviderOffer struct {
	Link     string         `json:"link"`
	Flatrate []ProviderItem `json:"flatrate"`
	Rent     []ProviderItem `json:"rent"`
	Buy      []ProviderItem `json:"buy"`
}

// ProviderBundle is the appended watch/providers bundle keyed by country.
type ProviderBundle struct {
	Results map[string]ProviderOffer `json:"results"`
}

// ExternalIDs is the appended external id bundle.
type ExternalIDs struct {
	IMDBID      string `json:"imdb_id"`
	WikidataID  string `json:"wikidata_id"`
	FacebookID  string `json:"facebook_id"`
	InstagramID string `json:"instagram_id"`
	TwitterID   string `json:"twitter_id"`
}

// ContentRating is one regional TV rating entry.
type ContentRating struct {
	ISO31661 string `json:"iso_3166_1"`
	Rating   string `json:"rating"`
}

// ContentRatingBundle is the appended content_ratings bundle (TV only).
type ContentRatingBundle struct {
	Results []ContentRating `json:"results"`
}

// ReleaseDateEntry is one dated release with its certification.
type ReleaseDateEntry struct {
	Certification string `json:"certification"`
	ReleaseDate   string `json:"release_date"`
	Type          int    `json:"type"`
}

// RegionalReleases groups a country's release entries.
type RegionalReleases struct {
	ISO31661     string             `json:"iso_3166_1"`
	ReleaseDates []ReleaseDateEntry `json:"release_dates"`
}

// ReleaseDateBundle is the appended release_dates bundle (movies only).
type ReleaseDateBundle struct {
	Results []RegionalReleases `json:"results"`
}

// AlternativeTitle is one localized or working title.
type AlternativeTitle struct {
	Title    string `json:"title"`
	ISO31661 string `json:"iso_3166_1"`
	Type     string `json:"type"`
}

// AlternativeTitleBundle is the appended alternative_titles bundle. Movies
// list titles under "titles", TV under "results".
type AlternativeTitleBundle struct {
	Titles  []AlternativeTitle `json:"titles"`
	Results []AlternativeTitle `json:"results"`
}

// All returns the title list regardless of which field the API used.
func (b AlternativeTitleBundle) All() []AlternativeTitle {
	if len(b.Titles) > 0 {
		return b.Titles
	}
	return b.Results
}

// Translation is one localized translation entry.
type Translation struct {
	ISO31661 string `json:"iso_3166_1"`
	ISO6391  string `json:"iso_639_1"`
	Name     string `json:"name"`
}

// TranslationBundle is the appended translations bundle.
type TranslationBundle struct {
	Translations []Translation `json:"translations"`
}

// Detail is the full content record returned by the movie and TV detail
// endpoints with every append bundle attached. Movie-only and TV-only fields
// are zero for the other kind.
type Detail struct {
	ID                  int64            `json:"id"`
	Title               string           `json:"title"`
	Name                string           `json:"name"`
	OriginalTitle       string           `json:"original_title"`
	OriginalName        string           `json:"original_name"`
	Overview            string           `json:"overview"`
	Tagline             string           `json:"tagline"`
	Status              string           `json:"status"`
	Homepage            string           `json:"homepage"`
	OriginalLanguage    string           `json:"original_language"`
	ReleaseDate         string           `json:"release_date"`
	FirstAirDate        string           `json:"first_air_date"`
	LastAirDate         string           `json:"last_air_date"`
	Runtime             int              `json:"runtime"`
	EpisodeRunTime      []int            `json:"episode_run_time"`
	NumberOfSeasons     int              `json:"number_of_seasons"`
	NumberOfEpisodes    int              `json:"number_of_episodes"`
	InProduction        bool             `json:"in_production"`
	Adult               bool             `json:"adult"`
	Budget              int64            `json:"budget"`
	Revenue             int64            `json:"revenue"`
	Popularity          float64          `json:"popularity"`
	VoteAverage         float64          `json:"vote_average"`
	VoteCount           int64            `json:"vote_count"`
	PosterPath          string           `json:"poster_path"`
	BackdropPath        string           `json:"backdrop_path"`
	IMDBID              string           `json:"imdb_id"`
	Genres              []Genre          `json:"genres"`
	SpokenLanguages     []SpokenLanguage `json:"spoken_languages"`
	OriginCountry       []string         `json:"origin_country"`
	Networks            []Company        `json:"networks"`
	ProductionCompanies []Company        `json:"production_companies"`

	Credits           *Credits                `json:"credits"`
	Keywords          *KeywordBundle          `json:"keywords"`
	Videos            *VideoBundle            `json:"videos"`
	Images            *ImageBundle            `json:"images"`
	WatchProviders    *ProviderBundle         `json:"watch/providers"`
	ExternalIDs       *ExternalIDs            `json:"external_ids"`
	ContentRatings    *ContentRatingBundle    `json:"content_ratings"`
	ReleaseDates      *ReleaseDateBundle      `json:"release_dates"`
	AlternativeTitles *AlternativeTitleBundle `json:"alternative_titles"`
	Translations      *TranslationBundle      `json:"translations"`
	Recommendations   *Page                   `json:"recommendations"`
	Similar           *Page                   `json:"similar"`
}

// DisplayTitle returns the movie title or the TV name, whichever is set.
func (d *Detail) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// DisplayOriginalTitle returns the original title for either kind.
func (d *Detail) DisplayOriginalTitle() string {
	if d.OriginalTitle != "" {
		return d.OriginalTitle
	}
	return d.OriginalName
}

// DisplayDate returns the release date for movies or the first air date for
// TV.
func (d *Detail) DisplayDate() string {
	if d.ReleaseDate != "" {
		return d.ReleaseDate
	}
	return d.FirstAirDate
}

// DisplayRuntime returns the movie runtime or the first episode runtime.
func (d *Detail) DisplayRuntime() int {
	if d.Runtime > 0 {
		return d.Runtime
	}
	if len(d.EpisodeRunTime) > 0 {
		return d.EpisodeRunTime[0]
	}
	return 0
}

// USRating returns the United States certification, taken from release_dates
// for movies and content_ratings for TV.
func (d *Detail) USRating() string {
	if d.ReleaseDates != nil {
		for _, regional := range d.ReleaseDates.Results {
			if regional.ISO31661 != "US" {
				continue
			}
			for _, entry := range regional.ReleaseDates {
				if entry.Certification != "" {
					return entry.Certification
				}
			}
		}
	}
	if d.ContentRatings != nil {
		for _, rating := range d.ContentRatings.Results {
			if rating.ISO31661 == "US" && rating.Rating != "" {
				return rating.Rating
			}
		}
	}
	return ""
}

// PersonCredit is one combined-credits entry on a person record.
type PersonCredit struct {
	ID         int64  `json:"id"`
	MediaType  string `json:"media_type"`
	Title      string `json:"title"`
	Name       string `json:"name"`
	Character  string `json:"character"`
	Order      int    `json:"order"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// CombinedCredits is the appended combined_credits bundle on a person.
type CombinedCredits struct {
	Cast []PersonCredit `json:"cast"`
	Crew []PersonCredit `json:"crew"`
}

// PersonImageBundle is the appended profile images bundle on a person.
type PersonImageBundle struct {
	Profiles []Image `json:"profiles"`
}

// TaggedImageBundle is the appended tagged_images bundle, stills from titles
// the person appears in.
type TaggedImageBundle struct {
	Results []Image `json:"results"`
}

// Person is the full person record with its append bundles attached.
type Person struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	AlsoKnownAs        []string `json:"also_known_as"`
	Biography          string   `json:"biography"`
	Birthday           string   `json:"birthday"`
	Deathday           string   `json:"deathday"`
	PlaceOfBirth       string   `json:"place_of_birth"`
	KnownForDepartment string   `json:"known_for_department"`
	ProfilePath        string   `json:"profile_path"`
	Popularity         float64  `json:"popularity"`
	IMDBID             string   `json:"imdb_id"`
	Adult              bool     `json:"adult"`

	CombinedCredits *CombinedCredits   `json:"combined_credits"`
	Images          *PersonImageBundle `json:"images"`
	TaggedImages    *TaggedImageBundle `json:"tagged_images"`
	ExternalIDs     *ExternalIDs       `json:"external_ids"`
}

// ImageCount totals profile photos and tagged stills.
func (p *Person) ImageCount() int {
	count := 0
	if p.Images != nil {
		count += len(p.Images.Profiles)
	}
	if p.TaggedImages != nil {
		count += len(p.TaggedImages.Results)
	}
	return count
}

// CreditCount totals cast and crew entries in the combined filmography.
func (p *Person) CreditCount() int {
	if p.CombinedCredits == nil {
		return 0
	}
	return len(p.CombinedCredits.Cast) + len(p.CombinedCredits.Crew)
}

// BestProfilePath returns the main profile photo, falling back to the highest
// voted profile image when the primary path is unset.
func (p *Person) BestProfilePath() string {
	if p.ProfilePath != "" {
		return p.ProfilePath
	}
	if p.Images == nil || len(p.Images.Profiles) == 0 {
		return ""
	}
	best := p.Images.Profiles[0]
	for _, img := range p.Images.Profiles[1:] {
		if img.VoteAverage > best.VoteAverage {
			best = img
		}
	}
	return best.FilePath
}

// Latest is the newest record on a content surface; its id bounds sequential
// scans.
type Latest struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
	Adult bool   `json:"adult"`
}
