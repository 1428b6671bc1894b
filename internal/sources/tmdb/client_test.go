package tmdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gleaner/internal/fetch"
	"gleaner/internal/sources/tmdb"
)

func newTestClient(t *testing.T, baseURL string) *tmdb.Client {
	t.Helper()
	requester := fetch.NewRequester("tmdb",
		fetch.NewPacer(time.Millisecond, 2*time.Millisecond),
		fetch.RetryPolicy{MaxAttempts: 3, Floor: time.Millisecond, Cap: 4 * time.Millisecond})
	client, err := tmdb.New("key", tmdb.WithBaseURL(baseURL), tmdb.WithRequester(requester))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := tmdb.New("   "); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestDiscoverSetsQueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/tv" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("api_key") != "key" {
			t.Fatalf("expected api_key query parameter, got %q", r.URL.RawQuery)
		}
		if query.Get("with_origin_country") != "KR" {
			t.Fatalf("expected origin country KR, got %q", query.Get("with_origin_country"))
		}
		if query.Get("sort_by") != "popularity.desc" {
			t.Fatalf("expected sort order, got %q", query.Get("sort_by"))
		}
		if query.Get("include_adult") != "false" {
			t.Fatalf("expected include_adult=false, got %q", query.Get("include_adult"))
		}
		if query.Get("page") != "3" {
			t.Fatalf("expected page 3, got %q", query.Get("page"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":3,"results":[{"id":1396,"name":"Squid Game"}],"total_pages":120,"total_results":2389}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	page, err := client.Discover(context.Background(), tmdb.KindTV, tmdb.DiscoverOptions{
		OriginCountry: "KR",
		SortBy:        "popularity.desc",
		Page:          3,
	})
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if page.TotalPages != 120 || len(page.Results) != 1 {
		t.Fatalf("unexpected page: %#v", page)
	}
	if page.Results[0].DisplayTitle() != "Squid Game" {
		t.Fatalf("unexpected title %q", page.Results[0].DisplayTitle())
	}
}

func TestDetailMovieAppendsReleaseDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		appended := r.URL.Query().Get("append_to_response")
		if !strings.Contains(appended, "release_dates") {
			t.Fatalf("movie detail should append release_dates, got %q", appended)
		}
		if strings.Contains(appended, "content_ratings") {
			t.Fatalf("movie detail should not append content_ratings, got %q", appended)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 603,
			"title": "The Matrix",
			"original_title": "The Matrix",
			"release_date": "1999-03-31",
			"runtime": 136,
			"genres": [{"id": 28, "name": "Action"}],
			"credits": {"cast": [{"id": 6384, "name": "Keanu Reeves", "character": "Neo", "order": 0}]},
			"keywords": {"keywords": [{"id": 312, "name": "man vs machine"}]},
			"release_dates": {"results": [{"iso_3166_1": "US", "release_dates": [{"certification": "R"}]}]},
			"external_ids": {"imdb_id": "tt0133093", "wikidata_id": "Q83495"}
		}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	detail, err := client.Detail(context.Background(), tmdb.KindMovie, 603)
	if err != nil {
		t.Fatalf("Detail returned error: %v", err)
	}
	if detail.DisplayTitle() != "The Matrix" || detail.DisplayDate() != "1999-03-31" {
		t.Fatalf("unexpected detail: %#v", detail)
	}
	if detail.DisplayRuntime() != 136 {
		t.Fatalf("expected runtime 136, got %d", detail.DisplayRuntime())
	}
	if detail.USRating() != "R" {
		t.Fatalf("expected US rating R, got %q", detail.USRating())
	}
	if got := detail.Keywords.All(); len(got) != 1 || got[0].Name != "man vs machine" {
		t.Fatalf("unexpected keywords: %#v", got)
	}
	if detail.ExternalIDs.WikidataID != "Q83495" {
		t.Fatalf("unexpected external ids: %#v", detail.ExternalIDs)
	}
}

func TestDetailSeriesAppendsContentRatings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/93405" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		appended := r.URL.Query().Get("append_to_response")
		if !strings.Contains(appended, "content_ratings") {
			t.Fatalf("tv detail should append content_ratings, got %q", appended)
		}
		if strings.Contains(appended, "release_dates") {
			t.Fatalf("tv detail should not append release_dates, got %q", appended)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 93405,
			"name": "Squid Game",
			"original_name": "오징어 게임",
			"first_air_date": "2021-09-17",
			"episode_run_time": [54],
			"number_of_seasons": 2,
			"number_of_episodes": 16,
			"origin_country": ["KR"],
			"networks": [{"id": 213, "name": "Netflix"}],
			"keywords": {"results": [{"id": 10118, "name": "survival"}]},
			"content_ratings": {"results": [{"iso_3166_1": "US", "rating": "TV-MA"}]}
		}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	detail, err := client.Detail(context.Background(), tmdb.KindTV, 93405)
	if err != nil {
		t.Fatalf("Detail returned error: %v", err)
	}
	if detail.DisplayTitle() != "Squid Game" || detail.DisplayOriginalTitle() != "오징어 게임" {
		t.Fatalf("unexpected detail: %#v", detail)
	}
	if detail.DisplayDate() != "2021-09-17" || detail.DisplayRuntime() != 54 {
		t.Fatalf("unexpected date or runtime: %#v", detail)
	}
	if detail.USRating() != "TV-MA" {
		t.Fatalf("expected US rating TV-MA, got %q", detail.USRating())
	}
	if got := detail.Keywords.All(); len(got) != 1 || got[0].Name != "survival" {
		t.Fatalf("unexpected keywords: %#v", got)
	}
}

func TestDetailRejectsNonPositiveID(t *testing.T) {
	client := newTestClient(t, "https://example.com")
	if _, err := client.Detail(context.Background(), tmdb.KindMovie, 0); err == nil {
		t.Fatal("expected error for non-positive id")
	}
}

func TestDetailNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	_, err := client.Detail(context.Background(), tmdb.KindMovie, 999999999)
	if !fetch.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDetailRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	_, err := client.Detail(context.Background(), tmdb.KindMovie, 603)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !fetch.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPersonDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/person/6384" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		appended := r.URL.Query().Get("append_to_response")
		for _, want := range []string{"combined_credits", "images", "external_ids", "tagged_images"} {
			if !strings.Contains(appended, want) {
				t.Fatalf("person detail should append %s, got %q", want, appended)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 6384,
			"name": "Keanu Reeves",
			"also_known_as": ["키아누 리브스"],
			"biography": "Keanu Charles Reeves is a Canadian actor.",
			"birthday": "1964-09-02",
			"place_of_birth": "Beirut, Lebanon",
			"profile_path": "/keanu.jpg",
			"combined_credits": {
				"cast": [{"id": 603, "media_type": "movie", "title": "The Matrix", "character": "Neo"}],
				"crew": [{"id": 245891, "media_type": "movie", "title": "John Wick", "job": "Producer", "department": "Production"}]
			},
			"images": {"profiles": [{"file_path": "/keanu.jpg", "vote_average": 5.4}]},
			"tagged_images": {"results": [{"file_path": "/still.jpg"}]},
			"external_ids": {"imdb_id": "nm0000206", "wikidata_id": "Q43416"}
		}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	person, err := client.PersonDetail(context.Background(), 6384)
	if err != nil {
		t.Fatalf("PersonDetail returned error: %v", err)
	}
	if person.Name != "Keanu Reeves" || person.Birthday != "1964-09-02" {
		t.Fatalf("unexpected person: %#v", person)
	}
	if person.CreditCount() != 2 {
		t.Fatalf("expected 2 credits, got %d", person.CreditCount())
	}
	if person.ImageCount() != 2 {
		t.Fatalf("expected 2 images, got %d", person.ImageCount())
	}
	if person.BestProfilePath() != "/keanu.jpg" {
		t.Fatalf("unexpected profile path %q", person.BestProfilePath())
	}
}

func TestBestProfilePathFallsBackToTopVotedImage(t *testing.T) {
	person := &tmdb.Person{
		Images: &tmdb.PersonImageBundle{Profiles: []tmdb.Image{
			{FilePath: "/low.jpg", VoteAverage: 3.2},
			{FilePath: "/high.jpg", VoteAverage: 5.8},
		}},
	}
	if got := person.BestProfilePath(); got != "/high.jpg" {
		t.Fatalf("expected highest voted profile, got %q", got)
	}
}

func TestChangesFormatsWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/person/changes" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("start_date") != "2024-03-01" || query.Get("end_date") != "2024-03-02" {
			t.Fatalf("unexpected window: %q", r.URL.RawQuery)
		}
		if query.Get("page") != "1" {
			t.Fatalf("expected page 1, got %q", query.Get("page"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":6384,"adult":false}],"total_pages":4,"total_results":381}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	page, err := client.Changes(context.Background(), tmdb.ChangesPerson, start, end, 0)
	if err != nil {
		t.Fatalf("Changes returned error: %v", err)
	}
	if page.TotalPages != 4 || len(page.Results) != 1 || page.Results[0].ID != 6384 {
		t.Fatalf("unexpected changes page: %#v", page)
	}
}

func TestLatestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/latest" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1289401,"title":"Fresh Upload"}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	id, err := client.LatestID(context.Background(), tmdb.KindMovie)
	if err != nil {
		t.Fatalf("LatestID returned error: %v", err)
	}
	if id != 1289401 {
		t.Fatalf("expected latest id 1289401, got %d", id)
	}
}

func TestLanguageParameterSentWhenConfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") != "en-US" {
			t.Fatalf("expected language parameter, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":603,"title":"The Matrix"}`))
	}))
	t.Cleanup(server.Close)

	requester := fetch.NewRequester("tmdb",
		fetch.NewPacer(time.Millisecond, 2*time.Millisecond),
		fetch.RetryPolicy{MaxAttempts: 2, Floor: time.Millisecond, Cap: 2 * time.Millisecond})
	client, err := tmdb.New("key",
		tmdb.WithBaseURL(server.URL),
		tmdb.WithLanguage("en-US"),
		tmdb.WithRequester(requester))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Detail(context.Background(), tmdb.KindMovie, 603); err != nil {
		t.Fatalf("Detail returned error: %v", err)
	}
}
