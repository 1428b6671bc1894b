package fetch_test

import (
	"errors"
	"testing"

	"gleaner/internal/fetch"
)

func TestWrapChainsMarkerAndDetail(t *testing.T) {
	base := errors.New("connection reset")
	err := fetch.Wrap(fetch.ErrTransient, "tmdb", "/movie/42", "request failed", base)

	if !errors.Is(err, fetch.ErrTransient) {
		t.Fatalf("error should match ErrTransient: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("error should match the wrapped cause: %v", err)
	}
	want := "transient failure: tmdb: /movie/42: request failed: connection reset"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := fetch.Wrap(nil, "wikidata", "", "", nil)
	if !fetch.IsTransient(err) {
		t.Fatalf("nil marker should default to transient: %v", err)
	}
	if err.Error() != "transient failure: wikidata" {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{code: 200, want: nil},
		{code: 201, want: nil},
		{code: 404, want: fetch.ErrNotFound},
		{code: 429, want: fetch.ErrTransient},
		{code: 500, want: fetch.ErrTransient},
		{code: 503, want: fetch.ErrTransient},
		{code: 400, want: fetch.ErrPermanent},
		{code: 401, want: fetch.ErrPermanent},
		{code: 301, want: fetch.ErrPermanent},
	}
	for _, tc := range cases {
		if got := fetch.ClassifyStatus(tc.code); !errors.Is(got, tc.want) {
			t.Fatalf("ClassifyStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestFailureLabel(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "transient", err: fetch.Wrap(fetch.ErrTransient, "tmdb", "/x", "", nil), want: "transient"},
		{name: "permanent", err: fetch.Wrap(fetch.ErrPermanent, "tmdb", "/x", "", nil), want: "permanent"},
		{name: "not found", err: fetch.Wrap(fetch.ErrNotFound, "tmdb", "/x", "", nil), want: "not_found"},
		{name: "plain", err: errors.New("huh"), want: "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fetch.FailureLabel(tc.err); got != tc.want {
				t.Fatalf("FailureLabel = %q, want %q", got, tc.want)
			}
		})
	}
}
