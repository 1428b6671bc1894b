package testsupport

import (
	"context"
	"testing"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedContent inserts a minimal content record for tests.
func SeedContent(t testing.TB, store *catalog.Store, id int64, mediaType catalog.ItemType, title string) *catalog.Content {
	t.Helper()

	record := &catalog.Content{ID: id, MediaType: mediaType, Title: title}
	if err := store.UpsertContent(context.Background(), record); err != nil {
		t.Fatalf("store.UpsertContent: %v", err)
	}
	return record
}

// SeedPerson inserts a minimal person record for tests.
func SeedPerson(t testing.TB, store *catalog.Store, id int64, name string) *catalog.Person {
	t.Helper()

	person := &catalog.Person{ID: id, Name: name}
	if err := store.UpsertPerson(context.Background(), person); err != nil {
		t.Fatalf("store.UpsertPerson: %v", err)
	}
	return person
}
