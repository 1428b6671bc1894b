package main

import (
	"testing"

	"github.com/gofrs/flock"

	"gleaner/internal/catalog"
	"gleaner/internal/testsupport"
)

func TestQualityScansCatalog(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.SeedContent(t, env.store, 603, catalog.ItemTypeMovie, "The Matrix")
	testsupport.SeedPerson(t, env.store, 6384, "Keanu Reeves")

	stdout, _, err := runCLI(t, []string{"quality"}, env.configPath)
	if err != nil {
		t.Fatalf("quality: %v", err)
	}
	requireContains(t, stdout, "Completeness")
	requireContains(t, stdout, "content")
	requireContains(t, stdout, "people")
	requireContains(t, stdout, "Cast links: 0")
	requireContains(t, stdout, "saved")
}

func TestQualityRefusesWhileLockHeld(t *testing.T) {
	env := setupCLITestEnv(t)

	lock := flock.New(env.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: %v (locked=%v)", err, locked)
	}
	defer lock.Unlock()

	_, _, err = runCLI(t, []string{"quality"}, env.configPath)
	if err == nil {
		t.Fatal("expected quality to refuse while the lock is held")
	}
	requireContains(t, err.Error(), "another pipeline run holds")
}
