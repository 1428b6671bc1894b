package main

import "testing"

func TestRunRejectsUnknownTask(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run", "--tasks", "bogus"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown task to error")
	}
	requireContains(t, err.Error(), `unknown task "bogus"`)
}

func TestHarvestRejectsPersonType(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"harvest", "--types", "person"}, env.configPath)
	if err == nil {
		t.Fatal("expected person type to error")
	}
	requireContains(t, err.Error(), "person records are seeded from credits")
}

func TestHarvestRejectsUnknownStrategy(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"harvest", "--strategies", "sideways"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown strategy to error")
	}
	requireContains(t, err.Error(), "unknown harvest strategy")
}

func TestEnrichContentRejectsPersonType(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"enrich", "content", "--types", "person"}, env.configPath)
	if err == nil {
		t.Fatal("expected person type to error")
	}
	requireContains(t, err.Error(), "enrich people")
}

func TestSyncRejectsUnknownType(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"sync", "--types", "banana"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown type to error")
	}
	requireContains(t, err.Error(), "unknown item type")
}
