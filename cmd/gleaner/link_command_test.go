package main

import "testing"

func TestLinkReportsEmptyCatalog(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"link"}, env.configPath)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	requireContains(t, stdout, "Cast links: 0")
	requireContains(t, stdout, "Crew links: 0")
	requireContains(t, stdout, "Every credited person has a record")
}

func TestLinkReverseWithNothingMissing(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"link", "--reverse"}, env.configPath)
	if err != nil {
		t.Fatalf("link --reverse: %v", err)
	}
	requireContains(t, stdout, "No credited people are missing records")
}
