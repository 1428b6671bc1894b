package enrich

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// FillString keeps primary unless it is blank.
func FillString(primary, secondary string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return secondary
}

// FillList keeps primary unless it is empty.
func FillList(primary, secondary []string) []string {
	if len(primary) > 0 {
		return primary
	}
	return secondary
}

// RicherText reports whether secondary should replace primary as prose:
// only when primary is blank or secondary carries more than twice as many
// runes. Rune counts keep the comparison honest for non-Latin scripts.
func RicherText(primary, secondary string) bool {
	trimmedPrimary := strings.TrimSpace(primary)
	trimmedSecondary := strings.TrimSpace(secondary)
	if trimmedSecondary == "" {
		return false
	}
	if trimmedPrimary == "" {
		return true
	}
	return utf8.RuneCountInString(trimmedSecondary) > 2*utf8.RuneCountInString(trimmedPrimary)
}

// Union appends additions onto base with case-insensitive deduplication.
// The limit caps how many new entries may join; existing entries never
// count against it. A limit of zero or less means unlimited.
func Union(base, additions []string, limit int) []string {
	merged := slices.Clone(base)
	seen := make(map[string]struct{}, len(base)+len(additions))
	for _, entry := range base {
		seen[strings.ToLower(strings.TrimSpace(entry))] = struct{}{}
	}
	added := 0
	for _, entry := range additions {
		if limit > 0 && added >= limit {
			break
		}
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, trimmed)
		added++
	}
	return merged
}
