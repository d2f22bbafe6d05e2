package orchestrator

import (
	"regexp"
	"strings"
)

// alterSetNotNull matches an ALTER statement that adds a NOT NULL constraint
var alterSetNotNull = regexp.MustCompile(`(?is)ALTER\s+.*SET\s+NOT\s+NULL`)

// breakingSubstrings are matched case-insensitively anywhere in a diff
var breakingSubstrings = []string{
	"DROP TABLE",
	"DROP COLUMN",
}

// HasBreakingChanges reports whether a diff contains a structural change that
// risks breaking existing consumers: a dropped table or column, or a column
// altered to NOT NULL. The match is a heuristic over the diff text, not a SQL
// parse.
func HasBreakingChanges(diff string) bool {
	upper := strings.ToUpper(diff)
	for _, pattern := range breakingSubstrings {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return alterSetNotNull.MatchString(diff)
}

// dataLossSubstrings flag operations that can destroy data. Distinct from the
// breaking-change set: these are recorded for audit, they do not block a
// deployment on their own.
var dataLossSubstrings = []string{
	"DROP TABLE",
	"TRUNCATE",
	"DELETE",
}

// DetectDataLoss returns one warning per destructive operation found in the
// diff, or nil when the diff is clean.
func DetectDataLoss(diff string) []string {
	upper := strings.ToUpper(diff)
	var warnings []string
	for _, pattern := range dataLossSubstrings {
		if strings.Contains(upper, pattern) {
			warnings = append(warnings, "potential data loss: diff contains "+pattern)
		}
	}
	return warnings
}
