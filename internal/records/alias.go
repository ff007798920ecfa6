// Package records bridges semantic record operations and the literal-header
// tabular source, with a time-bounded read cache.
package records

import "strings"

// ResolveAlias finds the literal header matching a semantic field name.
// Matching trims surrounding whitespace and ignores case; the first match
// in header order wins. It returns the header exactly as stored, its
// 0-based column position, and whether a match was found.
//
// Header sets are not assumed stable, so callers resolve against a freshly
// fetched header row for every write.
func ResolveAlias(headers []string, name string) (literal string, col int, ok bool) {
	want := strings.TrimSpace(name)
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return h, i, true
		}
	}
	return "", 0, false
}
