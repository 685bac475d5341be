package rule

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// failureMarkers are placeholders the assistant returns instead of an answer.
// Matched case-insensitively anywhere in the response.
var failureMarkers = []string{
	"error processing",
	"ai not available",
	"error:",
}

// fold normalizes s to NFC and case-folds it for case-insensitive matching.
// A cases.Caser carries state, so each call builds its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// matching returns the values found in haystack, in the order given.
func matching(haystack string, values []string) []string {
	h := fold(haystack)
	var found []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if strings.Contains(h, fold(v)) {
			found = append(found, v)
		}
	}
	return found
}

// failureMarker returns the first failure marker present in s, if any.
func failureMarker(s string) (string, bool) {
	found := matching(s, failureMarkers)
	if len(found) == 0 {
		return "", false
	}
	return found[0], true
}
