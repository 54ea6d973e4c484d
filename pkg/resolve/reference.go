package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
)

var (
	samePattern = regexp.MustCompile(`(?i)\bsame(\s+(time|party|one|thing|as before))?\b`)

	ordinalWords = map[string]int{
		"first":   1,
		"second":  2,
		"third":   3,
		"fourth":  4,
		"fifth":   5,
		"sixth":   6,
		"seventh": 7,
		"eighth":  8,
		"ninth":   9,
		"tenth":   10,
	}

	ordinalWordPattern   = regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\b`)
	ordinalSuffixPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	lastPattern          = regexp.MustCompile(`(?i)\b(last one|the last|that one)\b`)
	bareNumberPattern    = regexp.MustCompile(`^\s*#?(\d{1,2})\s*\.?\s*$`)

	boldPattern   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	singleStar    = regexp.MustCompile(`\*([^*\n]+)\*`)
	listLineStart = regexp.MustCompile(`(?m)^\s*(?:\d{1,2}[.)]|[-•])\s`)
)

// wantsSameAsBefore reports whether the query asks to reuse earlier
// values ("same time", "same party", bare "same").
func wantsSameAsBefore(query string) bool {
	return samePattern.MatchString(query)
}

// isReferenceQuery reports whether the query points at an item from an
// earlier enumeration rather than naming one.
func isReferenceQuery(query string) bool {
	if bareNumberPattern.MatchString(query) {
		return true
	}
	return ordinalWordPattern.MatchString(query) ||
		ordinalSuffixPattern.MatchString(query) ||
		lastPattern.MatchString(query)
}

// referenceIndex resolves the query's reference to a zero-based index
// into a list of length n. "last one" and "that one" select the final
// item. Out-of-range references resolve to nothing instead of guessing.
func referenceIndex(query string, n int) (int, bool) {
	if n == 0 {
		return 0, false
	}

	if lastPattern.MatchString(query) {
		return n - 1, true
	}
	if m := ordinalWordPattern.FindStringSubmatch(query); m != nil {
		return boundsCheck(ordinalWords[strings.ToLower(m[1])], n)
	}
	if m := ordinalSuffixPattern.FindStringSubmatch(query); m != nil {
		idx, _ := strconv.Atoi(m[1])
		return boundsCheck(idx, n)
	}
	if m := bareNumberPattern.FindStringSubmatch(query); m != nil {
		idx, _ := strconv.Atoi(m[1])
		return boundsCheck(idx, n)
	}
	return 0, false
}

func boundsCheck(oneBased, n int) (int, bool) {
	if oneBased < 1 || oneBased > n {
		return 0, false
	}
	return oneBased - 1, true
}

// lastEnumeratedList scans history backwards for the most recent
// assistant turn carrying an enumerated or bulleted list of emphasized
// item names, and returns those names in order. Returns nil when no
// such turn exists.
func lastEnumeratedList(turns []history.Turn) []string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != history.RoleAssistant {
			continue
		}
		items := emphasizedNames(turns[i].Content)
		if len(items) >= 2 {
			return items
		}
		// A single emphasized name still counts when the turn is
		// visibly a list.
		if len(items) == 1 && listLineStart.MatchString(turns[i].Content) {
			return items
		}
	}
	return nil
}

// emphasizedNames extracts bold-marked names from a message, preferring
// double-star over single-star emphasis.
func emphasizedNames(content string) []string {
	matches := boldPattern.FindAllStringSubmatch(content, -1)
	if matches == nil {
		matches = singleStar.FindAllStringSubmatch(content, -1)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// matchNamedEntity scans prior assistant turns, most recent first, for
// an emphasized name that appears verbatim (case-insensitive) in the
// query. First match wins.
func matchNamedEntity(query string, turns []history.Turn) string {
	lowerQuery := strings.ToLower(query)
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != history.RoleAssistant {
			continue
		}
		for _, name := range emphasizedNames(turns[i].Content) {
			if strings.Contains(lowerQuery, strings.ToLower(name)) {
				return name
			}
		}
	}
	return ""
}
