package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDate is the calendar-date layout handed to prompt construction.
const isoDate = "2006-01-02"

var (
	clockPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

	weekdayPattern = regexp.MustCompile(`(?i)\b(?:(this|next)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)

	weekdays = map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
)

// extractDate maps a fixed vocabulary of relative date phrases to a
// concrete calendar date computed from now. Returns "" when the text
// contains no recognized phrase.
func extractDate(text string, now time.Time) string {
	lower := strings.ToLower(text)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1).Format(isoDate)
	case strings.Contains(lower, "tonight"),
		strings.Contains(lower, "today"),
		strings.Contains(lower, "this evening"):
		return today.Format(isoDate)
	case strings.Contains(lower, "next weekend"):
		return upcomingSaturday(today).AddDate(0, 0, 7).Format(isoDate)
	case strings.Contains(lower, "this weekend"), strings.Contains(lower, "the weekend"):
		if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
			return today.Format(isoDate)
		}
		return upcomingSaturday(today).Format(isoDate)
	}

	if m := weekdayPattern.FindStringSubmatch(lower); m != nil {
		target := weekdays[m[2]]
		days := (int(target) - int(today.Weekday()) + 7) % 7
		if strings.EqualFold(m[1], "next") {
			days += 7
		}
		return today.AddDate(0, 0, days).Format(isoDate)
	}

	return ""
}

func upcomingSaturday(today time.Time) time.Time {
	days := (int(time.Saturday) - int(today.Weekday()) + 7) % 7
	return today.AddDate(0, 0, days)
}

// extractTime normalizes the first clock expression (H[:MM] am|pm) in
// text to 24-hour H:MM. Returns "" when none is present.
func extractTime(text string) string {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return ""
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return ""
		}
	}

	meridiem := strings.ToLower(m[3])
	if meridiem == "pm" && hour < 12 {
		hour += 12
	}
	if meridiem == "am" && hour == 12 {
		hour = 0
	}
	return fmt.Sprintf("%d:%02d", hour, minute)
}

var partyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{1,2})\s+(?:people|persons|guests)\b`),
	regexp.MustCompile(`(?i)\bparty\s+of\s+(\d{1,2})\b`),
	regexp.MustCompile(`(?i)\bgroup\s+of\s+(\d{1,2})\b`),
	regexp.MustCompile(`(?i)\bfor\s+(\d{1,2})\b`),
}

// trailing am/pm or colon means the number was part of a clock time, not
// a head count ("table for 2 pm").
var clockSuffix = regexp.MustCompile(`(?i)^\s*(?::|am\b|pm\b)`)

// extractPartySize finds a head count in text. Patterns are tried in
// order; first match wins.
func extractPartySize(text string) string {
	for _, p := range partyPatterns {
		loc := p.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if clockSuffix.MatchString(text[loc[1]:]) {
			continue
		}
		return text[loc[2]:loc[3]]
	}
	return ""
}
