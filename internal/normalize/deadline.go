package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "March 15", "Mar 15", "March 15th", "Sept. 1"
	monthDayRe = regexp.MustCompile(`(?i)^(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?$`)
	// "03/15", "3/1"
	slashMonthDayRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	deadlineLabelRe = regexp.MustCompile(`(?i)^(?:(?:deadline|due date|apply by)\s*:?|due\s*:)\s*`)
)

// FormatDeadline appends the current year to "Month Day" and "MM/DD"
// deadlines that lack one. Already-dated text, rolling or no-deadline
// phrases, and anything unrecognized pass through unchanged apart from
// whitespace cleanup.
func FormatDeadline(s string, now time.Time) string {
	d := deadlineLabelRe.ReplaceAllString(CleanText(s, TextOptions{}), "")
	if d == "" {
		return ""
	}
	year := strconv.Itoa(now.Year())

	if monthDayRe.MatchString(d) {
		return d + ", " + year
	}
	if m := slashMonthDayRe.FindStringSubmatch(d); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return d + "/" + year
		}
	}
	return d
}

// IsRolling reports whether the deadline text describes an open-ended
// deadline.
func IsRolling(s string) bool {
	l := strings.ToLower(s)
	for _, p := range []string{"rolling", "no deadline", "ongoing", "open until", "varies"} {
		if strings.Contains(l, p) {
			return true
		}
	}
	return false
}
