package scraper

import (
	"regexp"
	"strings"
)

var (
	moneyRe    = regexp.MustCompile(`\$\s?\d`)
	deadlineRe = regexp.MustCompile(`(?i)\b(deadline|due date|apply by|applications? (?:close|due))\b`)
)

// RelevanceScore rates how likely a page is to describe scholarships, in
// [0, 1]. Keyword hits in the title and URL weigh most; body keyword density,
// a dollar amount and deadline wording add the rest.
func RelevanceScore(pageURL, title, text string, keywords []string) float64 {
	lowerTitle := strings.ToLower(title)
	lowerURL := strings.ToLower(pageURL)
	lowerText := strings.ToLower(text)

	var score float64
	if containsKeyword(lowerTitle, keywords) {
		score += 0.3
	}
	if containsKeyword(lowerURL, keywords) {
		score += 0.2
	}

	hits := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		hits += strings.Count(lowerText, kw)
	}
	score += 0.3 * float64(min(hits, 5)) / 5

	if moneyRe.MatchString(text) {
		score += 0.1
	}
	if deadlineRe.MatchString(text) {
		score += 0.1
	}
	return min(score, 1.0)
}

func containsKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
