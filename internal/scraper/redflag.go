package scraper

import (
	"strings"

	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// ContainsRedFlag returns true if any exclusion term appears (case-insensitive)
// anywhere in the combined name + organization + description text.
//
// Checked before persistence; a match discards the candidate.
func ContainsRedFlag(name, organization, description string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	combined := strings.ToLower(name + " " + organization + " " + description)
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Excluded applies ContainsRedFlag to a normalized record.
func Excluded(rec model.ScholarshipRecord, terms []string) bool {
	return ContainsRedFlag(rec.Name, rec.Organization, rec.Description, terms)
}
