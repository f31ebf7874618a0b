package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mochatech1725/scholarship-scraper2/internal/dedup"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
)

// ErrMissingName rejects candidates that cannot be identified.
var ErrMissingName = errors.New("candidate has no name")

// Default field caps, in bytes.
const (
	DefaultDescriptionMaxLen = 1000
	DefaultEligibilityMaxLen = 500
	defaultCountry           = "US"
)

// Meta is run context stamped onto every normalized record.
type Meta struct {
	Source string
	JobID  string
}

// Normalizer completes PartialRecords into ScholarshipRecords.
type Normalizer struct {
	DescriptionMaxLen int
	EligibilityMaxLen int
	Now               func() time.Time
}

// New returns a Normalizer with the given caps; non-positive caps fall back
// to the defaults.
func New(descriptionMaxLen, eligibilityMaxLen int) *Normalizer {
	if descriptionMaxLen <= 0 {
		descriptionMaxLen = DefaultDescriptionMaxLen
	}
	if eligibilityMaxLen <= 0 {
		eligibilityMaxLen = DefaultEligibilityMaxLen
	}
	return &Normalizer{
		DescriptionMaxLen: descriptionMaxLen,
		EligibilityMaxLen: eligibilityMaxLen,
		Now:               time.Now,
	}
}

// Normalize builds the canonical record. Values the adapter supplied win over
// inferred ones. The returned warnings describe anomalies that do not reject
// the record, such as an inverted award range.
func (n *Normalizer) Normalize(p model.PartialRecord, meta Meta) (model.ScholarshipRecord, []string, error) {
	now := n.Now().UTC()

	name := CleanText(p.Name, TextOptions{StripQuotes: true})
	if name == "" {
		return model.ScholarshipRecord{}, nil, ErrMissingName
	}
	org := CleanText(p.Organization, TextOptions{StripQuotes: true})
	description := CleanText(p.Description, TextOptions{})
	eligibility := CleanText(p.Eligibility, TextOptions{})
	deadline := FormatDeadline(p.Deadline, now)

	rec := model.ScholarshipRecord{
		ID:                      dedup.Fingerprint(name, org, deadline),
		Name:                    name,
		Organization:            org,
		Description:             Truncate(description, n.DescriptionMaxLen),
		Eligibility:             Truncate(eligibility, n.EligibilityMaxLen),
		AcademicLevel:           CleanText(p.AcademicLevel, TextOptions{}),
		Geographic:              CleanText(p.Geographic, TextOptions{}),
		Deadline:                deadline,
		Renewable:               p.Renewable,
		Country:                 strings.ToUpper(CleanText(p.Country, TextOptions{})),
		URL:                     strings.TrimSpace(p.URL),
		ApplyURL:                strings.TrimSpace(p.ApplyURL),
		Active:                  true,
		EssayRequired:           p.EssayRequired,
		RecommendationsRequired: p.RecommendationsRequired,
		Source:                  meta.Source,
		JobID:                   meta.JobID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if rec.Country == "" {
		rec.Country = defaultCountry
	}
	if rec.ApplyURL == "" {
		rec.ApplyURL = rec.URL
	}

	rec.MinAward, rec.MaxAward = awards(p)

	corpus := strings.Join([]string{name, description, eligibility}, " ")
	rec.TargetType = targetType(p.TargetType, corpus)
	rec.Ethnicity = pick(p.Ethnicity, func() string { return InferEthnicity(corpus) })
	rec.Gender = pick(p.Gender, func() string { return InferGender(corpus) })

	var warnings []string
	if rec.MinAward > rec.MaxAward && rec.MaxAward > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: min award %.2f exceeds max award %.2f", name, rec.MinAward, rec.MaxAward))
	}
	return rec, warnings, nil
}

func awards(p model.PartialRecord) (minAward, maxAward float64) {
	minAward, maxAward = CleanAmount(p.MinAward), CleanAmount(p.MaxAward)
	if minAward == 0 && maxAward == 0 && p.Amount != "" {
		return AmountRange(p.Amount)
	}
	if maxAward == 0 {
		maxAward = minAward
	}
	return minAward, maxAward
}

func pick(given string, infer func() string) string {
	if v := CleanText(given, TextOptions{}); v != "" {
		return v
	}
	return infer()
}

func targetType(given, corpus string) string {
	switch v := strings.ToLower(strings.TrimSpace(given)); v {
	case model.TargetNeed, model.TargetMerit, model.TargetBoth:
		return v
	}
	return InferTargetType(corpus)
}
