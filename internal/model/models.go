// Package model defines shared data structures for the discovery service.
package model

import "time"

// Sentinel values for demographic fields that could not be inferred.
const (
	Unspecified = "unspecified"

	TargetNeed  = "need"
	TargetMerit = "merit"
	TargetBoth  = "both"
)

// ScholarshipRecord is the canonical, persisted form of a scholarship listing.
// ID is a deterministic fingerprint of (Name, Organization, Deadline).
type ScholarshipRecord struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Organization            string    `json:"organization"`
	Description             string    `json:"description"`
	Eligibility             string    `json:"eligibility"`
	AcademicLevel           string    `json:"academicLevel"`
	Geographic              string    `json:"geographic"`
	TargetType              string    `json:"targetType"`
	Ethnicity               string    `json:"ethnicity"`
	Gender                  string    `json:"gender"`
	Deadline                string    `json:"deadline"`
	MinAward                float64   `json:"minAward"`
	MaxAward                float64   `json:"maxAward"`
	Renewable               bool      `json:"renewable"`
	Country                 string    `json:"country"`
	URL                     string    `json:"url"`
	ApplyURL                string    `json:"applyUrl"`
	Active                  bool      `json:"active"`
	EssayRequired           bool      `json:"essayRequired"`
	RecommendationsRequired bool      `json:"recommendationsRequired"`
	Source                  string    `json:"source"`
	JobID                   string    `json:"jobId"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// PartialRecord is a candidate produced by a source adapter. Amounts and
// deadlines are still raw text; the normalizer completes the record.
type PartialRecord struct {
	Name                    string `json:"name"`
	Organization            string `json:"organization"`
	Description             string `json:"description"`
	Eligibility             string `json:"eligibility"`
	AcademicLevel           string `json:"academicLevel"`
	Geographic              string `json:"geographic"`
	TargetType              string `json:"targetType"`
	Ethnicity               string `json:"ethnicity"`
	Gender                  string `json:"gender"`
	Deadline                string `json:"deadline"`
	Amount                  string `json:"amount"` // combined text, e.g. "$1,000 - $5,000"
	MinAward                string `json:"minAward"`
	MaxAward                string `json:"maxAward"`
	Renewable               bool   `json:"renewable"`
	Country                 string `json:"country"`
	URL                     string `json:"url"`
	ApplyURL                string `json:"applyUrl"`
	EssayRequired           bool   `json:"essayRequired"`
	RecommendationsRequired bool   `json:"recommendationsRequired"`
}
