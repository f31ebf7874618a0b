package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mochatech1725/scholarship-scraper2/internal/ai"
	"github.com/mochatech1725/scholarship-scraper2/internal/model"
	"github.com/mochatech1725/scholarship-scraper2/internal/normalize"
	"github.com/mochatech1725/scholarship-scraper2/internal/ratelimit"
	"github.com/mochatech1725/scholarship-scraper2/internal/retry"
)

const defaultMaxPromptChars = 12000

// Extractor asks the generative model to pull scholarship fields out of
// unstructured text. Every model call waits on the extractor's own limiter.
type Extractor struct {
	gen      ai.Generator
	limiter  *ratelimit.Limiter
	policy   retry.Policy
	attempts int
	maxChars int
}

// NewExtractor returns an extractor allowing ratePerSec model calls per second.
func NewExtractor(gen ai.Generator, ratePerSec float64, policy retry.Policy, attempts int) *Extractor {
	return &Extractor{
		gen:      gen,
		limiter:  ratelimit.New(ratePerSec),
		policy:   policy,
		attempts: attempts,
		maxChars: defaultMaxPromptChars,
	}
}

const extractPrompt = `Extract every scholarship described in the page content below.
Respond with JSON only, in the form {"scholarships": [ ... ]}. Each item may have:
name, organization, description, eligibility, academicLevel, geographic,
targetType (need, merit or both), ethnicity, gender, deadline, amount, minAward,
maxAward, renewable, country, url, applyUrl, essayRequired, recommendationsRequired.
Omit fields you cannot find. If the page lists no scholarship, respond with null.

Page URL: %s

Content:
%s`

const queryPrompt = `List real, currently offered scholarships matching the search "%s".
Respond with JSON only, in the form {"scholarships": [ ... ]}, using the fields
name, organization, description, eligibility, deadline, amount, url and applyUrl.
If you know of none, respond with null.`

// Extract returns the scholarships found in content. A "no result" reply
// yields no records and no error.
func (e *Extractor) Extract(ctx context.Context, content, pageURL string) ([]model.PartialRecord, error) {
	content = normalize.Truncate(content, e.maxChars)
	recs, err := e.ask(ctx, fmt.Sprintf(extractPrompt, pageURL, content))
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].URL == "" {
			recs[i].URL = pageURL
		}
	}
	return recs, nil
}

// ExtractFromQuery asks the model directly about a search term.
func (e *Extractor) ExtractFromQuery(ctx context.Context, term string) ([]model.PartialRecord, error) {
	return e.ask(ctx, fmt.Sprintf(queryPrompt, term))
}

func (e *Extractor) ask(ctx context.Context, prompt string) ([]model.PartialRecord, error) {
	if e.gen == nil {
		return nil, ai.ErrNotConfigured
	}
	reply, err := retry.Do(ctx, e.policy, e.attempts, func(ctx context.Context) (string, error) {
		if err := e.limiter.WaitForNextSlot(ctx); err != nil {
			return "", err
		}
		return e.gen.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("model extraction: %w", err)
	}
	return ParseExtraction(reply)
}

// ─── Response parsing ────────────────────────────────────────────────────────

// ExtractJSONObject returns the first balanced {...} in s. Braces inside JSON
// strings are ignored. ok is false when no complete object exists.
func ExtractJSONObject(s string) (obj string, ok bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseExtraction decodes a model reply into candidates. It accepts
// {"scholarships": [...]} or a single scholarship object; empty and null
// replies mean nothing was found. A reply that opens an object without closing
// it is an error.
func ParseExtraction(reply string) ([]model.PartialRecord, error) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return nil, nil
	}
	obj, ok := ExtractJSONObject(trimmed)
	if !ok {
		if strings.Contains(trimmed, "{") {
			return nil, fmt.Errorf("decode model reply: unterminated JSON object")
		}
		return nil, nil
	}

	var wrapper struct {
		Scholarships *[]extracted `json:"scholarships"`
	}
	if err := json.Unmarshal([]byte(obj), &wrapper); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}

	var items []extracted
	if wrapper.Scholarships != nil {
		items = *wrapper.Scholarships
	} else {
		var single extracted
		if err := json.Unmarshal([]byte(obj), &single); err != nil {
			return nil, fmt.Errorf("decode model reply: %w", err)
		}
		items = []extracted{single}
	}

	out := make([]model.PartialRecord, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(string(it.Name)) == "" {
			continue
		}
		out = append(out, it.partial())
	}
	return out, nil
}

// flexString accepts JSON strings, numbers and booleans.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.Trim(string(b), `"`))
	return nil
}

// flexBool accepts true/false, "yes"/"no" and 0/1.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	v := strings.ToLower(strings.Trim(string(b), `"`))
	if v == "yes" || v == "y" {
		*f = true
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		*f = false
		return nil
	}
	*f = flexBool(parsed)
	return nil
}

type extracted struct {
	Name                    flexString `json:"name"`
	Organization            flexString `json:"organization"`
	Description             flexString `json:"description"`
	Eligibility             flexString `json:"eligibility"`
	AcademicLevel           flexString `json:"academicLevel"`
	Geographic              flexString `json:"geographic"`
	TargetType              flexString `json:"targetType"`
	Ethnicity               flexString `json:"ethnicity"`
	Gender                  flexString `json:"gender"`
	Deadline                flexString `json:"deadline"`
	Amount                  flexString `json:"amount"`
	MinAward                flexString `json:"minAward"`
	MaxAward                flexString `json:"maxAward"`
	Renewable               flexBool   `json:"renewable"`
	Country                 flexString `json:"country"`
	URL                     flexString `json:"url"`
	ApplyURL                flexString `json:"applyUrl"`
	EssayRequired           flexBool   `json:"essayRequired"`
	RecommendationsRequired flexBool   `json:"recommendationsRequired"`
}

func (e extracted) partial() model.PartialRecord {
	return model.PartialRecord{
		Name:                    string(e.Name),
		Organization:            string(e.Organization),
		Description:             string(e.Description),
		Eligibility:             string(e.Eligibility),
		AcademicLevel:           string(e.AcademicLevel),
		Geographic:              string(e.Geographic),
		TargetType:              string(e.TargetType),
		Ethnicity:               string(e.Ethnicity),
		Gender:                  string(e.Gender),
		Deadline:                string(e.Deadline),
		Amount:                  string(e.Amount),
		MinAward:                string(e.MinAward),
		MaxAward:                string(e.MaxAward),
		Renewable:               bool(e.Renewable),
		Country:                 string(e.Country),
		URL:                     string(e.URL),
		ApplyURL:                string(e.ApplyURL),
		EssayRequired:           bool(e.EssayRequired),
		RecommendationsRequired: bool(e.RecommendationsRequired),
	}
}
