package model

import (
	"encoding/json"
	"time"
)

// SourceKind selects the adapter family used for a source.
type SourceKind string

const (
	KindAPI       SourceKind = "api"
	KindCrawl     SourceKind = "crawl"
	KindDiscovery SourceKind = "discovery"
	KindSearch    SourceKind = "search"
)

// Kinds lists every supported kind.
var Kinds = []SourceKind{KindAPI, KindCrawl, KindDiscovery, KindSearch}

// Valid reports whether k is one of the supported kinds.
func (k SourceKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// SourceConfig mirrors a scholarship_sources row. Exactly one of the typed
// payloads is populated once the registry has decoded Payload.
type SourceConfig struct {
	Name         string          `json:"name"`
	Kind         SourceKind      `json:"kind"`
	Enabled      bool            `json:"enabled"`
	Adapter      string          `json:"adapter,omitempty"`
	ExcludeTerms []string        `json:"excludeTerms,omitempty"` // any match discards the candidate
	Payload      json.RawMessage `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`

	API       *APIConfig       `json:"api,omitempty"`
	Crawl     *CrawlConfig     `json:"crawl,omitempty"`
	Discovery *DiscoveryConfig `json:"discovery,omitempty"`
	Search    *SearchConfig    `json:"search,omitempty"`
}

// APIConfig describes a paginated JSON API.
type APIConfig struct {
	Endpoint string `json:"endpoint"`
	// CredentialRef is resolved through the secret resolver, e.g. "env:FASTWEB_KEY".
	CredentialRef    string            `json:"credentialRef,omitempty"`
	CredentialParam  string            `json:"credentialParam,omitempty"`
	CredentialHeader string            `json:"credentialHeader,omitempty"`
	QueryParams      map[string]string `json:"queryParams,omitempty"`
	PageParam        string            `json:"pageParam,omitempty"`
	PageSizeParam    string            `json:"pageSizeParam,omitempty"`
	PageSize         int               `json:"pageSize,omitempty"`
	StartPage        int               `json:"startPage,omitempty"`
	MaxPages         int               `json:"maxPages,omitempty"`
	ResultsField     string            `json:"resultsField,omitempty"`
	// FieldMap maps record fields ("name", "organization", ...) to dotted
	// paths in each result object ("sponsor.display_name").
	FieldMap map[string]string `json:"fieldMap"`
}

// CrawlConfig describes a paginated HTML listing.
type CrawlConfig struct {
	URL             string          `json:"url"`
	PageParam       string          `json:"pageParam,omitempty"`
	StartPage       int             `json:"startPage,omitempty"`
	MaxPageOffset   int             `json:"maxPageOffset,omitempty"`
	PagesPerRun     int             `json:"pagesPerRun,omitempty"`
	Selectors       ListSelectors   `json:"selectors"`
	DetailSelectors DetailSelectors `json:"detailSelectors,omitempty"`
	DetailDelayMS   int             `json:"detailDelayMs,omitempty"`
}

// ListSelectors are goquery selectors for a listing page. Field selectors are
// evaluated relative to Row.
type ListSelectors struct {
	Row          string `json:"row"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Deadline     string `json:"deadline,omitempty"`
	Description  string `json:"description,omitempty"`
	Link         string `json:"link,omitempty"`
}

// DetailSelectors are goquery selectors for a per-item detail page.
type DetailSelectors struct {
	Description string `json:"description,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
	ApplyLink   string `json:"applyLink,omitempty"`
}

// Empty reports whether no detail selector is configured.
func (d DetailSelectors) Empty() bool {
	return d.Description == "" && d.Eligibility == "" && d.Amount == "" &&
		d.Deadline == "" && d.ApplyLink == ""
}

// DiscoveryConfig describes a bounded, relevance-filtered crawl whose pages
// are handed to the generative extractor.
type DiscoveryConfig struct {
	SeedURLs           []string `json:"seedUrls"`
	AllowedDomains     []string `json:"allowedDomains,omitempty"`
	Keywords           []string `json:"keywords"`
	MaxDepth           int      `json:"maxDepth,omitempty"`
	MaxPages           int      `json:"maxPages,omitempty"`
	RelevanceThreshold float64  `json:"relevanceThreshold,omitempty"`
	CrawlRatePerSec    float64  `json:"crawlRatePerSec,omitempty"`
}

// SearchConfig describes a term-driven web search source.
type SearchConfig struct {
	Terms             []string `json:"terms"`
	PacingMS          int      `json:"pacingMs,omitempty"`
	MaxResultsPerTerm int      `json:"maxResultsPerTerm,omitempty"`
}
