package model

// Defaults applied when a source payload leaves a field unset.
const (
	DefaultAPIPageSize          = 50
	DefaultAPIMaxPages          = 3
	DefaultAPIResultsField      = "results"
	DefaultCrawlPagesPerRun     = 1
	DefaultDiscoveryMaxDepth    = 2
	DefaultDiscoveryMaxPages    = 25
	DefaultRelevanceThreshold   = 0.5
	DefaultCrawlRatePerSec      = 1.0
	DefaultSearchPacingMS       = 2000
	DefaultSearchResultsPerTerm = 5
)

// WithDefaults returns a copy with unset fields filled in.
func (c APIConfig) WithDefaults() APIConfig {
	if c.PageSize <= 0 {
		c.PageSize = DefaultAPIPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultAPIMaxPages
	}
	if c.StartPage <= 0 {
		c.StartPage = 1
	}
	if c.ResultsField == "" {
		c.ResultsField = DefaultAPIResultsField
	}
	return c
}

// WithDefaults returns a copy with unset fields filled in.
func (c CrawlConfig) WithDefaults() CrawlConfig {
	if c.StartPage <= 0 {
		c.StartPage = 1
	}
	if c.MaxPageOffset <= 0 {
		c.MaxPageOffset = 1
	}
	if c.PagesPerRun <= 0 {
		c.PagesPerRun = DefaultCrawlPagesPerRun
	}
	return c
}

// WithDefaults returns a copy with unset fields filled in.
func (c DiscoveryConfig) WithDefaults() DiscoveryConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultDiscoveryMaxDepth
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultDiscoveryMaxPages
	}
	if c.RelevanceThreshold <= 0 {
		c.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if c.CrawlRatePerSec <= 0 {
		c.CrawlRatePerSec = DefaultCrawlRatePerSec
	}
	return c
}

// WithDefaults returns a copy with unset fields filled in.
func (c SearchConfig) WithDefaults() SearchConfig {
	if c.PacingMS <= 0 {
		c.PacingMS = DefaultSearchPacingMS
	}
	if c.MaxResultsPerTerm <= 0 {
		c.MaxResultsPerTerm = DefaultSearchResultsPerTerm
	}
	return c
}
