package websearch

import (
	"context"
	"time"
)

// #region types

// Result holds a single search result.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Response is what a provider returns for one query. Summary carries any
// provider-written answer text, which has no verifiable source of its own.
type Response struct {
	Results []Result `json:"results"`
	Summary string   `json:"summary,omitempty"`
}

// Provider runs one web search.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) (Response, error)
}

// Intent labels why a query was issued.
type Intent string

const (
	IntentVisibility Intent = "visibility"
	IntentIdentity   Intent = "identity"
)

// Query is one planned search.
type Query struct {
	Text    string `json:"text"`
	Intent  Intent `json:"intent"`
	Family  string `json:"family,omitempty"`
	Subject string `json:"subject"`
}

// Outcome is the result of issuing a Query. Err is set when the provider
// failed or timed out; Response is then empty.
type Outcome struct {
	Query    Query
	Response Response
	Err      error
	Elapsed  time.Duration
}

// Config holds web search parameters.
type Config struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxResults    int           `mapstructure:"max_results" yaml:"max_results"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Concurrency   int           `mapstructure:"concurrency" yaml:"concurrency"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int           `mapstructure:"burst" yaml:"burst"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// #endregion types

// #region config

// DefaultConfig returns default web search configuration.
func DefaultConfig() Config {
	return Config{
		Provider:      "serpapi",
		BaseURL:       SerpAPIURL,
		MaxResults:    8,
		Timeout:       10 * time.Second,
		Concurrency:   4,
		RatePerSecond: 2,
		Burst:         4,
		CacheTTL:      time.Hour,
	}
}

// #endregion config
