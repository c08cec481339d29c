// Package enrichment verifies a person's identity against an external
// people-data provider.
package enrichment

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when the provider explicitly reports no match.
var ErrNotFound = errors.New("enrichment: no matching person")

// Request carries the identifiers available for a lookup.
type Request struct {
	Email         string
	IdentifierURL string
	Name          string
	Company       string
	Location      string
}

// Empty reports whether the request has no usable identifier.
func (r Request) Empty() bool {
	return r.Email == "" && r.IdentifierURL == "" && strings.TrimSpace(r.Name) == ""
}

// Result is a successful verification.
type Result struct {
	ExternalID    string  `json:"external_id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Company       string  `json:"company"`
	Location      string  `json:"location"`
	IdentifierURL string  `json:"identifier_url"`
	Likelihood    float64 `json:"likelihood"`
}

// Provider looks up a person. Implementations return ErrNotFound for an
// explicit miss and any other error when the provider is unavailable.
type Provider interface {
	Enrich(ctx context.Context, req Request) (Result, error)
}

// Config selects and tunes the enrichment provider.
type Config struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	RatePerMinute int           `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
}

// DefaultConfig returns the People Data Labs defaults.
func DefaultConfig() Config {
	return Config{
		Provider:      "pdl",
		BaseURL:       PDLEnrichURL,
		Timeout:       10 * time.Second,
		MaxRetries:    2,
		RatePerMinute: 60,
	}
}
