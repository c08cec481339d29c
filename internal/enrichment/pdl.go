package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// PDLEnrichURL is the People Data Labs person enrichment endpoint.
const PDLEnrichURL = "https://api.peopledatalabs.com/v5/person/enrich"

// PDL is a People Data Labs client. Requests are rate limited and retried on
// 429 and 5xx responses with exponential backoff.
type PDL struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewPDL creates a client from cfg. A nil client uses one with cfg.Timeout.
func NewPDL(cfg Config, client *http.Client) *PDL {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = PDLEnrichURL
	}
	perMin := cfg.RatePerMinute
	if perMin <= 0 {
		perMin = 60
	}
	return &PDL{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		maxRetries: cfg.MaxRetries,
		backoff:    2 * time.Second,
	}
}

type pdlPerson struct {
	ID             string  `json:"id"`
	FullName       string  `json:"full_name"`
	JobTitle       string  `json:"job_title"`
	JobCompanyName string  `json:"job_company_name"`
	LocationName   string  `json:"location_name"`
	LinkedInURL    string  `json:"linkedin_url"`
	Likelihood     float64 `json:"likelihood"`
}

type pdlResponse struct {
	Status     int       `json:"status"`
	Likelihood float64   `json:"likelihood"`
	Data       pdlPerson `json:"data"`
}

// Enrich calls the person enrichment endpoint.
func (p *PDL) Enrich(ctx context.Context, req Request) (Result, error) {
	if p.apiKey == "" {
		return Result{}, errors.New("pdl: api key not configured")
	}
	if req.Empty() {
		return Result{}, errors.New("pdl: no identifiers provided")
	}

	params := url.Values{}
	if req.Email != "" {
		params.Set("email", req.Email)
	}
	if req.IdentifierURL != "" {
		params.Set("profile", req.IdentifierURL)
	}
	if name := strings.Fields(req.Name); len(name) > 0 {
		params.Set("first_name", name[0])
		if len(name) > 1 {
			params.Set("last_name", strings.Join(name[1:], " "))
		}
	}
	if req.Company != "" {
		params.Set("company", req.Company)
	}
	if req.Location != "" {
		params.Set("location", req.Location)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := p.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("pdl rate limit: %w", err)
		}

		res, retry, err := p.do(ctx, params)
		if err == nil || !retry {
			return res, err
		}
		lastErr = err
	}
	return Result{}, fmt.Errorf("pdl: retries exhausted: %w", lastErr)
}

func (p *PDL) do(ctx context.Context, params url.Values) (Result, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, false, fmt.Errorf("pdl request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, false, ctx.Err()
		}
		return Result{}, true, fmt.Errorf("pdl call: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return Result{}, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Result{}, true, fmt.Errorf("pdl: HTTP %d", resp.StatusCode)
	default:
		return Result{}, false, fmt.Errorf("pdl: HTTP %d", resp.StatusCode)
	}

	var body pdlResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, false, fmt.Errorf("pdl decode: %w", err)
	}
	likelihood := body.Likelihood
	if likelihood == 0 {
		likelihood = body.Data.Likelihood
	}
	identifier := body.Data.LinkedInURL
	if identifier != "" && !strings.HasPrefix(identifier, "http") {
		identifier = "https://" + identifier
	}
	return Result{
		ExternalID:    body.Data.ID,
		Name:          body.Data.FullName,
		Title:         body.Data.JobTitle,
		Company:       body.Data.JobCompanyName,
		Location:      body.Data.LocationName,
		IdentifierURL: identifier,
		Likelihood:    likelihood,
	}, false, nil
}
