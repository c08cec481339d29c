package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SerpAPIURL is the SerpAPI search endpoint.
const SerpAPIURL = "https://serpapi.com/search"

// #region serpapi
// SerpAPI is a Provider backed by serpapi.com's Google engine.
type SerpAPI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerpAPI creates a SerpAPI provider. An empty baseURL uses SerpAPIURL.
func NewSerpAPI(apiKey, baseURL string, client *http.Client) (*SerpAPI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serpapi: api key is required")
	}
	if baseURL == "" {
		baseURL = SerpAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SerpAPI{apiKey: apiKey, baseURL: baseURL, client: client}, nil
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answer_box"`
	KnowledgeGraph struct {
		Title       string `json:"title"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"knowledge_graph"`
}

// Search runs one Google query through SerpAPI.
func (s *SerpAPI) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("api_key", s.apiKey)
	if maxResults > 0 {
		params.Set("num", strconv.Itoa(maxResults))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("serpapi request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("serpapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("serpapi: http %d", resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("serpapi decode: %w", err)
	}
	if body.Error != "" && !strings.Contains(strings.ToLower(body.Error), "hasn't returned any results") {
		return Response{}, fmt.Errorf("serpapi: %s", body.Error)
	}

	out := Response{Results: make([]Result, 0, len(body.OrganicResults))}
	for _, r := range body.OrganicResults {
		if maxResults > 0 && len(out.Results) >= maxResults {
			break
		}
		out.Results = append(out.Results, Result{Title: r.Title, Snippet: r.Snippet, URL: r.Link})
	}
	out.Summary = summarize(body)
	return out, nil
}

func summarize(body serpResponse) string {
	switch {
	case body.AnswerBox.Answer != "":
		return body.AnswerBox.Answer
	case body.AnswerBox.Snippet != "":
		return body.AnswerBox.Snippet
	case body.KnowledgeGraph.Description != "":
		parts := []string{body.KnowledgeGraph.Title, body.KnowledgeGraph.Type, body.KnowledgeGraph.Description}
		var kept []string
		for _, p := range parts {
			if p != "" {
				kept = append(kept, p)
			}
		}
		return strings.Join(kept, ": ")
	}
	return ""
}

// #endregion serpapi
