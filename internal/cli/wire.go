package cli

import (
	"fmt"
	"net/http"

	"github.com/danielpatrickdp/briefgate/internal/brief"
	"github.com/danielpatrickdp/briefgate/internal/codec"
	"github.com/danielpatrickdp/briefgate/internal/embedding"
	"github.com/danielpatrickdp/briefgate/internal/enrichment"
	"github.com/danielpatrickdp/briefgate/internal/entity"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/retrieval"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region codec
// codecClient dials the inference sidecar once per command.
func (a *app) codecClient() (*codec.CodecClient, error) {
	c, err := codec.NewCodecClient(a.cfg.Codec.Address)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

// #endregion codec

// #region providers
// searchProvider returns the configured web search backend behind the
// shared cache and rate limiter. "none" returns nil.
func (a *app) searchProvider() (websearch.Provider, error) {
	cfg := a.cfg.Search
	var next websearch.Provider
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "serpapi":
		if cfg.APIKey == "" {
			a.logger.Warn("web search disabled: no api key", "provider", cfg.Provider)
			return nil, nil
		}
		s, err := websearch.NewSerpAPI(cfg.APIKey, cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
		if err != nil {
			return nil, err
		}
		next = s
	case "codec":
		c, err := a.codecClient()
		if err != nil {
			return nil, err
		}
		next = c
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
	return websearch.NewCachedProvider(next, cfg.CacheTTL, cfg.RatePerSecond, cfg.Burst), nil
}

func (a *app) enricher() (enrichment.Provider, error) {
	cfg := a.cfg.Enrichment
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "pdl":
		if cfg.APIKey == "" {
			a.logger.Warn("enrichment disabled: no api key", "provider", cfg.Provider)
			return nil, nil
		}
		return enrichment.NewPDL(cfg, &http.Client{Timeout: cfg.Timeout}), nil
	case "codec":
		c, err := a.codecClient()
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown enrichment provider %q", cfg.Provider)
}

// llm returns the embedder and synthesizer. With provider "none", or an
// openai provider without a key, retrieval is keyword-only and drafts are
// extractive.
func (a *app) llm() (embedding.Embedder, synthesis.Synthesizer, error) {
	cfg := a.cfg.LLM
	switch cfg.Provider {
	case "none", "":
		return nil, synthesis.Extractive{}, nil
	case "openai":
		if cfg.APIKey == "" {
			a.logger.Warn("llm disabled: no api key, using keyword retrieval and extractive drafts")
			return nil, synthesis.Extractive{}, nil
		}
		emb, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		syn, err := synthesis.NewOpenAI(synthesis.OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return emb, syn, nil
	case "codec":
		c, err := a.codecClient()
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
	return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// #endregion providers

// #region pipeline
func (a *app) pipeline() (*brief.Pipeline, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	search, err := a.searchProvider()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	enr, err := a.enricher()
	if err != nil {
		return nil, fmt.Errorf("enrichment: %w", err)
	}
	emb, syn, err := a.llm()
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return brief.NewPipeline(brief.Deps{
		Store:       s,
		Resolver:    entity.NewResolver(s, a.logger),
		Retriever:   retrieval.NewRetriever(s, emb, a.cfg.Retrieval, a.logger),
		Search:      search,
		Enricher:    enr,
		Synthesizer: syn,
		Gate:        gate.NewGate(a.cfg.Gate),
		SearchCfg:   a.cfg.Search,
		Research:    a.cfg.Research,
		Logger:      a.logger,
	}), nil
}

// #endregion pipeline
