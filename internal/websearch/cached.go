package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// #region cached-provider
// CachedProvider wraps a Provider with an in-memory result cache and an
// outbound rate limit. Failed searches are not cached. Safe for concurrent use.
type CachedProvider struct {
	next    Provider
	cache   *gocache.Cache
	limiter *rate.Limiter
}

// NewCachedProvider wraps next. A non-positive ratePerSecond disables the
// limiter; a non-positive ttl disables caching.
func NewCachedProvider(next Provider, ttl time.Duration, ratePerSecond float64, burst int) *CachedProvider {
	p := &CachedProvider{next: next}
	if ttl > 0 {
		p.cache = gocache.New(ttl, 2*ttl)
	}
	if ratePerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return p
}

// Search serves from cache when possible, otherwise waits for rate clearance
// and delegates.
func (p *CachedProvider) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	key := cacheKey(query, maxResults)
	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			return v.(Response), nil
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	resp, err := p.next.Search(ctx, query, maxResults)
	if err != nil {
		return Response{}, err
	}
	if p.cache != nil {
		p.cache.SetDefault(key, resp)
	}
	return resp, nil
}

// Flush drops every cached response.
func (p *CachedProvider) Flush() {
	if p.cache != nil {
		p.cache.Flush()
	}
}

func cacheKey(query string, maxResults int) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", norm, maxResults)))
	return "websearch:v1:" + hex.EncodeToString(sum[:])
}

// #endregion cached-provider
