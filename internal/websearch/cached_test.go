package websearch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedProvider_ServesRepeatsFromCache(t *testing.T) {
	fp := &fakeProvider{results: map[string][]Result{"Jane Doe": {{Title: "t", URL: "https://a.com"}}}}
	p := NewCachedProvider(fp, time.Minute, 0, 0)

	first, err := p.Search(context.Background(), "Jane Doe", 5)
	require.NoError(t, err)
	second, err := p.Search(context.Background(), "  jane   doe ", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fp.calls))
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	fp := &fakeProvider{failFor: map[string]error{"q": errors.New("down")}}
	p := NewCachedProvider(fp, time.Minute, 0, 0)

	_, err := p.Search(context.Background(), "q", 5)
	require.Error(t, err)
	_, err = p.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fp.calls))
}

func TestCachedProvider_RateLimitHonorsContext(t *testing.T) {
	fp := &fakeProvider{}
	p := NewCachedProvider(fp, 0, 0.001, 1)

	_, err := p.Search(context.Background(), "first", 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Search(ctx, "second", 5)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fp.calls))
}

func TestCachedProvider_Flush(t *testing.T) {
	fp := &fakeProvider{}
	p := NewCachedProvider(fp, time.Minute, 0, 0)

	_, _ = p.Search(context.Background(), "q", 5)
	p.Flush()
	_, _ = p.Search(context.Background(), "q", 5)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fp.calls))
}
