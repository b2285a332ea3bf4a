package sentiment

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedAnalyzer memoizes results of another analyzer by normalized text.
// Failures are never cached.
type CachedAnalyzer struct {
	next  Analyzer
	cache *lru.Cache[string, Label]
}

// NewCachedAnalyzer wraps next with an LRU of the given size.
func NewCachedAnalyzer(next Analyzer, size int) (*CachedAnalyzer, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, Label](size)
	if err != nil {
		return nil, err
	}
	return &CachedAnalyzer{next: next, cache: cache}, nil
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, text string) (Result, error) {
	trimmed, err := ValidateText(text)
	if err != nil {
		return Result{}, err
	}
	key := Normalize(trimmed)
	if label, ok := c.cache.Get(key); ok {
		return Result{Sentiment: label, InputText: trimmed}, nil
	}
	result, err := c.next.Analyze(ctx, trimmed)
	if err != nil {
		return Result{}, err
	}
	c.cache.Add(key, result.Sentiment)
	return result, nil
}

// Len returns the number of cached entries.
func (c *CachedAnalyzer) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *CachedAnalyzer) Purge() {
	c.cache.Purge()
}
