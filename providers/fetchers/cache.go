package fetchers

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of pages kept by NewCachingFetcher when size is not positive.
const DefaultCacheSize = 128

// CachingFetcher keeps the most recently fetched pages in memory, so that checks of
// several packages sharing an upstream listing fetch it once. Errors are not cached.
type CachingFetcher struct {
	fetcher PageFetcher
	pages   *lru.Cache[string, []byte]
}

// NewCachingFetcher wraps fetcher with an LRU cache of size pages.
func NewCachingFetcher(fetcher PageFetcher, size int) (*CachingFetcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	pages, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("unable to create the page cache: %w", err)
	}
	return &CachingFetcher{fetcher: fetcher, pages: pages}, nil
}

// Fetch returns the cached page body or fetches it.
func (cf *CachingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := cf.pages.Get(url); ok {
		return body, nil
	}
	body, err := cf.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	cf.pages.Add(url, body)
	return body, nil
}

// Len returns the number of cached pages.
func (cf *CachingFetcher) Len() int {
	return cf.pages.Len()
}
