package service

import (
	"context"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
)

// Fetcher retrieves a URL. The caller owns the returned result and must
// Close its response.
type Fetcher interface {
	// Get fetches url and returns a document or a list of child URLs
	Get(ctx context.Context, url string) (entity.FetchResult, error)
}

// HeadFetcher is implemented by fetchers that can read a resource's
// metadata without its body. Workers use it for HEAD requests.
type HeadFetcher interface {
	Head(ctx context.Context, url string) (entity.FetchResult, error)
}
