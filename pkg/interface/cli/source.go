package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/WangYihang/Crawl-Frontier/pkg/config"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/infrastructure/http"
)

// source is a document opened from a file, stdin or a URL
type source struct {
	io.Reader
	io.Closer
	charset string
}

// openSource opens path, which may be "-" for stdin or an http(s) URL
func (a *App) openSource(path string, cfg *config.Config) (*source, error) {
	switch {
	case path == "-":
		return &source{Reader: os.Stdin, Closer: io.NopCloser(os.Stdin)}, nil
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return a.fetchSource(path, cfg)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &source{Reader: file, Closer: file}, nil
}

func (a *App) fetchSource(rawURL string, cfg *config.Config) (*source, error) {
	fetcher := http.NewFetcher(http.Config{
		Timeout:         cfg.Crawl.Timeout,
		MaxResponseSize: cfg.Sitemap.MaxSize,
		UserAgent:       cfg.Robots.UserAgent,
		FollowRedirects: true,
	})
	res, err := fetcher.Get(a.ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, ok := res.(*entity.DocumentResult)
	if !ok {
		return nil, fmt.Errorf("%s did not return a document", rawURL)
	}
	resp := doc.Response
	if entity.StatusForCode(resp.StatusCode) != entity.StatusOK || resp.Body == nil {
		resp.Close()
		return nil, fmt.Errorf("%s returned HTTP %d", rawURL, resp.StatusCode)
	}
	return &source{Reader: resp.Body, Closer: resp, charset: resp.Charset}, nil
}
