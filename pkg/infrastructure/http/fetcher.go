package http

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
)

// Fetcher implements service.Fetcher over HTTP
type Fetcher struct {
	client          *http.Client
	maxResponseSize int64
	userAgent       string
}

// Config holds HTTP fetcher configuration
type Config struct {
	Timeout         time.Duration
	MaxResponseSize int64
	UserAgent       string
	// FollowRedirects lets the client chase redirects. When false a redirect
	// comes back as a ChildURLsResult so the target goes through the frontier.
	FollowRedirects bool
}

// NewFetcher creates a new HTTP fetcher
func NewFetcher(config Config) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if !config.FollowRedirects {
					return http.ErrUseLastResponse
				}
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxResponseSize: config.MaxResponseSize,
		userAgent:       config.UserAgent,
	}
}

// Get implements service.Fetcher. The body is streamed; the caller closes it.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (entity.FetchResult, error) {
	return f.do(ctx, entity.MethodGet, rawURL)
}

// Head implements service.HeadFetcher
func (f *Fetcher) Head(ctx context.Context, rawURL string) (entity.FetchResult, error) {
	return f.do(ctx, entity.MethodHead, rawURL)
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string) (entity.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, crawlerr.NewAccess(fmt.Sprintf("invalid request for %s", rawURL), err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, crawlerr.NewAccess(fmt.Sprintf("failed to fetch %s", rawURL), err)
	}

	data := &entity.ResponseData{
		URL:           rawURL,
		Method:        method,
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		Headers:       make(map[string]string, len(resp.Header)),
		ExecutionTime: time.Since(start),
		Body:          limitBody(resp.Body, f.maxResponseSize),
	}
	for key, values := range resp.Header {
		data.Headers[key] = strings.Join(values, ", ")
	}
	data.MimeType, data.Charset = contentType(resp.Header.Get("Content-Type"))
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			data.LastModified = &t
		}
	}

	if isRedirect(resp.StatusCode) {
		if loc, err := resp.Location(); err == nil {
			return &entity.ChildURLsResult{Response: data, URLs: []string{loc.String()}}, nil
		}
	}
	return &entity.DocumentResult{Response: data}, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func contentType(header string) (mimeType, charset string) {
	if header == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(header, ";", 2)[0]), ""
	}
	return mt, params["charset"]
}

type limitedBody struct {
	io.Reader
	io.Closer
}

func limitBody(body io.ReadCloser, max int64) io.ReadCloser {
	if max <= 0 {
		return body
	}
	return limitedBody{Reader: io.LimitReader(body, max), Closer: body}
}
