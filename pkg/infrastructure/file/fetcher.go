package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/gabriel-vasile/mimetype"
)

// Fetcher implements service.Fetcher for file:// URLs. A directory yields
// its entries as child URLs; a regular file yields a document.
type Fetcher struct {
	maxResponseSize int64
}

// NewFetcher creates a file fetcher
func NewFetcher(maxResponseSize int64) *Fetcher {
	return &Fetcher{maxResponseSize: maxResponseSize}
}

// Get implements service.Fetcher
func (f *Fetcher) Get(ctx context.Context, rawURL string) (entity.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := PathFromURL(rawURL)
	if err != nil {
		return nil, crawlerr.NewAccess(fmt.Sprintf("invalid file url %s", rawURL), err)
	}

	start := time.Now()
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &entity.DocumentResult{Response: &entity.ResponseData{
			URL:           rawURL,
			Method:        entity.MethodGet,
			StatusCode:    404,
			ExecutionTime: time.Since(start),
		}}, nil
	}
	if err != nil {
		return nil, crawlerr.NewAccess(fmt.Sprintf("failed to stat %s", path), err)
	}

	modTime := info.ModTime()
	data := &entity.ResponseData{
		URL:          rawURL,
		Method:       entity.MethodGet,
		StatusCode:   200,
		LastModified: &modTime,
	}

	if info.IsDir() {
		children, err := f.list(path)
		if err != nil {
			return nil, crawlerr.NewAccess(fmt.Sprintf("failed to list %s", path), err)
		}
		data.MimeType = "inode/directory"
		data.ExecutionTime = time.Since(start)
		return &entity.ChildURLsResult{Response: data, URLs: children}, nil
	}

	if mt, err := mimetype.DetectFile(path); err == nil {
		data.MimeType = mt.String()
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, crawlerr.NewAccess(fmt.Sprintf("failed to open %s", path), err)
	}
	data.ContentLength = info.Size()
	data.Body = file
	if f.maxResponseSize > 0 && data.ContentLength > f.maxResponseSize {
		data.ContentLength = f.maxResponseSize
		data.Body = struct {
			io.Reader
			io.Closer
		}{io.LimitReader(file, f.maxResponseSize), file}
	}
	data.ExecutionTime = time.Since(start)
	return &entity.DocumentResult{Response: data}, nil
}

// Head implements service.HeadFetcher. Files are stat'ed and detected but
// never left open.
func (f *Fetcher) Head(ctx context.Context, rawURL string) (entity.FetchResult, error) {
	res, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if doc, ok := res.(*entity.DocumentResult); ok {
		doc.Response.Close()
		doc.Response.Body = nil
		doc.Response.Method = entity.MethodHead
	}
	return res, nil
}

// list returns the directory entries as file URLs in name order
func (f *Fetcher) list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, URLFromPath(filepath.Join(dir, e.Name())))
	}
	return urls, nil
}

// PathFromURL converts a file:// URL to a local path
func PathFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("url %q has no path", rawURL)
	}
	return filepath.FromSlash(u.Path), nil
}

// URLFromPath converts a local path to a file:// URL
func URLFromPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
