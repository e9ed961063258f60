package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/frontier"
	"github.com/WangYihang/Crawl-Frontier/pkg/logging"
	"github.com/WangYihang/Crawl-Frontier/pkg/sitemap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakePage struct {
	status   int
	body     string
	children []string
	err      error
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls map[string]int
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (entity.FetchResult, error) {
	f.mu.Lock()
	f.calls[url]++
	p, ok := f.pages[url]
	f.mu.Unlock()

	if !ok {
		p = fakePage{status: 404}
	}
	if p.err != nil {
		return nil, p.err
	}
	resp := &entity.ResponseData{
		URL:           url,
		Method:        entity.MethodGet,
		StatusCode:    p.status,
		ContentLength: -1,
		Body:          io.NopCloser(strings.NewReader(p.body)),
	}
	if p.children != nil {
		return &entity.ChildURLsResult{Response: resp, URLs: p.children}, nil
	}
	return &entity.DocumentResult{Response: resp}, nil
}

// Head records the call under "HEAD <url>" and returns the page without a body
func (f *fakeFetcher) Head(ctx context.Context, url string) (entity.FetchResult, error) {
	f.mu.Lock()
	f.calls["HEAD "+url]++
	p, ok := f.pages[url]
	f.mu.Unlock()

	if !ok {
		p = fakePage{status: 404}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &entity.DocumentResult{Response: &entity.ResponseData{
		URL:        url,
		Method:     entity.MethodHead,
		StatusCode: p.status,
	}}, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) total(exclude string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for url, c := range f.calls {
		if !strings.HasSuffix(url, exclude) {
			n += c
		}
	}
	return n
}

type memWriter struct {
	mu      sync.Mutex
	results []*entity.AccessResult
	closed  int
}

func (w *memWriter) Write(r *entity.AccessResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.results = append(w.results, r)
	return nil
}

func (w *memWriter) Flush() error { return nil }

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *memWriter) urls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	urls := make([]string, 0, len(w.results))
	for _, r := range w.results {
		urls = append(urls, r.URL)
	}
	sort.Strings(urls)
	return urls
}

func newTestUseCase(cfg Config, fetcher *fakeFetcher, robotsEnabled bool, opts ...Option) (*CrawlUseCase, *memWriter) {
	logger := logging.Discard()
	writer := &memWriter{}
	if cfg.SessionID == "" {
		cfg.SessionID = "test"
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 100 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "TestBot"
	}
	uc := NewCrawlUseCase(
		cfg,
		frontier.NewStore(frontier.WithLogger(logger)),
		fetcher,
		NewRobotsCache(fetcher, "UTF-8", robotsEnabled, logger),
		sitemap.NewParser(sitemap.WithLogger(logger)),
		writer,
		append([]Option{WithLogger(logger)}, opts...)...,
	)
	return uc, writer
}

func execute(t *testing.T, uc *CrawlUseCase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := uc.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestCrawlRobotsAndSitemaps(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/robots.txt": {status: 200, body: "User-agent: *\nDisallow: /private\n\nSitemap: https://a.test/sitemap.xml\n"},
		"https://a.test/":           {status: 200, children: []string{"https://a.test/x", "https://a.test/private/y", "https://a.test/x"}},
		"https://a.test/x":          {status: 200, body: "x"},
		"https://a.test/s1":         {status: 200, body: "s1"},
		"https://a.test/sitemap.xml": {status: 200, body: `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://a.test/s1</loc><priority>0.8</priority></url>
  <url><loc>https://a.test/x</loc></url>
</urlset>`},
	})
	reg := prometheus.NewRegistry()
	uc, writer := newTestUseCase(Config{
		NumWorkers:       4,
		MaxDepth:         3,
		Seeds:            []string{"https://a.test/"},
		DiscoverSitemaps: true,
	}, fetcher, true, WithMetrics(reg))

	execute(t, uc)

	want := []string{"https://a.test/", "https://a.test/s1", "https://a.test/sitemap.xml", "https://a.test/x"}
	got := writer.urls()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("recorded = %v, want %v", got, want)
	}
	if n := fetcher.count("https://a.test/robots.txt"); n != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", n)
	}
	if n := fetcher.count("https://a.test/x"); n != 1 {
		t.Errorf("/x fetched %d times, want 1", n)
	}
	if n := fetcher.count("https://a.test/private/y"); n != 0 {
		t.Errorf("disallowed url fetched %d times", n)
	}

	m := uc.GetMetrics()
	if m.RobotsDenied != 1 {
		t.Errorf("RobotsDenied = %d, want 1", m.RobotsDenied)
	}
	if m.SitemapURLs != 2 {
		t.Errorf("SitemapURLs = %d, want 2", m.SitemapURLs)
	}
	if m.SuccessCount != 4 || m.ErrorCount != 0 {
		t.Errorf("SuccessCount = %d, ErrorCount = %d", m.SuccessCount, m.ErrorCount)
	}
	if got := testutil.ToFloat64(uc.prom.robotsDenied); got != 1 {
		t.Errorf("robots_denied_total = %v", got)
	}
	if got := testutil.ToFloat64(uc.prom.fetches.WithLabelValues("ok")); got != 4 {
		t.Errorf("fetches_total{status=ok} = %v", got)
	}
	if writer.closed != 1 {
		t.Errorf("writer closed %d times, want 1", writer.closed)
	}

	results := uc.Store().AccessResults("test")
	if r, ok := results.Get("https://a.test/s1"); !ok || r.ParentURL != "https://a.test/sitemap.xml" {
		t.Errorf("s1 result = %+v", r)
	}
}

func TestCrawlMaxDepth(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/":  {status: 200, children: []string{"https://a.test/a"}},
		"https://a.test/a": {status: 200, children: []string{"https://a.test/b"}},
	})
	uc, writer := newTestUseCase(Config{
		NumWorkers: 2,
		MaxDepth:   1,
		Seeds:      []string{"https://a.test/"},
	}, fetcher, false)

	execute(t, uc)

	got := writer.urls()
	if len(got) != 2 {
		t.Errorf("recorded = %v, want seed and depth 1 only", got)
	}
	if fetcher.count("https://a.test/b") != 0 {
		t.Errorf("depth 2 url was fetched")
	}
}

func TestCrawlMaxAccessCount(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/": {status: 200, children: []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}},
	})
	uc, _ := newTestUseCase(Config{
		NumWorkers:     3,
		MaxDepth:       2,
		MaxAccessCount: 2,
		Seeds:          []string{"https://a.test/"},
	}, fetcher, false)

	execute(t, uc)

	if n := fetcher.total("/robots.txt"); n != 2 {
		t.Errorf("fetched %d urls, want 2", n)
	}
}

func TestCrawlFetchErrorIsRecorded(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/": {err: crawlerr.NewAccess("connection refused", errors.New("dial tcp"))},
	})
	uc, writer := newTestUseCase(Config{
		NumWorkers: 1,
		Seeds:      []string{"https://a.test/"},
	}, fetcher, false)

	execute(t, uc)

	if len(writer.results) != 1 || writer.results[0].Status != entity.StatusFailed {
		t.Fatalf("results = %+v", writer.results)
	}
	if m := uc.GetMetrics(); m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d", m.ErrorCount)
	}
}

func TestCrawlFiltersAndPreviousSession(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/":      {status: 200, children: []string{"https://a.test/keep", "https://a.test/skip.png"}},
		"https://a.test/keep":  {status: 200},
		"https://a.test/older": {status: 200},
	})
	uc, writer := newTestUseCase(Config{
		SessionID:         "run2",
		PreviousSessionID: "run1",
		NumWorkers:        2,
		MaxDepth:          2,
		Seeds:             []string{"https://a.test/"},
		Exclude:           []string{`.*\.png`},
	}, fetcher, false)

	prev := entity.NewURLQueue("run1", "https://a.test/older")
	uc.Store().RecordResult("run1", entity.NewAccessResult(prev, &entity.ResponseData{StatusCode: 200}))

	execute(t, uc)

	want := []string{"https://a.test/", "https://a.test/keep", "https://a.test/older"}
	if got := writer.urls(); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("recorded = %v, want %v", got, want)
	}
}

func TestCrawlInvalidPattern(t *testing.T) {
	uc, writer := newTestUseCase(Config{
		Seeds:   []string{"https://a.test/"},
		Include: []string{"("},
	}, newFakeFetcher(nil), false)

	if err := uc.Execute(context.Background()); err == nil {
		t.Fatalf("Execute should fail on an invalid pattern")
	}
	if writer.closed != 1 {
		t.Errorf("writer should be closed on early failure")
	}
}

func TestCrawlNoSeeds(t *testing.T) {
	uc, _ := newTestUseCase(Config{Seeds: []string{"  "}}, newFakeFetcher(nil), false)
	if err := uc.Execute(context.Background()); err == nil {
		t.Errorf("Execute should fail without seeds")
	}
}

func TestCrawlCancel(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/": {status: 200},
	})
	uc, writer := newTestUseCase(Config{
		NumWorkers:  1,
		Seeds:       []string{"https://a.test/"},
		IdleTimeout: time.Hour,
	}, fetcher, false)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := uc.Execute(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute = %v, want deadline exceeded", err)
	}
	if writer.closed != 1 {
		t.Errorf("writer closed %d times, want 1", writer.closed)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	updates int
	urls    []string
}

func (o *recordingObserver) OnMetricsUpdate(*entity.Metrics) {
	o.mu.Lock()
	o.updates++
	o.mu.Unlock()
}

func (o *recordingObserver) AddURL(url string) {
	o.mu.Lock()
	o.urls = append(o.urls, url)
	o.mu.Unlock()
}

func TestCrawlNotifiesObservers(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{"https://a.test/": {status: 200}})
	uc, _ := newTestUseCase(Config{NumWorkers: 1, Seeds: []string{"https://a.test/"}}, fetcher, false)
	obs := &recordingObserver{}
	uc.RegisterMetricsObserver(obs)

	execute(t, uc)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.urls) != 1 || obs.urls[0] != "https://a.test/" {
		t.Errorf("observed urls = %v", obs.urls)
	}
	if obs.updates == 0 {
		t.Errorf("observer never received metrics")
	}
}

func TestCrawlHeadRequests(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://a.test/checked": {status: 200},
	})
	uc, writer := newTestUseCase(Config{
		SessionID:         "run2",
		PreviousSessionID: "run1",
		NumWorkers:        1,
	}, fetcher, false)

	prev := entity.NewURLQueue("run1", "https://a.test/checked")
	prev.Method = entity.MethodHead
	uc.Store().RecordResult("run1", entity.NewAccessResult(prev, &entity.ResponseData{StatusCode: 200}))

	execute(t, uc)

	if n := fetcher.count("HEAD https://a.test/checked"); n != 1 {
		t.Errorf("HEAD issued %d times, want 1", n)
	}
	if n := fetcher.count("https://a.test/checked"); n != 0 {
		t.Errorf("GET issued %d times, want 0", n)
	}
	if len(writer.results) != 1 || writer.results[0].Method != entity.MethodHead {
		t.Errorf("results = %+v", writer.results)
	}
}

func TestGetMetricsPreviewsQueue(t *testing.T) {
	uc, _ := newTestUseCase(Config{NumWorkers: 1}, newFakeFetcher(nil), false)
	for i := 0; i < previewSize+4; i++ {
		uc.store.Enqueue("test", entity.NewURLQueue("test", fmt.Sprintf("https://a.test/%d", i)))
	}
	uc.store.RecordResult("other", &entity.AccessResult{SessionID: "other", URL: "https://b.test/"})

	m := uc.GetMetrics()
	if m.QueueLength != previewSize+4 {
		t.Errorf("QueueLength = %d", m.QueueLength)
	}
	if len(m.NextURLs) != previewSize || m.NextURLs[0] != "https://a.test/0" {
		t.Errorf("NextURLs = %v", m.NextURLs)
	}
	if len(m.Sessions) != 2 {
		t.Fatalf("Sessions = %+v", m.Sessions)
	}
	if s := m.Sessions[0]; s.ID != "other" || s.Accessed != 1 || s.Queued != 0 {
		t.Errorf("Sessions[0] = %+v", s)
	}
	if s := m.Sessions[1]; s.ID != "test" || s.Queued != previewSize+4 || s.Seen != previewSize+4 {
		t.Errorf("Sessions[1] = %+v", s)
	}
}
