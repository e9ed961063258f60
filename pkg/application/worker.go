package application

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/service"
	"github.com/WangYihang/Crawl-Frontier/pkg/sitemap"
	"github.com/sirupsen/logrus"
)

// Worker fetches URLs dequeued from the frontier
type Worker struct {
	id       int
	useCase  *CrawlUseCase
	stopChan <-chan struct{}

	currentURL atomic.Value // stores string
	isActive   atomic.Bool
}

// Run starts the worker processing loop. It returns when the crawl is
// stopped or the frontier stays idle for the idle timeout.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	uc := w.useCase
	var idleSince time.Time
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		// Count the dequeue as in flight before it happens so idle() never
		// sees an empty queue while a URL is on its way to a worker.
		uc.inFlight.Add(1)
		rec, ok := uc.store.Dequeue(uc.config.SessionID)
		if !ok {
			uc.inFlight.Add(-1)
			if uc.idle(&idleSince) {
				return
			}
			select {
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		idleSince = time.Time{}
		w.processURL(ctx, rec)
		uc.inFlight.Add(-1)
	}
}

// IsActive returns whether the worker is currently processing a URL
func (w *Worker) IsActive() bool {
	return w.isActive.Load()
}

// GetCurrentURL returns the URL currently being processed
func (w *Worker) GetCurrentURL() string {
	if v := w.currentURL.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// processURL checks robots, fetches rec and feeds the outcome back into the
// frontier
func (w *Worker) processURL(ctx context.Context, rec *entity.URLQueue) {
	uc := w.useCase
	w.isActive.Store(true)
	w.currentURL.Store(rec.URL)
	defer func() {
		w.isActive.Store(false)
		w.currentURL.Store("")
		uc.incrementProcessed()
	}()

	log := uc.logger.WithFields(logrus.Fields{
		"worker": w.id,
		"url":    rec.URL,
		"depth":  rec.Depth,
	})

	if rec.Depth > uc.config.MaxDepth {
		return
	}

	policy, err := uc.robots.Policy(ctx, rec.URL)
	if err != nil {
		log.WithError(err).Debug("robots.txt unavailable")
	}
	if !policy.Allows(requestPath(rec.URL), uc.config.UserAgent) {
		uc.incrementRobotsDenied()
		log.Debug("disallowed by robots.txt")
		return
	}
	if err := uc.robots.Wait(ctx, rec.URL, policy.CrawlDelay(uc.config.UserAgent)); err != nil {
		return
	}
	if !uc.claimAccess() {
		return
	}

	res, err := w.fetch(ctx, rec)
	uc.incrementRequests()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("fetch failed")
		result := entity.NewAccessResult(rec, nil)
		result.Status = entity.StatusFailed
		uc.record(result)
		return
	}

	switch r := res.(type) {
	case *entity.DocumentResult:
		defer r.Response.Close()
		children := w.readDocument(rec, r.Response, log)
		uc.record(entity.NewAccessResult(rec, r.Response))
		uc.offer(children)
	case *entity.ChildURLsResult:
		defer r.Response.Close()
		uc.record(entity.NewAccessResult(rec, r.Response))
		children := make([]*entity.URLQueue, 0, len(r.URLs))
		for _, u := range r.URLs {
			children = append(children, rec.Child(u))
		}
		uc.offer(children)
	}
}

// fetch issues rec's request. HEAD requests fall back to GET when the
// fetcher cannot do them.
func (w *Worker) fetch(ctx context.Context, rec *entity.URLQueue) (entity.FetchResult, error) {
	if rec.Method == entity.MethodHead {
		if hf, ok := w.useCase.fetcher.(service.HeadFetcher); ok {
			return hf.Head(ctx, rec.URL)
		}
	}
	return w.useCase.fetcher.Get(ctx, rec.URL)
}

// readDocument consumes the body. Sitemaps are parsed into child requests;
// any other body is drained so its length is known.
func (w *Worker) readDocument(rec *entity.URLQueue, resp *entity.ResponseData, log *logrus.Entry) []*entity.URLQueue {
	if resp.Body == nil {
		return nil
	}
	if rec.MetaData != MetaSitemap || entity.StatusForCode(resp.StatusCode) != entity.StatusOK {
		n, _ := io.Copy(io.Discard, resp.Body)
		if resp.ContentLength < 0 {
			resp.ContentLength = n
		}
		return nil
	}

	collection, err := w.useCase.sitemaps.Parse(resp.Body)
	if err != nil {
		log.WithError(err).Warn("unreadable sitemap")
		return nil
	}
	w.useCase.incrementSitemapURLs(int64(len(collection.Entries)))
	log.WithFields(logrus.Fields{
		"kind":    collection.Kind.String(),
		"entries": len(collection.Entries),
	}).Debug("sitemap parsed")
	return sitemapChildren(rec, collection)
}

// sitemapChildren turns sitemap entries into child requests. Index entries
// stay marked as sitemaps; page entries carry their lastmod and priority.
func sitemapChildren(rec *entity.URLQueue, c *sitemap.Collection) []*entity.URLQueue {
	children := make([]*entity.URLQueue, 0, len(c.Entries))
	for _, e := range c.Entries {
		child := rec.Child(e.Loc)
		if c.IsIndex() {
			child.MetaData = MetaSitemap
		}
		if t, ok := parseLastMod(e.LastMod); ok {
			child.LastModified = &t
		}
		if p, err := strconv.ParseFloat(strings.TrimSpace(e.Priority), 64); err == nil && p >= 0 && p <= 1 {
			child.Weight = p
		}
		children = append(children, child)
	}
	return children
}

var lastModLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00", "2006-01-02"}

func parseLastMod(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
