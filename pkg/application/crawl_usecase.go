package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/repository"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/service"
	"github.com/WangYihang/Crawl-Frontier/pkg/frontier"
	"github.com/WangYihang/Crawl-Frontier/pkg/sitemap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MetaSitemap marks a queued URL whose body should be parsed as a sitemap
const MetaSitemap = "sitemap"

const pollInterval = 50 * time.Millisecond

// CrawlUseCase orchestrates a crawl session over the frontier store
type CrawlUseCase struct {
	config Config

	store    *frontier.Store
	fetcher  service.Fetcher
	robots   *RobotsCache
	sitemaps *sitemap.Parser
	writer   repository.AccessResultWriter
	logger   *logrus.Logger
	prom     *crawlMetrics

	// State
	metrics          *entity.Metrics
	metricsLock      sync.RWMutex
	workers          []*Worker
	inFlight         atomic.Int64
	accessCount      atomic.Int64
	stopChan         chan struct{}
	stopOnce         sync.Once
	closeOnce        sync.Once
	wg               sync.WaitGroup
	metricsObservers []MetricsObserver
}

// Config holds the use case configuration
type Config struct {
	SessionID string
	// PreviousSessionID re-queues every URL fetched by that session
	PreviousSessionID string
	NumWorkers        int
	MaxDepth          int
	// MaxAccessCount stops the crawl after this many fetches; 0 is unlimited
	MaxAccessCount   int64
	UserAgent        string
	Seeds            []string
	Include          []string
	Exclude          []string
	DiscoverSitemaps bool
	IdleTimeout      time.Duration
}

// MetricsObserver observes metrics changes
type MetricsObserver interface {
	OnMetricsUpdate(metrics *entity.Metrics)
	AddURL(url string) // Notify when a URL has been fetched
}

// Option configures a CrawlUseCase
type Option func(*CrawlUseCase)

// WithLogger sets the use case logger
func WithLogger(logger *logrus.Logger) Option {
	return func(uc *CrawlUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

// WithMetrics registers the crawl collectors with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(uc *CrawlUseCase) {
		if err := uc.prom.register(reg); err != nil {
			uc.logger.WithError(err).Warn("crawl metrics not registered")
		}
	}
}

// NewCrawlUseCase creates a new crawl use case
func NewCrawlUseCase(
	config Config,
	store *frontier.Store,
	fetcher service.Fetcher,
	robotsCache *RobotsCache,
	sitemaps *sitemap.Parser,
	writer repository.AccessResultWriter,
	opts ...Option,
) *CrawlUseCase {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = time.Second
	}
	uc := &CrawlUseCase{
		config:           config,
		store:            store,
		fetcher:          fetcher,
		robots:           robotsCache,
		sitemaps:         sitemaps,
		writer:           writer,
		logger:           logrus.StandardLogger(),
		prom:             newCrawlMetrics(),
		metrics:          &entity.Metrics{SessionID: config.SessionID, TotalWorkers: config.NumWorkers},
		stopChan:         make(chan struct{}),
		metricsObservers: make([]MetricsObserver, 0),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// RegisterMetricsObserver registers a metrics observer
func (uc *CrawlUseCase) RegisterMetricsObserver(observer MetricsObserver) {
	uc.metricsObservers = append(uc.metricsObservers, observer)
}

// notifyMetricsObservers notifies all registered observers
func (uc *CrawlUseCase) notifyMetricsObservers() {
	if len(uc.metricsObservers) == 0 {
		return
	}
	metrics := uc.GetMetrics()
	for _, observer := range uc.metricsObservers {
		observer.OnMetricsUpdate(metrics)
	}
}

// Execute runs the crawl until the frontier drains, the access limit is
// reached, or ctx is cancelled
func (uc *CrawlUseCase) Execute(ctx context.Context) error {
	uc.metricsLock.Lock()
	uc.metrics.StartTime = time.Now()
	uc.metricsLock.Unlock()

	if err := uc.applyPatterns(); err != nil {
		uc.closeWriter()
		return fmt.Errorf("failed to apply url patterns: %w", err)
	}

	uc.seed()
	if uc.store.Len(uc.config.SessionID) == 0 && !uc.config.DiscoverSitemaps {
		uc.closeWriter()
		return fmt.Errorf("no seed URLs admitted to session %s", uc.config.SessionID)
	}

	if uc.config.DiscoverSitemaps {
		uc.inFlight.Add(1)
		go func() {
			defer uc.inFlight.Add(-1)
			uc.discoverSitemaps(ctx)
		}()
	}

	uc.startWorkers(ctx)
	go uc.updateMetricsPeriodically(ctx)

	select {
	case <-ctx.Done():
		uc.Stop()
		return ctx.Err()
	case <-uc.waitForCompletion():
		uc.signalStop()
		uc.closeWriter()
		uc.notifyMetricsObservers()
		return nil
	}
}

// applyPatterns installs the configured include/exclude expressions
func (uc *CrawlUseCase) applyPatterns() error {
	var errs []error
	for _, expr := range uc.config.Include {
		if err := uc.store.AddIncludePattern(uc.config.SessionID, expr); err != nil {
			errs = append(errs, err)
		}
	}
	for _, expr := range uc.config.Exclude {
		if err := uc.store.AddExcludePattern(uc.config.SessionID, expr); err != nil {
			errs = append(errs, err)
		}
	}
	return crawlerr.Join("invalid url patterns", errs)
}

// seed enqueues the seed URLs and, when configured, the URLs fetched by the
// previous session
func (uc *CrawlUseCase) seed() {
	id := uc.config.SessionID
	if prev := uc.config.PreviousSessionID; prev != "" {
		n := uc.store.GenerateURLQueues(prev, id)
		uc.incrementEnqueued(int64(n))
		uc.logger.WithFields(logrus.Fields{
			"session":  id,
			"previous": prev,
			"urls":     n,
		}).Info("re-queued urls from previous session")
	}

	recs := make([]*entity.URLQueue, 0, len(uc.config.Seeds))
	for _, u := range uc.config.Seeds {
		recs = append(recs, entity.NewURLQueue(id, u))
	}
	n := uc.store.OfferAll(id, recs)
	uc.incrementEnqueued(int64(n))
	uc.logger.WithFields(logrus.Fields{
		"session": id,
		"seeds":   len(recs),
		"queued":  n,
	}).Info("seeded frontier")
}

// discoverSitemaps reads robots.txt for every seed origin in parallel and
// queues the sitemaps it lists
func (uc *CrawlUseCase) discoverSitemaps(ctx context.Context) {
	origins := make([]string, 0)
	seen := make(map[string]bool)
	for _, u := range uc.config.Seeds {
		if origin, ok := originOf(strings.TrimSpace(u)); ok && !seen[origin] {
			seen[origin] = true
			origins = append(origins, origin)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(uc.config.NumWorkers)
	for _, origin := range origins {
		g.Go(func() error {
			policy, err := uc.robots.Policy(ctx, origin+"/")
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			recs := make([]*entity.URLQueue, 0)
			for _, loc := range policy.Sitemaps() {
				rec := entity.NewURLQueue(uc.config.SessionID, loc)
				rec.ParentURL = origin + "/robots.txt"
				rec.MetaData = MetaSitemap
				recs = append(recs, rec)
			}
			n := uc.store.OfferAll(uc.config.SessionID, recs)
			uc.incrementEnqueued(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	if err := crawlerr.Join("robots lookups failed", errs); err != nil {
		uc.logger.WithError(crawlerr.NewSitemaps("sitemap discovery incomplete", err)).Warn("sitemap discovery")
	}
}

// updateMetricsPeriodically periodically updates and notifies observers
func (uc *CrawlUseCase) updateMetricsPeriodically(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-uc.stopChan:
			return
		case <-ticker.C:
			uc.notifyMetricsObservers()
		}
	}
}

// startWorkers starts all worker goroutines
func (uc *CrawlUseCase) startWorkers(ctx context.Context) {
	uc.workers = make([]*Worker, uc.config.NumWorkers)
	for i := 0; i < uc.config.NumWorkers; i++ {
		worker := &Worker{
			id:       i,
			useCase:  uc,
			stopChan: uc.stopChan,
		}
		uc.workers[i] = worker
		uc.wg.Add(1)
		go worker.Run(ctx, &uc.wg)
	}
}

// idle reports whether the frontier has had no pending or in-flight work for
// the idle timeout. idleSince is owned by the calling worker.
func (uc *CrawlUseCase) idle(idleSince *time.Time) bool {
	if uc.inFlight.Load() > 0 || uc.store.Len(uc.config.SessionID) > 0 {
		*idleSince = time.Time{}
		return false
	}
	if idleSince.IsZero() {
		*idleSince = time.Now()
	}
	return time.Since(*idleSince) >= uc.config.IdleTimeout
}

// claimAccess counts a fetch against MaxAccessCount, stopping the crawl once
// the limit is passed
func (uc *CrawlUseCase) claimAccess() bool {
	if uc.config.MaxAccessCount <= 0 {
		return true
	}
	if uc.accessCount.Add(1) > uc.config.MaxAccessCount {
		uc.signalStop()
		return false
	}
	return true
}

// record stores a completed fetch and writes it out
func (uc *CrawlUseCase) record(result *entity.AccessResult) {
	uc.store.RecordResult(uc.config.SessionID, result)
	if err := uc.writer.Write(result); err != nil {
		uc.logger.WithError(err).WithField("url", result.URL).Warn("failed to write access result")
	}
	uc.prom.fetches.WithLabelValues(statusLabel(result.Status)).Inc()
	uc.prom.fetchSeconds.Observe(result.ExecutionTime.Seconds())

	uc.metricsLock.Lock()
	if result.Status == entity.StatusOK {
		uc.metrics.SuccessCount++
	} else {
		uc.metrics.ErrorCount++
	}
	uc.metricsLock.Unlock()

	for _, observer := range uc.metricsObservers {
		observer.AddURL(result.URL)
	}
}

// offer queues the children that are within the depth limit
func (uc *CrawlUseCase) offer(children []*entity.URLQueue) int {
	kept := make([]*entity.URLQueue, 0, len(children))
	for _, child := range children {
		if child.Depth <= uc.config.MaxDepth {
			kept = append(kept, child)
		}
	}
	n := uc.store.OfferAll(uc.config.SessionID, kept)
	uc.incrementEnqueued(int64(n))
	return n
}

// waitForCompletion waits for all workers to complete
func (uc *CrawlUseCase) waitForCompletion() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	return done
}

func (uc *CrawlUseCase) signalStop() {
	uc.stopOnce.Do(func() { close(uc.stopChan) })
}

func (uc *CrawlUseCase) closeWriter() {
	uc.closeOnce.Do(func() {
		if err := uc.writer.Flush(); err != nil {
			uc.logger.WithError(err).Warn("failed to flush access results")
		}
		if err := uc.writer.Close(); err != nil {
			uc.logger.WithError(err).Warn("failed to close access results")
		}
	})
}

// Stop stops the crawl use case
func (uc *CrawlUseCase) Stop() {
	uc.signalStop()
	uc.wg.Wait()
	uc.closeWriter()
}

// Store returns the frontier the use case crawls
func (uc *CrawlUseCase) Store() *frontier.Store {
	return uc.store
}

// GetMetrics returns the current metrics
func (uc *CrawlUseCase) GetMetrics() *entity.Metrics {
	uc.metricsLock.RLock()
	metrics := *uc.metrics
	uc.metricsLock.RUnlock()

	metrics.QueueLength = uc.store.Len(uc.config.SessionID)
	metrics.Sessions = uc.store.Stats()
	metrics.NextURLs = uc.nextURLs(previewSize)
	metrics.LastUpdateTime = time.Now()

	activeWorkers := 0
	var activeURLs []string
	for _, worker := range uc.workers {
		if worker != nil && worker.IsActive() {
			activeWorkers++
			if u := worker.GetCurrentURL(); u != "" {
				activeURLs = append(activeURLs, u)
			}
		}
	}
	metrics.ActiveWorkers = activeWorkers
	metrics.ActiveURLs = activeURLs

	return &metrics
}

const previewSize = 8

// nextURLs returns up to n URLs from the head of the session queue
func (uc *CrawlUseCase) nextURLs(n int) []string {
	items := uc.store.Queue(uc.config.SessionID).Items()
	if len(items) > n {
		items = items[:n]
	}
	urls := make([]string, 0, len(items))
	for _, rec := range items {
		urls = append(urls, rec.URL)
	}
	return urls
}

// incrementRequests increments the request counter
func (uc *CrawlUseCase) incrementRequests() {
	uc.metricsLock.Lock()
	uc.metrics.Requests++
	uc.metricsLock.Unlock()
}

// incrementEnqueued increments the enqueued counter
func (uc *CrawlUseCase) incrementEnqueued(n int64) {
	if n == 0 {
		return
	}
	uc.metricsLock.Lock()
	uc.metrics.URLsEnqueued += n
	uc.metricsLock.Unlock()
}

// incrementProcessed increments the processed counter
func (uc *CrawlUseCase) incrementProcessed() {
	uc.metricsLock.Lock()
	uc.metrics.URLsProcessed++
	uc.metricsLock.Unlock()
}

// incrementRobotsDenied increments the robots denial counter
func (uc *CrawlUseCase) incrementRobotsDenied() {
	uc.prom.robotsDenied.Inc()
	uc.metricsLock.Lock()
	uc.metrics.RobotsDenied++
	uc.metricsLock.Unlock()
}

// incrementSitemapURLs increments the sitemap location counter
func (uc *CrawlUseCase) incrementSitemapURLs(n int64) {
	uc.prom.sitemapURLs.Add(float64(n))
	uc.metricsLock.Lock()
	uc.metrics.SitemapURLs += n
	uc.metricsLock.Unlock()
}
