package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/WangYihang/Crawl-Frontier/pkg/application"
	"github.com/WangYihang/Crawl-Frontier/pkg/config"
	"github.com/WangYihang/Crawl-Frontier/pkg/dedup"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/frontier"
	"github.com/WangYihang/Crawl-Frontier/pkg/infrastructure/file"
	"github.com/WangYihang/Crawl-Frontier/pkg/infrastructure/http"
	"github.com/WangYihang/Crawl-Frontier/pkg/infrastructure/storage"
	"github.com/WangYihang/Crawl-Frontier/pkg/input"
	"github.com/WangYihang/Crawl-Frontier/pkg/sitemap"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// Assembler assembles all components for the application
type Assembler struct {
	config      *config.Config
	logger      *logrus.Logger
	registry    *prometheus.Registry
	persistence *dedup.PersistenceManager
}

// NewAssembler creates a new assembler
func NewAssembler(cfg *config.Config, logger *logrus.Logger) *Assembler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Assembler{config: cfg, logger: logger, registry: registry}
}

// Registry returns the registry every crawl collector is registered with
func (a *Assembler) Registry() *prometheus.Registry {
	return a.registry
}

// AssembleUseCase assembles the crawl use case with all dependencies
func (a *Assembler) AssembleUseCase() (*application.CrawlUseCase, error) {
	cfg := a.config
	if cfg.Session.ID == "" {
		cfg.Session.ID = uuid.NewString()
	}

	seeds, err := a.loadSeeds()
	if err != nil {
		return nil, fmt.Errorf("failed to load seeds: %w", err)
	}

	storeOpts := []frontier.Option{
		frontier.WithLogger(a.logger),
		frontier.WithMetrics(a.registry),
	}
	if cfg.Frontier.HistoryFile != "" {
		history, err := dedup.Open(cfg.Frontier.HistoryFile, cfg.Frontier.HistorySize, cfg.Frontier.HistoryFP)
		if err != nil {
			return nil, err
		}
		a.logger.WithFields(logrus.Fields{
			"path": cfg.Frontier.HistoryFile,
			"urls": history.ApproximateSize(),
		}).Info("loaded crawl history")
		a.persistence = dedup.NewPersistenceManager(history, cfg.Frontier.HistoryFile, cfg.Frontier.HistorySaveInterval, a.logger)
		a.persistence.Start()
		storeOpts = append(storeOpts, frontier.WithHistory(history))
	}
	store := frontier.NewStore(storeOpts...)

	previousID, err := a.loadPreviousResults(store)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 && previousID == "" {
		return nil, fmt.Errorf("no seed URLs provided")
	}

	webFetcher := http.NewFetcher(http.Config{
		Timeout:         cfg.Crawl.Timeout,
		MaxResponseSize: cfg.Crawl.MaxResponseSize,
		UserAgent:       cfg.Robots.UserAgent,
	})
	localFetcher := file.NewFetcher(cfg.Crawl.MaxResponseSize)
	fetcher := &schemeRouter{web: webFetcher, local: localFetcher}

	robotsCache := application.NewRobotsCache(fetcher, cfg.Robots.Charset, cfg.Robots.Enabled, a.logger)
	sitemaps := sitemap.NewParser(
		sitemap.WithValidation(cfg.Sitemap.Validate),
		sitemap.WithMaxSize(cfg.Sitemap.MaxSize),
		sitemap.WithLogger(a.logger),
	)

	resultWriter, err := storage.NewResultWriter(cfg.Output.ResultsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create result writer: %w", err)
	}

	useCase := application.NewCrawlUseCase(
		application.Config{
			SessionID:         cfg.Session.ID,
			PreviousSessionID: previousID,
			NumWorkers:        cfg.Crawl.Workers,
			MaxDepth:          cfg.Crawl.MaxDepth,
			MaxAccessCount:    cfg.Crawl.MaxAccessCount,
			UserAgent:         cfg.Robots.UserAgent,
			Seeds:             seeds,
			Include:           cfg.Frontier.Include,
			Exclude:           cfg.Frontier.Exclude,
			DiscoverSitemaps:  cfg.Sitemap.Discover,
			IdleTimeout:       cfg.Crawl.IdleTimeout,
		},
		store,
		fetcher,
		robotsCache,
		sitemaps,
		resultWriter,
		application.WithLogger(a.logger),
		application.WithMetrics(a.registry),
	)

	return useCase, nil
}

// Close saves the crawl history one last time
func (a *Assembler) Close() {
	if a.persistence != nil {
		a.persistence.Stop()
	}
}

// loadSeeds merges the profile seeds with the seed file
func (a *Assembler) loadSeeds() ([]string, error) {
	loader := input.NewLoader(a.logger)
	var seeds []string
	for _, s := range a.config.Crawl.Seeds {
		u, ok := input.Normalize(s)
		if !ok {
			a.logger.WithField("seed", s).Warn("skipping invalid seed")
			continue
		}
		seeds = append(seeds, u)
	}
	if a.config.Crawl.SeedFile != "" {
		loaded, err := loader.Load(a.config.Crawl.SeedFile)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, loaded...)
	}
	return seeds, nil
}

// loadPreviousResults puts an earlier run's access results into the store
// and returns the session to re-crawl from
func (a *Assembler) loadPreviousResults(store *frontier.Store) (string, error) {
	path := a.config.Session.PreviousResults
	if path == "" {
		return "", nil
	}
	results, err := storage.ReadResults(path)
	if err != nil {
		return "", fmt.Errorf("failed to load previous results: %w", err)
	}

	previousID := a.config.Session.PreviousID
	loaded := 0
	for _, r := range results {
		if previousID == "" {
			previousID = r.SessionID
		}
		if r.SessionID != previousID {
			continue
		}
		store.AccessResults(previousID).Put(r)
		loaded++
	}
	if previousID == a.config.Session.ID {
		return "", fmt.Errorf("previous session %s is the current session", previousID)
	}
	a.logger.WithFields(logrus.Fields{
		"path":     path,
		"previous": previousID,
		"results":  loaded,
	}).Info("loaded previous session")
	return previousID, nil
}

// schemeRouter sends file URLs to local and everything else to web
type schemeRouter struct {
	web   *http.Fetcher
	local *file.Fetcher
}

func isFileURL(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), "file:")
}

// Get implements service.Fetcher
func (r *schemeRouter) Get(ctx context.Context, rawURL string) (entity.FetchResult, error) {
	if isFileURL(rawURL) {
		return r.local.Get(ctx, rawURL)
	}
	return r.web.Get(ctx, rawURL)
}

// Head implements service.HeadFetcher
func (r *schemeRouter) Head(ctx context.Context, rawURL string) (entity.FetchResult, error) {
	if isFileURL(rawURL) {
		return r.local.Head(ctx, rawURL)
	}
	return r.web.Head(ctx, rawURL)
}
