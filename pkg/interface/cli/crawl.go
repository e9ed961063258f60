package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/WangYihang/Crawl-Frontier/pkg/application"
	"github.com/WangYihang/Crawl-Frontier/pkg/config"
	"github.com/WangYihang/Crawl-Frontier/pkg/interface/presenter"
	"github.com/WangYihang/Crawl-Frontier/pkg/util"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// CrawlCommand runs a crawl session. Flags override the profile.
type CrawlCommand struct {
	app *App

	Input       string   `short:"i" long:"input" description:"Seed URL file, one per line (- for stdin)"`
	Seeds       []string `short:"s" long:"seed" description:"Seed URL, may be repeated"`
	Output      string   `short:"o" long:"output" description:"Access result file (.gz compresses, - for stdout)"`
	Session     string   `long:"session" description:"Session id (default: random UUID)"`
	Previous    string   `long:"previous-results" description:"Access result file of an earlier run to re-crawl"`
	PreviousID  string   `long:"previous-session" description:"Session to re-crawl from the previous results"`
	Workers     int      `short:"w" long:"workers" description:"Number of concurrent workers"`
	MaxDepth    int      `short:"d" long:"max-depth" default:"-1" description:"Maximum link depth from a seed"`
	MaxAccess   int64    `long:"max-access" description:"Stop after this many fetches"`
	Include     []string `long:"include" description:"Only crawl URLs fully matching this regexp, may be repeated"`
	Exclude     []string `long:"exclude" description:"Skip URLs fully matching this regexp, may be repeated"`
	HistoryFile string   `long:"history" description:"Bloom filter file of URLs fetched by earlier runs"`
	UserAgent   string   `short:"a" long:"user-agent" description:"User agent sent and matched against robots.txt"`
	NoRobots    bool     `long:"no-robots" description:"Ignore robots.txt"`
	NoSitemaps  bool     `long:"no-sitemaps" description:"Do not queue sitemaps listed in robots.txt"`
	MetricsAddr string   `long:"metrics-addr" description:"Serve Prometheus metrics on this address"`
	Dashboard   bool     `long:"dashboard" description:"Show interactive TUI dashboard"`
}

// Execute implements flags.Commander
func (c *CrawlCommand) Execute([]string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := c.app.newLogger(cfg)
	if c.Dashboard {
		// The TUI owns the terminal
		logger.SetOutput(io.Discard)
	}

	assembler := NewAssembler(cfg, logger)
	defer assembler.Close()

	useCase, err := assembler.AssembleUseCase()
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		server := util.NewMetricsServer(cfg.Metrics.Addr, assembler.Registry())
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer server.Close()
		logger.WithField("addr", cfg.Metrics.Addr).Info("serving metrics")
	}

	if c.Dashboard {
		err = c.runDashboard(useCase)
	} else {
		err = c.runConsole(useCase, cfg, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	presenter.PrintSummary(c.app.stdout, presenter.Summary{
		Metrics:     useCase.GetMetrics(),
		ResultsFile: cfg.Output.ResultsFile,
		HistoryFile: cfg.Frontier.HistoryFile,
	})
	return err
}

// apply copies the flags that were set over the profile
func (c *CrawlCommand) apply(cfg *config.Config) {
	if c.Input != "" {
		cfg.Crawl.SeedFile = c.Input
	}
	cfg.Crawl.Seeds = append(cfg.Crawl.Seeds, c.Seeds...)
	if c.Output != "" {
		cfg.Output.ResultsFile = c.Output
	}
	if c.Session != "" {
		cfg.Session.ID = c.Session
	}
	if c.Previous != "" {
		cfg.Session.PreviousResults = c.Previous
	}
	if c.PreviousID != "" {
		cfg.Session.PreviousID = c.PreviousID
	}
	if c.Workers > 0 {
		cfg.Crawl.Workers = c.Workers
	}
	if c.MaxDepth >= 0 {
		cfg.Crawl.MaxDepth = c.MaxDepth
	}
	if c.MaxAccess > 0 {
		cfg.Crawl.MaxAccessCount = c.MaxAccess
	}
	cfg.Frontier.Include = append(cfg.Frontier.Include, c.Include...)
	cfg.Frontier.Exclude = append(cfg.Frontier.Exclude, c.Exclude...)
	if c.HistoryFile != "" {
		cfg.Frontier.HistoryFile = c.HistoryFile
	}
	if c.UserAgent != "" {
		cfg.Robots.UserAgent = c.UserAgent
	}
	if c.NoRobots {
		cfg.Robots.Enabled = false
	}
	if c.NoSitemaps {
		cfg.Sitemap.Discover = false
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Addr = c.MetricsAddr
	}
}

// runDashboard runs the crawl behind the TUI. Quitting the TUI cancels the
// crawl.
func (c *CrawlCommand) runDashboard(useCase *application.CrawlUseCase) error {
	ctx, cancel := context.WithCancel(c.app.ctx)
	defer cancel()

	dashboard := presenter.NewDashboard()
	useCase.RegisterMetricsObserver(dashboard)
	p := tea.NewProgram(dashboard, tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		done <- useCase.Execute(ctx)
		p.Quit()
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-done
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	cancel()
	return <-done
}

// runConsole runs the crawl with a progress bar when stderr is a terminal
func (c *CrawlCommand) runConsole(useCase *application.CrawlUseCase, cfg *config.Config, logger *logrus.Logger) error {
	var progress *presenter.ConsoleProgress
	if isTerminal(c.app.stderr) {
		progress = presenter.NewConsoleProgress(c.app.stderr, cfg.Session.ID)
		useCase.RegisterMetricsObserver(progress)
	}

	logger.WithFields(logrus.Fields{
		"session": cfg.Session.ID,
		"workers": cfg.Crawl.Workers,
		"depth":   cfg.Crawl.MaxDepth,
	}).Info("starting crawl")
	err := useCase.Execute(c.app.ctx)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return err
	}
	logger.Info("crawl completed")
	return nil
}
