package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/WangYihang/Crawl-Frontier/pkg/config"
	"github.com/WangYihang/Crawl-Frontier/pkg/logging"
	"github.com/jessevdk/go-flags"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Options are the flags shared by every command
type Options struct {
	ConfigFile string `short:"c" long:"config" description:"YAML profile to load before applying flags"`
	LogLevel   string `long:"log-level" description:"Log level (trace, debug, info, warn, error)"`
	LogJSON    bool   `long:"log-json" description:"Log as JSON"`
}

// App is the command line entry point
type App struct {
	Options

	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

// NewApp creates an app writing to stdout and stderr
func NewApp(ctx context.Context, stdout, stderr io.Writer) *App {
	return &App{ctx: ctx, stdout: stdout, stderr: stderr}
}

// Run parses args and executes the selected command
func (a *App) Run(args []string) error {
	parser := flags.NewParser(&a.Options, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "crawl-frontier"

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"robots", "Evaluate a robots.txt", "Parse a robots.txt from a file or URL and check paths against it.", &RobotsCommand{app: a}},
		{"sitemap", "Parse a sitemap", "Parse an XML, gzipped or plain-text sitemap from a file or URL.", &SitemapCommand{app: a}},
		{"crawl", "Run a crawl session", "Crawl seed URLs while honoring robots.txt, sitemaps and URL filters.", &CrawlCommand{app: a}},
		{"version", "Print version information", "Print version information.", &VersionCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return err
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			fmt.Fprintln(a.stdout, err)
			return nil
		}
		return err
	}
	return nil
}

// loadConfig reads the profile, if any, and applies the global flags
func (a *App) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if a.ConfigFile != "" {
		loaded, err := config.Load(a.ConfigFile)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, fmt.Errorf("failed to load %s: %w", a.ConfigFile, err)
			}
			return nil, err
		}
		cfg = loaded
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	if a.LogJSON {
		cfg.Log.JSON = true
	}
	return cfg, nil
}

func (a *App) newLogger(cfg *config.Config) *logrus.Logger {
	return logging.NewLogger(logging.Options{
		Level:  cfg.Log.Level,
		JSON:   cfg.Log.JSON,
		Output: a.stderr,
	})
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
