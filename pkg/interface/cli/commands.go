package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WangYihang/Crawl-Frontier/pkg/common"
	"github.com/WangYihang/Crawl-Frontier/pkg/robots"
	"github.com/WangYihang/Crawl-Frontier/pkg/sitemap"
)

// RobotsCommand parses a robots.txt and evaluates paths against it
type RobotsCommand struct {
	app *App

	UserAgent string   `short:"a" long:"user-agent" description:"User agent to evaluate paths for (default: profile user agent)"`
	Charset   string   `long:"charset" description:"Charset of the file (default: response charset or profile charset)"`
	Paths     []string `short:"p" long:"path" description:"Path to check, may be repeated"`

	Args struct {
		Source string `positional-arg-name:"SOURCE" description:"robots.txt file, URL or - for stdin"`
	} `positional-args:"yes" required:"yes"`
}

// Execute implements flags.Commander
func (c *RobotsCommand) Execute([]string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	logger := c.app.newLogger(cfg)

	src, err := c.app.openSource(c.Args.Source, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	charset := cfg.Robots.Charset
	if src.charset != "" {
		charset = src.charset
	}
	if c.Charset != "" {
		charset = c.Charset
	}
	agent := cfg.Robots.UserAgent
	if c.UserAgent != "" {
		agent = c.UserAgent
	}

	policy := robots.Parse(src, charset, true, robots.WithLogger(logger))
	out := c.app.stdout

	for _, d := range policy.Directives() {
		fmt.Fprintf(out, "User-agent: %s\n", d.UserAgent())
		for _, p := range d.AllowPatterns() {
			fmt.Fprintf(out, "  Allow: %s\n", p)
		}
		for _, p := range d.DisallowPatterns() {
			fmt.Fprintf(out, "  Disallow: %s\n", p)
		}
		if d.CrawlDelay() > 0 {
			fmt.Fprintf(out, "  Crawl-delay: %d\n", d.CrawlDelay())
		}
	}
	for _, s := range policy.Sitemaps() {
		fmt.Fprintf(out, "Sitemap: %s\n", s)
	}

	if len(c.Paths) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\n%s (crawl-delay %ds)\n", agent, policy.CrawlDelay(agent))
	for _, p := range c.Paths {
		verdict := "DENY"
		if policy.Allows(p, agent) {
			verdict = "ALLOW"
		}
		fmt.Fprintf(out, "  %-5s %s\n", verdict, p)
	}
	return nil
}

// SitemapCommand parses a sitemap and lists its entries
type SitemapCommand struct {
	app *App

	Validate bool `long:"validate" description:"Check entries against the sitemap protocol"`
	JSON     bool `long:"json" description:"Print the parsed sitemap as JSON"`

	Args struct {
		Source string `positional-arg-name:"SOURCE" description:"Sitemap file, URL or - for stdin"`
	} `positional-args:"yes" required:"yes"`
}

// Execute implements flags.Commander
func (c *SitemapCommand) Execute([]string) error {
	cfg, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	logger := c.app.newLogger(cfg)

	src, err := c.app.openSource(c.Args.Source, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	parser := sitemap.NewParser(
		sitemap.WithValidation(c.Validate || cfg.Sitemap.Validate),
		sitemap.WithMaxSize(cfg.Sitemap.MaxSize),
		sitemap.WithLogger(logger),
	)
	collection, err := parser.Parse(src)
	if err != nil {
		return err
	}

	out := c.app.stdout
	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(collection)
	}

	fmt.Fprintf(out, "%s: %d entries\n", collection.Kind, len(collection.Entries))
	invalid := 0
	for _, e := range collection.Entries {
		if err := parser.ValidateEntry(e); err != nil {
			invalid++
			fmt.Fprintf(out, "! %s (%s)\n", e.Loc, strings.ReplaceAll(err.Error(), "\n", "; "))
			continue
		}
		fmt.Fprintf(out, "  %s\n", e.Loc)
	}
	if invalid > 0 {
		fmt.Fprintf(out, "%d invalid entries\n", invalid)
	}
	return nil
}

// VersionCommand prints build information
type VersionCommand struct {
	app *App
}

// Execute implements flags.Commander
func (c *VersionCommand) Execute([]string) error {
	fmt.Fprintln(c.app.stdout, common.PV.String())
	return nil
}
