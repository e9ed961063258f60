package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the profile file does not exist
var ErrConfigNotFound = errors.New("configuration file not found")

// Config holds all configuration
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Robots   RobotsConfig   `yaml:"robots"`
	Sitemap  SitemapConfig  `yaml:"sitemap"`
	Frontier FrontierConfig `yaml:"frontier"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type SessionConfig struct {
	// ID of the crawl session; generated when empty
	ID string `yaml:"id"`
	// PreviousResults is an access result file from an earlier run whose URLs
	// are queued again
	PreviousResults string `yaml:"previous_results"`
	// PreviousID picks one session out of PreviousResults; defaults to the
	// first session found there
	PreviousID string `yaml:"previous_id"`
}

type RobotsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	UserAgent string `yaml:"user_agent" validate:"required"`
	Charset   string `yaml:"charset"`
}

type SitemapConfig struct {
	// Discover enqueues the sitemaps listed in each seed host's robots.txt
	Discover bool  `yaml:"discover"`
	Validate bool  `yaml:"validate"`
	MaxSize  int64 `yaml:"max_size" validate:"gt=0"`
}

type FrontierConfig struct {
	Include             []string      `yaml:"include"`
	Exclude             []string      `yaml:"exclude"`
	HistoryFile         string        `yaml:"history_file"`
	HistorySize         uint          `yaml:"history_size" validate:"gt=0"`
	HistoryFP           float64       `yaml:"history_fp" validate:"gt=0,lt=1"`
	HistorySaveInterval time.Duration `yaml:"history_save_interval" validate:"gt=0"`
}

type CrawlConfig struct {
	Seeds []string `yaml:"seeds"`
	// SeedFile lists one seed per line; "-" reads stdin
	SeedFile        string        `yaml:"seed_file"`
	Workers         int           `yaml:"workers" validate:"gt=0"`
	MaxDepth        int           `yaml:"max_depth" validate:"gte=0"`
	MaxAccessCount  int64         `yaml:"max_access_count" validate:"gte=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxResponseSize int64         `yaml:"max_response_size" validate:"gt=0"`
	// IdleTimeout ends the crawl once every queue has stayed empty this long
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gt=0"`
}

type OutputConfig struct {
	ResultsFile string `yaml:"results_file" validate:"required"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the built-in profile
func Default() *Config {
	return &Config{
		Robots: RobotsConfig{
			Enabled:   true,
			UserAgent: "CrawlFrontier/1.0",
			Charset:   "UTF-8",
		},
		Sitemap: SitemapConfig{
			Discover: true,
			MaxSize:  50 << 20,
		},
		Frontier: FrontierConfig{
			HistorySize:         1000000,
			HistoryFP:           0.01,
			HistorySaveInterval: time.Minute,
		},
		Crawl: CrawlConfig{
			Workers:         8,
			MaxDepth:        3,
			Timeout:         10 * time.Second,
			MaxResponseSize: 10 << 20,
			IdleTimeout:     2 * time.Second,
		},
		Output: OutputConfig{ResultsFile: "results.jsonl"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads a YAML profile over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("failed to parse %s", path), err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return crawlerr.New(crawlerr.KindConfig, "invalid configuration", err)
	}
	causes := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		causes = append(causes, fmt.Errorf("%s: failed %q check (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
	}
	return crawlerr.New(crawlerr.KindConfig, "invalid configuration", causes...)
}

// fieldPath drops the root struct name from the validator namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
