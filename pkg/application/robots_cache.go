package application

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/service"
	"github.com/WangYihang/Crawl-Frontier/pkg/robots"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// RobotsCache fetches robots.txt once per origin and paces requests to each
// origin by its crawl-delay
type RobotsCache struct {
	fetcher service.Fetcher
	charset string
	enabled bool
	logger  *logrus.Logger

	policies sync.Map // origin -> *robots.Policy
	limiters sync.Map // origin -> *rate.Limiter
	group    singleflight.Group
}

// NewRobotsCache creates a robots cache. When enabled is false every URL is
// allowed and nothing is fetched.
func NewRobotsCache(fetcher service.Fetcher, charset string, enabled bool, logger *logrus.Logger) *RobotsCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RobotsCache{
		fetcher: fetcher,
		charset: charset,
		enabled: enabled,
		logger:  logger,
	}
}

// Policy returns the robots policy covering rawURL. A nil policy allows
// everything. When robots.txt could not be fetched an unrestricted policy is
// returned together with the error.
func (c *RobotsCache) Policy(ctx context.Context, rawURL string) (*robots.Policy, error) {
	if !c.enabled {
		return nil, nil
	}
	origin, ok := originOf(rawURL)
	if !ok {
		return nil, nil
	}
	if v, ok := c.policies.Load(origin); ok {
		return v.(*robots.Policy), nil
	}

	v, err, _ := c.group.Do(origin, func() (any, error) {
		if v, ok := c.policies.Load(origin); ok {
			return v, nil
		}
		policy, err := c.fetch(ctx, origin)
		if ctx.Err() == nil {
			c.policies.Store(origin, policy)
		}
		return policy, err
	})
	return v.(*robots.Policy), err
}

// fetch loads the origin's robots.txt, following up to robots.MaxRedirects
// redirects. Anything but a 2xx document yields an unrestricted policy.
func (c *RobotsCache) fetch(ctx context.Context, origin string) (*robots.Policy, error) {
	target, err := robots.URL(origin)
	if err != nil {
		return robots.NewPolicy(), nil
	}

	for hop := 0; hop <= robots.MaxRedirects; hop++ {
		res, err := c.fetcher.Get(ctx, target)
		if err != nil {
			return robots.NewPolicy(), crawlerr.NewAccess(fmt.Sprintf("failed to fetch %s", target), err)
		}

		switch r := res.(type) {
		case *entity.DocumentResult:
			defer r.Response.Close()
			return c.parse(target, r.Response), nil
		case *entity.ChildURLsResult:
			r.Response.Close()
			if len(r.URLs) == 0 {
				return robots.NewPolicy(), nil
			}
			c.logger.WithFields(logrus.Fields{
				"url":      target,
				"location": r.URLs[0],
			}).Debug("following robots.txt redirect")
			target = r.URLs[0]
		default:
			return robots.NewPolicy(), nil
		}
	}

	c.logger.WithField("origin", origin).Debug("too many robots.txt redirects, crawling unrestricted")
	return robots.NewPolicy(), nil
}

func (c *RobotsCache) parse(robotsURL string, resp *entity.ResponseData) *robots.Policy {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"url":    robotsURL,
			"status": resp.StatusCode,
		}).Debug("no robots.txt, crawling unrestricted")
		return robots.NewPolicy()
	}
	charset := resp.Charset
	if charset == "" {
		charset = c.charset
	}
	policy := robots.Parse(resp.Body, charset, true, robots.WithLogger(c.logger))
	c.logger.WithFields(logrus.Fields{
		"url":        robotsURL,
		"directives": len(policy.Directives()),
		"sitemaps":   len(policy.Sitemaps()),
	}).Debug("robots.txt loaded")
	return policy
}

// Wait blocks until a request to rawURL's origin respects delaySeconds
func (c *RobotsCache) Wait(ctx context.Context, rawURL string, delaySeconds int) error {
	if delaySeconds <= 0 {
		return nil
	}
	origin, ok := originOf(rawURL)
	if !ok {
		return nil
	}
	v, _ := c.limiters.LoadOrStore(origin, rate.NewLimiter(rate.Every(time.Duration(delaySeconds)*time.Second), 1))
	return v.(*rate.Limiter).Wait(ctx)
}

// originOf returns scheme://host for http(s) URLs
func originOf(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

// requestPath is the path and query a robots rule is matched against
func requestPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
