package application

import (
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
)

type crawlMetrics struct {
	fetches      *prometheus.CounterVec
	fetchSeconds prometheus.Histogram
	robotsDenied prometheus.Counter
	sitemapURLs  prometheus.Counter
}

func newCrawlMetrics() *crawlMetrics {
	return &crawlMetrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "fetches_total",
			Help:      "Fetches completed, by access status.",
		}, []string{"status"}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crawler",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching a URL.",
			Buckets:   prometheus.DefBuckets,
		}),
		robotsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "robots_denied_total",
			Help:      "URLs skipped because robots.txt disallows them.",
		}),
		sitemapURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "sitemap_urls_total",
			Help:      "Locations read from sitemaps.",
		}),
	}
}

func (m *crawlMetrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.fetches, m.fetchSeconds, m.robotsDenied, m.sitemapURLs} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func statusLabel(status int) string {
	switch status {
	case entity.StatusOK:
		return "ok"
	case entity.StatusNotFound:
		return "not_found"
	default:
		return "failed"
	}
}
