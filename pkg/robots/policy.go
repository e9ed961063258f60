package robots

import (
	"fmt"
	"strings"
)

// WildcardAgent is the user agent that applies to every crawler
const WildcardAgent = "*"

// Directive is the rule group for one user-agent pattern
type Directive struct {
	userAgent  string
	allows     []string
	disallows  []string
	crawlDelay int
}

// NewDirective creates an empty rule group
func NewDirective(userAgent string) *Directive {
	return &Directive{userAgent: strings.TrimSpace(userAgent)}
}

// UserAgent returns the user-agent pattern
func (d *Directive) UserAgent() string { return d.userAgent }

// CrawlDelay returns the delay in seconds
func (d *Directive) CrawlDelay() int { return d.crawlDelay }

// SetCrawlDelay sets the delay, ignoring negative values
func (d *Directive) SetCrawlDelay(seconds int) {
	if seconds >= 0 {
		d.crawlDelay = seconds
	}
}

// AddAllow appends an allow pattern unless already present
func (d *Directive) AddAllow(pattern string) {
	d.allows = appendUnique(d.allows, pattern)
}

// AddDisallow appends a disallow pattern unless already present
func (d *Directive) AddDisallow(pattern string) {
	d.disallows = appendUnique(d.disallows, pattern)
}

// AllowPatterns returns a copy of the allow patterns in declaration order
func (d *Directive) AllowPatterns() []string {
	return append([]string(nil), d.allows...)
}

// DisallowPatterns returns a copy of the disallow patterns in declaration order
func (d *Directive) DisallowPatterns() []string {
	return append([]string(nil), d.disallows...)
}

// Allows applies longest-match precedence to path. A disallow only wins when
// its match is strictly longer than the best allow match.
func (d *Directive) Allows(path string) bool {
	allowLen := longestMatch(path, d.allows)
	disallowLen := longestMatch(path, d.disallows)
	return disallowLen <= allowLen
}

func longestMatch(path string, patterns []string) int {
	best := -1
	for _, p := range patterns {
		if ok, n := Match(path, p); ok && n > best {
			best = n
		}
	}
	return best
}

// String implements fmt.Stringer
func (d *Directive) String() string {
	return fmt.Sprintf("Directive{userAgent=%s, allow=%v, disallow=%v, crawlDelay=%d}",
		d.userAgent, d.allows, d.disallows, d.crawlDelay)
}

// Policy is a parsed robots.txt. It is read-only once returned by Parse and
// may be shared between goroutines. A nil *Policy places no restrictions.
type Policy struct {
	directives []*Directive
	byAgent    map[string]*Directive
	sitemaps   []string
	seenMaps   map[string]struct{}
}

// NewPolicy creates an empty policy
func NewPolicy() *Policy {
	return &Policy{
		byAgent:  make(map[string]*Directive),
		seenMaps: make(map[string]struct{}),
	}
}

// AddDirective registers d, replacing any directive for the same user agent
func (p *Policy) AddDirective(d *Directive) {
	key := strings.ToLower(d.userAgent)
	if old, ok := p.byAgent[key]; ok {
		for i, existing := range p.directives {
			if existing == old {
				p.directives[i] = d
			}
		}
	} else {
		p.directives = append(p.directives, d)
	}
	p.byAgent[key] = d
}

// AddSitemap records a sitemap URL once, keeping the first position
func (p *Policy) AddSitemap(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	if _, ok := p.seenMaps[url]; ok {
		return
	}
	p.seenMaps[url] = struct{}{}
	p.sitemaps = append(p.sitemaps, url)
}

// Directive looks up the group declared for exactly userAgent, ignoring case
func (p *Policy) Directive(userAgent string) *Directive {
	if p == nil {
		return nil
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil
	}
	return p.byAgent[strings.ToLower(userAgent)]
}

// Directives returns the groups in declaration order
func (p *Policy) Directives() []*Directive {
	if p == nil {
		return nil
	}
	return append([]*Directive(nil), p.directives...)
}

// MatchedDirective selects the group that governs userAgent.
//
// An exact, case-insensitive name match always wins. Otherwise the group with
// the longest matching pattern is chosen: "*" matches every agent with length
// 0, patterns containing '*' are matched as globs against the agent, and plain
// names match when they occur anywhere in the agent string. Ties go to the
// first declared group. A blank agent only matches "*".
func (p *Policy) MatchedDirective(userAgent string) *Directive {
	if p == nil {
		return nil
	}
	userAgent = strings.ToLower(strings.TrimSpace(userAgent))
	if userAgent == "" {
		return p.byAgent[WildcardAgent]
	}
	if d, ok := p.byAgent[userAgent]; ok {
		return d
	}

	var best *Directive
	bestLen := -1
	for _, d := range p.directives {
		if ok, n := agentMatch(userAgent, strings.ToLower(d.userAgent)); ok && n > bestLen {
			best, bestLen = d, n
		}
	}
	return best
}

func agentMatch(agent, pattern string) (bool, int) {
	switch {
	case pattern == WildcardAgent:
		return true, 0
	case strings.Contains(pattern, "*"):
		return Match(agent, pattern)
	case strings.Contains(agent, pattern):
		return true, len(pattern)
	}
	return false, 0
}

// Allows reports whether userAgent may fetch path
func (p *Policy) Allows(path, userAgent string) bool {
	d := p.MatchedDirective(userAgent)
	if d == nil {
		return true
	}
	return d.Allows(path)
}

// CrawlDelay returns the crawl delay in seconds for userAgent, 0 if none applies
func (p *Policy) CrawlDelay(userAgent string) int {
	d := p.MatchedDirective(userAgent)
	if d == nil {
		return 0
	}
	return d.crawlDelay
}

// Sitemaps returns the declared sitemap URLs in first-seen order
func (p *Policy) Sitemaps() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.sitemaps...)
}

// String implements fmt.Stringer
func (p *Policy) String() string {
	if p == nil {
		return "Policy<nil>"
	}
	return fmt.Sprintf("Policy{directives=%v, sitemaps=%v}", p.directives, p.sitemaps)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
