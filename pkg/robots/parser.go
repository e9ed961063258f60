package robots

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const maxLineSize = 1 << 20

// Option configures Parse
type Option func(*parser)

// WithLogger sets the logger used for skipped lines
func WithLogger(logger *logrus.Logger) Option {
	return func(p *parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

type parser struct {
	logger *logrus.Logger
	policy *Policy

	group     []*Directive
	inAgents  bool
	lineCount int
}

// Parse reads a robots.txt document. It returns nil when enabled is false.
//
// Parsing is lenient: unknown lines, rules outside a user-agent group and
// malformed crawl delays are skipped, and a read failure returns whatever was
// parsed up to that point. The charset label is resolved with the WHATWG
// encoding index; an unknown label falls back to UTF-8.
func Parse(r io.Reader, charset string, enabled bool, opts ...Option) *Policy {
	if !enabled {
		return nil
	}

	p := &parser{
		logger: logrus.StandardLogger(),
		policy: NewPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}

	scanner := bufio.NewScanner(transform.NewReader(r, p.decoder(charset).NewDecoder()))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		p.lineCount++
		line := scanner.Text()
		if p.lineCount == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		p.parseLine(line)
	}
	if err := scanner.Err(); err != nil {
		p.logger.WithError(err).WithField("line", p.lineCount).Warn("robots.txt read aborted")
	}

	return p.policy
}

func (p *parser) decoder(charset string) encoding.Encoding {
	charset = strings.TrimSpace(charset)
	if charset == "" {
		return unicode.UTF8
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		p.logger.WithField("charset", charset).Warn("unknown robots.txt charset, using UTF-8")
		return unicode.UTF8
	}
	return enc
}

func (p *parser) parseLine(line string) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		p.skip(line, "no field separator")
		return
	}
	name := strings.ToLower(strings.TrimSpace(line[:colon]))
	value := strings.TrimSpace(line[colon+1:])

	switch name {
	case "user-agent":
		p.userAgent(value)
	case "allow", "disallow", "crawl-delay":
		p.inAgents = false
		if len(p.group) == 0 {
			p.skip(line, "rule before user-agent")
			return
		}
		p.rule(name, value, line)
	case "sitemap":
		p.policy.AddSitemap(value)
	default:
		p.skip(line, "unknown field")
	}
}

func (p *parser) userAgent(value string) {
	if !p.inAgents {
		p.group = nil
		p.inAgents = true
	}
	if value == "" {
		return
	}
	d := p.policy.Directive(value)
	if d == nil {
		d = NewDirective(value)
		p.policy.AddDirective(d)
	}
	p.group = append(p.group, d)
}

func (p *parser) rule(name, value, line string) {
	switch name {
	case "allow":
		if value == "" {
			return
		}
		for _, d := range p.group {
			d.AddAllow(value)
		}
	case "disallow":
		if value == "" {
			return
		}
		for _, d := range p.group {
			d.AddDisallow(value)
		}
	case "crawl-delay":
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 0 {
			p.skip(line, "invalid crawl-delay")
			return
		}
		for _, d := range p.group {
			d.SetCrawlDelay(seconds)
		}
	}
}

func (p *parser) skip(line, reason string) {
	p.logger.WithFields(logrus.Fields{
		"line":   p.lineCount,
		"text":   line,
		"reason": reason,
	}).Debug("robots.txt line skipped")
}
