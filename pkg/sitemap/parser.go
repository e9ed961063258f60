package sitemap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/antchfx/xmlquery"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// DefaultMaxSize bounds the decompressed size of one sitemap
const DefaultMaxSize = 50 << 20

var (
	// ErrNoSitemapData is returned for an empty document
	ErrNoSitemapData = errors.New("no sitemap data")
	// ErrUnrecognizedFormat is returned when the document is neither a
	// sitemap XML document nor a plain-text URL list
	ErrUnrecognizedFormat = errors.New("unrecognized sitemap format")
	// ErrTooLarge is returned when the document exceeds the size limit
	ErrTooLarge = errors.New("sitemap exceeds size limit")
)

// Namespaces of the elements the parser reads. Elements from any other
// namespace are ignored.
const (
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	ImageNamespace   = "http://www.google.com/schemas/sitemap-image/1.1"
	VideoNamespace   = "http://www.google.com/schemas/sitemap-video/1.1"
	NewsNamespace    = "http://www.google.com/schemas/sitemap-news/0.9"
	XHTMLNamespace   = "http://www.w3.org/1999/xhtml"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

// Parser reads sitemap documents
type Parser struct {
	validate bool
	maxSize  int64
	logger   *logrus.Logger
	checks   *validatorSet
}

// Option configures a Parser
type Option func(*Parser)

// WithValidation turns on the IsValid* predicates
func WithValidation(enabled bool) Option {
	return func(p *Parser) { p.validate = enabled }
}

// WithMaxSize overrides DefaultMaxSize
func WithMaxSize(n int64) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxSize = n
		}
	}
}

// WithLogger sets the logger used for skipped entries
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a parser
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		maxSize: DefaultMaxSize,
		logger:  logrus.StandardLogger(),
		checks:  defaultValidator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads a sitemap with a default parser
func Parse(r io.Reader, enableValidation bool) (*Collection, error) {
	return NewParser(WithValidation(enableValidation)).Parse(r)
}

// Parse reads an XML URL set, an XML sitemap index or a plain-text URL list.
// Gzip input is decompressed first. Individual entries without a location
// are skipped; only a document that cannot be recognized at all is an error,
// reported as a crawlerr access error.
func (p *Parser) Parse(r io.Reader) (*Collection, error) {
	data, err := p.readAll(r)
	if err != nil {
		return nil, crawlerr.NewAccess("could not read sitemap", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, crawlerr.NewAccess("could not parse sitemap", ErrNoSitemapData)
	}

	if bytes.HasPrefix(data, gzipMagic) {
		data, err = p.gunzip(data)
		if err != nil {
			return nil, crawlerr.NewAccess("could not decompress sitemap", err)
		}
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, crawlerr.NewAccess("could not parse sitemap", ErrNoSitemapData)
	}

	if trimmed[0] == '<' {
		c, err := p.parseXML(trimmed)
		if err != nil {
			return nil, crawlerr.NewAccess("could not parse sitemap", err)
		}
		return c, nil
	}

	c, err := p.parseText(trimmed)
	if err != nil {
		return nil, crawlerr.NewAccess("could not parse sitemap", err)
	}
	return c, nil
}

func (p *Parser) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

func (p *Parser) gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return p.readAll(zr)
}

func (p *Parser) parseXML(data []byte) (*Collection, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	root := firstElement(doc)
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrUnrecognizedFormat)
	}

	switch strings.ToLower(root.Data) {
	case "urlset":
		return p.parseURLSet(root), nil
	case "sitemapindex":
		return p.parseIndex(root), nil
	}
	return nil, fmt.Errorf("%w: root element <%s>", ErrUnrecognizedFormat, root.Data)
}

func (p *Parser) parseURLSet(root *xmlquery.Node) *Collection {
	c := &Collection{Kind: KindURLSet}
	core := coreNamespace(root)
	eachElement(root, func(n *xmlquery.Node) {
		if n.Data != "url" || !core(n) {
			return
		}
		e := Entry{}
		eachElement(n, func(f *xmlquery.Node) {
			switch {
			case core(f):
				switch f.Data {
				case "loc":
					e.Loc = text(f)
				case "lastmod":
					e.LastMod = text(f)
				case "changefreq":
					e.ChangeFreq = text(f)
				case "priority":
					e.Priority = text(f)
				}
			case f.NamespaceURI == ImageNamespace && f.Data == "image":
				e.Images = append(e.Images, parseImage(f))
			case f.NamespaceURI == VideoNamespace && f.Data == "video":
				e.Videos = append(e.Videos, parseVideo(f))
			case f.NamespaceURI == NewsNamespace && f.Data == "news":
				if e.News == nil {
					e.News = parseNews(f)
				}
			case f.NamespaceURI == XHTMLNamespace && f.Data == "link":
				if strings.EqualFold(attr(f, "rel"), "alternate") {
					e.AlternateLinks = append(e.AlternateLinks, AlternateLink{
						HrefLang: attr(f, "hreflang"),
						Href:     attr(f, "href"),
					})
				}
			}
		})
		p.add(c, e)
	})
	return c
}

func (p *Parser) parseIndex(root *xmlquery.Node) *Collection {
	c := &Collection{Kind: KindIndex}
	core := coreNamespace(root)
	eachElement(root, func(n *xmlquery.Node) {
		if n.Data != "sitemap" || !core(n) {
			return
		}
		e := Entry{}
		eachElement(n, func(f *xmlquery.Node) {
			if !core(f) {
				return
			}
			switch f.Data {
			case "loc":
				e.Loc = text(f)
			case "lastmod":
				e.LastMod = text(f)
			}
		})
		p.add(c, e)
	})
	return c
}

// coreNamespace matches elements of the sitemap protocol itself: no
// namespace, the root's namespace or the sitemaps.org one
func coreNamespace(root *xmlquery.Node) func(*xmlquery.Node) bool {
	return func(n *xmlquery.Node) bool {
		switch n.NamespaceURI {
		case "", root.NamespaceURI, SitemapNamespace:
			return true
		}
		return false
	}
}

func (p *Parser) parseText(data []byte) (*Collection, error) {
	c := &Collection{Kind: KindURLSet}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			c.Entries = append(c.Entries, Entry{Loc: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(c.Entries) == 0 {
		return nil, fmt.Errorf("%w: no URL lines", ErrUnrecognizedFormat)
	}
	return c, nil
}

func (p *Parser) add(c *Collection, e Entry) {
	if e.Loc == "" {
		p.logger.WithField("kind", c.Kind.String()).Debug("sitemap entry without loc skipped")
		return
	}
	c.Entries = append(c.Entries, e)
}

func parseImage(n *xmlquery.Node) Image {
	img := Image{}
	eachElementIn(n, func(f *xmlquery.Node) {
		switch f.Data {
		case "loc":
			img.Loc = text(f)
		case "caption":
			img.Caption = text(f)
		case "title":
			img.Title = text(f)
		case "geo_location":
			img.GeoLocation = text(f)
		case "license":
			img.License = text(f)
		}
	})
	return img
}

func parseVideo(n *xmlquery.Node) Video {
	v := Video{}
	eachElementIn(n, func(f *xmlquery.Node) {
		switch f.Data {
		case "thumbnail_loc":
			v.ThumbnailLoc = text(f)
		case "title":
			v.Title = text(f)
		case "description":
			v.Description = text(f)
		case "content_loc":
			v.ContentLoc = text(f)
		case "player_loc":
			v.PlayerLoc = text(f)
		case "duration":
			v.Duration = text(f)
		case "publication_date":
			v.PublicationDate = text(f)
		}
	})
	return v
}

func parseNews(n *xmlquery.Node) *News {
	news := &News{}
	eachElementIn(n, func(f *xmlquery.Node) {
		switch f.Data {
		case "publication":
			eachElementIn(f, func(g *xmlquery.Node) {
				switch g.Data {
				case "name":
					news.PublicationName = text(g)
				case "language":
					news.PublicationLanguage = text(g)
				}
			})
		case "publication_date":
			news.PublicationDate = text(f)
		case "title":
			news.Title = text(f)
		case "keywords":
			news.Keywords = text(f)
		}
	})
	return news
}

func firstElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func eachElement(parent *xmlquery.Node, fn func(*xmlquery.Node)) {
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			fn(n)
		}
	}
}

// eachElementIn visits the child elements sharing parent's namespace
func eachElementIn(parent *xmlquery.Node, fn func(*xmlquery.Node)) {
	eachElement(parent, func(n *xmlquery.Node) {
		if n.NamespaceURI == parent.NamespaceURI {
			fn(n)
		}
	})
}

func text(n *xmlquery.Node) string {
	return strings.TrimSpace(n.InnerText())
}

func attr(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// IsSitemap sniffs whether data looks like a sitemap without parsing it fully
func IsSitemap(data []byte) bool {
	if bytes.HasPrefix(data, gzipMagic) {
		return true
	}
	data = bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(data) > 4096 {
		data = data[:4096]
	}
	s := string(data)
	switch {
	case strings.Contains(s, "<urlset"), strings.Contains(s, "<sitemapindex"):
		return true
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return true
	}
	return false
}
