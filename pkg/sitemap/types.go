package sitemap

// Kind tells a URL set from a sitemap index
type Kind int

const (
	// KindURLSet lists content pages
	KindURLSet Kind = iota
	// KindIndex lists child sitemaps
	KindIndex
)

// String returns the kind name
func (k Kind) String() string {
	if k == KindIndex {
		return "Index"
	}
	return "UrlSet"
}

// Entry is one <url> or <sitemap> element, or one line of a text sitemap
type Entry struct {
	Loc            string          `json:"loc" validate:"required,sitemapurl"`
	LastMod        string          `json:"lastmod,omitempty" validate:"omitempty,lastmod"`
	ChangeFreq     string          `json:"changefreq,omitempty" validate:"omitempty,oneof=always hourly daily weekly monthly yearly never"`
	Priority       string          `json:"priority,omitempty" validate:"omitempty,priority"`
	Images         []Image         `json:"images,omitempty"`
	Videos         []Video         `json:"videos,omitempty"`
	News           *News           `json:"news,omitempty"`
	AlternateLinks []AlternateLink `json:"alternate_links,omitempty"`
}

// Image is an image sitemap extension
type Image struct {
	Loc         string `json:"loc"`
	Caption     string `json:"caption,omitempty"`
	Title       string `json:"title,omitempty"`
	GeoLocation string `json:"geo_location,omitempty"`
	License     string `json:"license,omitempty"`
}

// Video is a video sitemap extension
type Video struct {
	ThumbnailLoc    string `json:"thumbnail_loc"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	ContentLoc      string `json:"content_loc,omitempty"`
	PlayerLoc       string `json:"player_loc,omitempty"`
	Duration        string `json:"duration,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
}

// News is a news sitemap extension
type News struct {
	PublicationName     string `json:"publication_name,omitempty"`
	PublicationLanguage string `json:"publication_language,omitempty"`
	PublicationDate     string `json:"publication_date,omitempty"`
	Title               string `json:"title,omitempty"`
	Keywords            string `json:"keywords,omitempty"`
}

// AlternateLink is an xhtml:link rel="alternate" element
type AlternateLink struct {
	HrefLang string `json:"hreflang"`
	Href     string `json:"href"`
}

// Collection is a parsed sitemap
type Collection struct {
	Kind    Kind    `json:"kind"`
	Entries []Entry `json:"entries"`
}

// IsURLSet reports whether the entries are content pages
func (c *Collection) IsURLSet() bool { return c.Kind == KindURLSet }

// IsIndex reports whether the entries point at child sitemaps
func (c *Collection) IsIndex() bool { return c.Kind == KindIndex }

// Locations returns the loc of every entry in document order
func (c *Collection) Locations() []string {
	locs := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		locs = append(locs, e.Loc)
	}
	return locs
}
