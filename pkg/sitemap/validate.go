package sitemap

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxURLLength is the longest loc accepted by the sitemap protocol
const MaxURLLength = 2048

var lastModPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(Z|[+-]\d{2}:\d{2}))?$`)

type validatorSet struct {
	validate *validator.Validate
}

var (
	sharedValidator     *validatorSet
	sharedValidatorOnce sync.Once
)

func defaultValidator() *validatorSet {
	sharedValidatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("sitemapurl", func(fl validator.FieldLevel) bool {
			return validURL(fl.Field().String())
		})
		_ = v.RegisterValidation("lastmod", func(fl validator.FieldLevel) bool {
			return lastModPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
			return validPriority(fl.Field().String())
		})
		sharedValidator = &validatorSet{validate: v}
	})
	return sharedValidator
}

func validURL(s string) bool {
	if strings.TrimSpace(s) == "" || len(s) > MaxURLLength {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validPriority(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false
	}
	return f >= 0 && f <= 1
}

// ValidateEntry checks e against the sitemap protocol and returns the
// validator's field errors. It returns nil when validation is disabled.
func (p *Parser) ValidateEntry(e Entry) error {
	if !p.validate {
		return nil
	}
	return p.checks.validate.Struct(e)
}

// IsValidEntry reports whether ValidateEntry accepts e
func (p *Parser) IsValidEntry(e Entry) bool {
	return p.ValidateEntry(e) == nil
}

// IsValidURL reports whether s is a non-blank http(s) URL of at most 2048 characters
func (p *Parser) IsValidURL(s string) bool {
	return p.check(s, "required,sitemapurl")
}

// IsValidPriority reports whether s is blank or a number in [0, 1]
func (p *Parser) IsValidPriority(s string) bool {
	return p.check(s, "omitempty,priority")
}

// IsValidChangeFreq reports whether s is blank or a protocol change frequency
func (p *Parser) IsValidChangeFreq(s string) bool {
	return p.check(s, "omitempty,oneof=always hourly daily weekly monthly yearly never")
}

// IsValidLastMod reports whether s is blank, YYYY-MM-DD or
// YYYY-MM-DDThh:mm:ss with a Z or ±hh:mm offset
func (p *Parser) IsValidLastMod(s string) bool {
	return p.check(s, "omitempty,lastmod")
}

func (p *Parser) check(s, tag string) bool {
	if !p.validate {
		return true
	}
	return p.checks.validate.Var(s, tag) == nil
}
