package frontier

import (
	"fmt"
	"regexp"
	"sync"
)

// Filter decides which URLs a session admits. Expressions must match the
// whole URL. With no include patterns every URL is included.
type Filter struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
	mu       sync.RWMutex
}

func newFilter() *Filter {
	return &Filter{}
}

func compileFull(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid url pattern %q: %w", expr, err)
	}
	return re, nil
}

// AddInclude adds an include expression
func (f *Filter) AddInclude(expr string) error {
	re, err := compileFull(expr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.includes = append(f.includes, re)
	return nil
}

// AddExclude adds an exclude expression
func (f *Filter) AddExclude(expr string) error {
	re, err := compileFull(expr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.excludes = append(f.excludes, re)
	return nil
}

// Match reports whether url passes the include and exclude lists
func (f *Filter) Match(url string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.includes) > 0 {
		included := false
		for _, re := range f.includes {
			if re.MatchString(url) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, re := range f.excludes {
		if re.MatchString(url) {
			return false
		}
	}
	return true
}

// Includes returns the include expressions as written
func (f *Filter) Includes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sources(f.includes)
}

// Excludes returns the exclude expressions as written
func (f *Filter) Excludes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sources(f.excludes)
}

// Clear drops every expression
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.includes = nil
	f.excludes = nil
}

func sources(res []*regexp.Regexp) []string {
	out := make([]string, 0, len(res))
	for _, re := range res {
		s := re.String()
		out = append(out, s[len("^(?:"):len(s)-len(")$")])
	}
	return out
}
