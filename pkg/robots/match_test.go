package robots

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
		length  int
	}{
		{"", "/anything", true, 0},
		{"*", "/anything", true, 0},
		{"/", "/", true, 1},
		{"/fish", "/fish", true, 5},
		{"/fish", "/fish.html", true, 5},
		{"/fish", "/fishheads/yummy.html", true, 5},
		{"/fish", "/Fish.asp", false, 0},
		{"/fish", "/catfish", false, 0},
		{"/fish$", "/fish", true, 5},
		{"/fish$", "/fish.html", false, 0},
		{"/fish$", "/fishheads", false, 0},
		{"/fish$", "/fishing", false, 0},
		{"/fish$", "/fish/", false, 0},
		{"/fish*", "/fish", true, 5},
		{"/fish*", "/fish/salmon.htm", true, 5},
		{"/fish*.php", "/fish/salmon.php", true, 9},
		{"/fish*.php", "/fish.php?id=1", true, 9},
		{"/fish*.php", "/fish.asp", false, 0},
		{"/*.php$", "/index.php", true, 5},
		{"/*.php$", "/index.php?x=1", false, 0},
		{"/*.php$", "/a.php/b.php", true, 5},
		{"/*a*b*c$", "/xaybzc", true, 4},
		{"/*a*b*c$", "/xcybza", false, 0},
		{"/a$b", "/a$bc", true, 4},
		{"/a$b", "/ab", false, 0},
		{"$", "", true, 0},
		{"$", "/", false, 0},
		{"/ü*", "/über", true, 2},
	}

	for _, tt := range tests {
		got, n := Match(tt.path, tt.pattern)
		if got != tt.want || n != tt.length {
			t.Errorf("Match(%q, %q) = (%v, %d), want (%v, %d)",
				tt.path, tt.pattern, got, n, tt.want, tt.length)
		}
	}
}

func TestMatchPlainPatternIsPrefix(t *testing.T) {
	paths := []string{"/", "/a", "/a/b/c", "/index.html?q=1", "/%E3%81%82"}
	for _, path := range paths {
		for i := 0; i <= len(path); i++ {
			prefix := path[:i]
			if ok, _ := Match(path, prefix); !ok {
				t.Errorf("Match(%q, %q) = false, every prefix should match", path, prefix)
			}
		}
	}
}
