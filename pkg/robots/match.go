package robots

import (
	"strings"
	"unicode/utf8"
)

// Match reports whether path matches a robots.txt path pattern and how many
// literal pattern characters took part in the match.
//
// A '*' matches any run of characters, including none. A '$' at the very end
// anchors the pattern to the end of path; a '$' anywhere else is literal.
// Without a trailing '$' the pattern only has to match a prefix of path.
// The empty pattern matches everything with length 0.
func Match(path, pattern string) (bool, int) {
	if pattern == "" {
		return true, 0
	}

	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = pattern[:len(pattern)-1]
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		ok := strings.HasPrefix(path, pattern)
		if anchored {
			ok = path == pattern
		}
		if !ok {
			return false, 0
		}
		return true, utf8.RuneCountInString(pattern)
	}

	if !strings.HasPrefix(path, parts[0]) {
		return false, 0
	}
	rest := path[len(parts[0]):]

	// Middle segments are taken leftmost, which leaves the most room for the rest.
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false, 0
		}
		rest = rest[i+len(part):]
	}

	last := parts[len(parts)-1]
	if anchored {
		if !strings.HasSuffix(rest, last) {
			return false, 0
		}
	} else if !strings.Contains(rest, last) {
		return false, 0
	}

	return true, literalLength(parts)
}

func literalLength(parts []string) int {
	n := 0
	for _, p := range parts {
		n += utf8.RuneCountInString(p)
	}
	return n
}
