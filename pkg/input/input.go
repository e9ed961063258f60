package input

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Loader loads seed URLs
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates loader
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{logger: logger}
}

// Load loads seed URLs from file ("-" reads stdin)
func (l *Loader) Load(filePath string) ([]string, error) {
	if filePath == "-" {
		return l.Read(os.Stdin)
	}
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return l.Read(file)
}

// Read reads one seed per line, skipping blanks and # comments
func (l *Loader) Read(r io.Reader) ([]string, error) {
	var seeds []string
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		seed, ok := Normalize(line)
		if !ok {
			l.logger.WithFields(logrus.Fields{
				"line":  lineNo,
				"value": line,
			}).Warn("skipping invalid seed")
			continue
		}
		seeds = append(seeds, seed)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return seeds, nil
}

// Normalize turns a seed line into an absolute URL. Bare hosts get https://
// and an empty path becomes "/".
func Normalize(seed string) (string, bool) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return "", false
	}
	if !strings.Contains(seed, "://") {
		seed = "https://" + seed
	}
	u, err := url.Parse(seed)
	if err != nil {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", false
		}
		u.Host = strings.ToLower(u.Host)
		if u.Path == "" {
			u.Path = "/"
		}
	case "file":
		if u.Path == "" {
			return "", false
		}
	default:
		return "", false
	}
	return u.String(), true
}
