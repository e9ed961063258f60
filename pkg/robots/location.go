package robots

import (
	"fmt"
	"net/url"
)

// MaxRedirects is how many redirects a robots.txt fetch follows before the
// file is treated as unavailable
const MaxRedirects = 5

// URL returns the robots.txt location for the host of rawURL
func URL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String(), nil
}
