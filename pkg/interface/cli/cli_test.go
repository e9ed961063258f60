package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WangYihang/Crawl-Frontier/pkg/infrastructure/file"
	"github.com/WangYihang/Crawl-Frontier/pkg/infrastructure/storage"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := NewApp(context.Background(), &stdout, &stderr).Run(args)
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "Crawl Frontier") {
		t.Errorf("version output = %q", out)
	}
}

func TestHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("--help: %v", err)
	}
	for _, cmd := range []string{"robots", "sitemap", "crawl", "version"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help does not list %s:\n%s", cmd, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := run(t, "fly"); err == nil {
		t.Errorf("unknown command should fail")
	}
}

func TestRobotsCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "robots.txt",
		"User-agent: *\nDisallow: /private\nAllow: /private/open\nCrawl-delay: 3\nSitemap: https://a.test/sitemap.xml\n")

	out, err := run(t, "robots", "-a", "TestBot", "-p", "/private/x", "-p", "/private/open/y", "-p", "/", path)
	if err != nil {
		t.Fatalf("robots: %v", err)
	}
	for _, want := range []string{
		"User-agent: *",
		"Disallow: /private",
		"Crawl-delay: 3",
		"Sitemap: https://a.test/sitemap.xml",
		"TestBot (crawl-delay 3s)",
		"DENY  /private/x",
		"ALLOW /private/open/y",
		"ALLOW /",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("robots output missing %q:\n%s", want, out)
		}
	}
}

func TestRobotsCommandMissingFile(t *testing.T) {
	if _, err := run(t, "robots", filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Errorf("robots on a missing file should fail")
	}
}

func TestSitemapCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "sitemap.xml", `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://a.test/</loc><priority>0.8</priority></url>
  <url><loc>https://a.test/bad</loc><priority>2.0</priority></url>
</urlset>`)

	out, err := run(t, "sitemap", "--validate", path)
	if err != nil {
		t.Fatalf("sitemap: %v", err)
	}
	for _, want := range []string{"2 entries", "  https://a.test/\n", "! https://a.test/bad", "1 invalid entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("sitemap output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "sitemap", "--json", path)
	if err != nil {
		t.Fatalf("sitemap --json: %v", err)
	}
	if !strings.Contains(out, `"loc": "https://a.test/bad"`) {
		t.Errorf("json output = %s", out)
	}
}

func TestMissingConfigFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "robots.txt", "User-agent: *\n")
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "robots", path)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestCrawlCommandInvalidProfile(t *testing.T) {
	profile := writeFile(t, t.TempDir(), "profile.yaml", "crawl:\n  workers: 0\n")
	_, err := run(t, "-c", profile, "crawl", "-s", "https://a.test/")
	if err == nil || !strings.Contains(err.Error(), "Crawl.Workers") {
		t.Errorf("err = %v", err)
	}
}

func TestCrawlCommandLocalFiles(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "a.txt", "hello")
	writeFile(t, site, "b.html", "<html></html>")
	writeFile(t, site, "skip.log", "ignored")

	work := t.TempDir()
	profile := writeFile(t, work, "profile.yaml", "crawl:\n  idle_timeout: 100ms\nlog:\n  level: error\n")
	results := filepath.Join(work, "results.jsonl")

	out, err := run(t,
		"-c", profile,
		"crawl",
		"-s", file.URLFromPath(site),
		"-o", results,
		"--session", "local",
		"--exclude", `.*\.log`,
		"-w", "2",
	)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if !strings.Contains(out, "local") {
		t.Errorf("summary does not name the session:\n%s", out)
	}

	recorded, err := storage.ReadResults(results)
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if len(recorded) != 3 {
		t.Fatalf("recorded %d results, want 3: %+v", len(recorded), recorded)
	}
	for _, r := range recorded {
		if r.SessionID != "local" || strings.HasSuffix(r.URL, ".log") {
			t.Errorf("unexpected result %+v", r)
		}
	}

	// A second run re-crawls everything the first one fetched
	again := filepath.Join(work, "again.jsonl")
	_, err = run(t,
		"-c", profile,
		"crawl",
		"--previous-results", results,
		"-o", again,
		"--session", "second",
		"--max-depth", "0",
	)
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	recrawled, err := storage.ReadResults(again)
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if len(recrawled) != 3 {
		t.Errorf("re-crawled %d results, want 3", len(recrawled))
	}
}
