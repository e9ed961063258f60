package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
)

func TestFetcherDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	f := NewFetcher(0)
	res, err := f.Get(context.Background(), URLFromPath(dir))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	children, ok := res.(*entity.ChildURLsResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.ChildURLsResult", res)
	}
	defer children.Response.Close()

	want := []string{
		URLFromPath(filepath.Join(dir, "a.txt")),
		URLFromPath(filepath.Join(dir, "b.txt")),
		URLFromPath(filepath.Join(dir, "sub")),
	}
	if len(children.URLs) != len(want) {
		t.Fatalf("URLs = %v, want %v", children.URLs, want)
	}
	for i := range want {
		if children.URLs[i] != want[i] {
			t.Errorf("URLs[%d] = %q, want %q", i, children.URLs[i], want[i])
		}
	}
}

func TestFetcherFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	content := "<html><body>hello</body></html>"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	res, err := NewFetcher(0).Get(context.Background(), URLFromPath(path))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	doc, ok := res.(*entity.DocumentResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.DocumentResult", res)
	}
	defer doc.Response.Close()

	if doc.Response.StatusCode != 200 || doc.Response.ContentLength != int64(len(content)) {
		t.Errorf("Response = %+v", doc.Response)
	}
	if doc.Response.MimeType == "" {
		t.Errorf("MimeType should be detected")
	}
	body, _ := io.ReadAll(doc.Response.Body)
	if string(body) != content {
		t.Errorf("body = %q", body)
	}
}

func TestFetcherLimitsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	res, err := NewFetcher(4).Get(context.Background(), URLFromPath(path))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp := res.(*entity.DocumentResult).Response
	defer resp.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "0123" {
		t.Errorf("body = %q", body)
	}
}

func TestFetcherMissing(t *testing.T) {
	res, err := NewFetcher(0).Get(context.Background(), URLFromPath(filepath.Join(t.TempDir(), "gone")))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp := res.(*entity.DocumentResult).Response
	if entity.StatusForCode(resp.StatusCode) != entity.StatusNotFound {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if err := resp.Close(); err != nil {
		t.Errorf("Close on an empty body: %v", err)
	}
}

func TestPathFromURL(t *testing.T) {
	if _, err := PathFromURL("http://example.com/a"); err == nil {
		t.Errorf("non-file scheme should fail")
	}
	dir := t.TempDir()
	got, err := PathFromURL(URLFromPath(dir))
	if err != nil {
		t.Fatalf("PathFromURL: %v", err)
	}
	if filepath.Clean(got) != filepath.Clean(dir) {
		t.Errorf("PathFromURL round trip = %q, want %q", got, dir)
	}
}

func TestFetcherHead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("some notes"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	res, err := NewFetcher(0).Head(context.Background(), URLFromPath(path))
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	doc, ok := res.(*entity.DocumentResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.DocumentResult", res)
	}
	if doc.Response.Body != nil || doc.Response.Method != entity.MethodHead {
		t.Errorf("Response = %+v", doc.Response)
	}
	if doc.Response.ContentLength != 10 || doc.Response.LastModified == nil {
		t.Errorf("metadata = %d, %v", doc.Response.ContentLength, doc.Response.LastModified)
	}
}
