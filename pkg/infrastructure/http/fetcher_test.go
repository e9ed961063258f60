package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/crawlerr"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBot" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		io.WriteString(w, "<html>hello world</html>")
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherGetDocument(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 1 << 20, UserAgent: "TestBot"})

	res, err := f.Get(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	doc, ok := res.(*entity.DocumentResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.DocumentResult", res)
	}
	resp := doc.Response
	defer resp.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if resp.MimeType != "text/html" || resp.Charset != "ISO-8859-1" {
		t.Errorf("MimeType = %q, Charset = %q", resp.MimeType, resp.Charset)
	}
	if resp.LastModified == nil || resp.LastModified.Year() != 2015 {
		t.Errorf("LastModified = %v", resp.LastModified)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "<html>hello world</html>" {
		t.Errorf("body = %q", body)
	}
}

func TestFetcherLimitsBody(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 6, UserAgent: "TestBot"})

	res, err := f.Get(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp := res.(*entity.DocumentResult).Response
	defer resp.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<html>" {
		t.Errorf("body = %q, want truncated to 6 bytes", body)
	}
}

func TestFetcherRedirectBecomesChildURL(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 1 << 20, UserAgent: "TestBot"})

	res, err := f.Get(context.Background(), srv.URL+"/moved")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	children, ok := res.(*entity.ChildURLsResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.ChildURLsResult", res)
	}
	defer children.Response.Close()

	if len(children.URLs) != 1 || children.URLs[0] != srv.URL+"/page" {
		t.Errorf("URLs = %v", children.URLs)
	}
	if children.Response.StatusCode != http.StatusMovedPermanently {
		t.Errorf("StatusCode = %d", children.Response.StatusCode)
	}
}

func TestFetcherFollowRedirects(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 1 << 20, UserAgent: "TestBot", FollowRedirects: true})

	res, err := f.Get(context.Background(), srv.URL+"/moved")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	doc, ok := res.(*entity.DocumentResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.DocumentResult", res)
	}
	defer doc.Response.Close()
	if doc.Response.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", doc.Response.StatusCode)
	}
}

func TestFetcherNotFound(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 1 << 20, UserAgent: "TestBot"})

	res, err := f.Get(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp := res.(*entity.DocumentResult).Response
	defer resp.Close()
	if entity.StatusForCode(resp.StatusCode) != entity.StatusNotFound {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}

func TestFetcherConnectionError(t *testing.T) {
	srv := newTestServer(t)
	addr := srv.URL
	srv.Close()

	f := NewFetcher(Config{Timeout: time.Second, MaxResponseSize: 1 << 20})
	_, err := f.Get(context.Background(), addr+"/page")
	if !crawlerr.IsKind(err, crawlerr.KindAccess) {
		t.Errorf("err = %v, want access error", err)
	}
}

func TestContentType(t *testing.T) {
	mt, cs := contentType("text/plain; charset=utf-8")
	if mt != "text/plain" || cs != "utf-8" {
		t.Errorf("contentType = %q, %q", mt, cs)
	}
	mt, _ = contentType("application/xml;;bad")
	if !strings.HasPrefix(mt, "application/xml") {
		t.Errorf("contentType fallback = %q", mt)
	}
}

func TestFetcherHead(t *testing.T) {
	srv := newTestServer(t)
	f := NewFetcher(Config{Timeout: 5 * time.Second, MaxResponseSize: 1 << 20, UserAgent: "TestBot"})

	res, err := f.Head(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	doc, ok := res.(*entity.DocumentResult)
	if !ok {
		t.Fatalf("result = %T, want *entity.DocumentResult", res)
	}
	defer doc.Response.Close()

	if doc.Response.Method != entity.MethodHead || doc.Response.StatusCode != http.StatusOK {
		t.Errorf("Method = %q, StatusCode = %d", doc.Response.Method, doc.Response.StatusCode)
	}
	if doc.Response.LastModified == nil {
		t.Errorf("HEAD should still report Last-Modified")
	}
	body, _ := io.ReadAll(doc.Response.Body)
	if len(body) != 0 {
		t.Errorf("HEAD body = %q", body)
	}
}
