package entity

import (
	"io"
	"sync"
	"time"
)

// ResponseData is an owned fetch response. The body is released by Close,
// which may be called any number of times.
type ResponseData struct {
	URL           string
	Method        string
	StatusCode    int
	Charset       string
	MimeType      string
	ContentLength int64
	Headers       map[string]string
	LastModified  *time.Time
	ExecutionTime time.Duration
	Body          io.ReadCloser

	closeOnce sync.Once
	closeErr  error
}

// Close releases the body
func (r *ResponseData) Close() error {
	r.closeOnce.Do(func() {
		if r.Body != nil {
			r.closeErr = r.Body.Close()
		}
	})
	return r.closeErr
}

// FetchResult is what a fetcher hands back to a worker: either a document
// to record or a list of child URLs to enqueue.
type FetchResult interface {
	fetchResult()
}

// DocumentResult carries a fetched document
type DocumentResult struct {
	Response *ResponseData
}

// ChildURLsResult carries URLs discovered without producing a document,
// such as a directory listing or a redirect
type ChildURLsResult struct {
	Response *ResponseData
	URLs     []string
}

func (*DocumentResult) fetchResult()  {}
func (*ChildURLsResult) fetchResult() {}
