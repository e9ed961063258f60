package entity

import (
	"strings"
	"time"
)

// Request methods understood by fetchers
const (
	MethodGet  = "GET"
	MethodHead = "HEAD"
)

// URLQueue is a pending crawl request
type URLQueue struct {
	ID           string     `json:"id,omitempty"`
	SessionID    string     `json:"session_id"`
	Method       string     `json:"method"`
	URL          string     `json:"url"`
	MetaData     string     `json:"meta_data,omitempty"`
	EncodedData  string     `json:"encoded_data,omitempty"`
	ParentURL    string     `json:"parent_url,omitempty"`
	Depth        int        `json:"depth"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	CreateTime   time.Time  `json:"create_time"`
	Weight       float64    `json:"weight"`
}

// NewURLQueue creates a GET request at depth 0
func NewURLQueue(sessionID, url string) *URLQueue {
	return &URLQueue{
		SessionID:  sessionID,
		Method:     MethodGet,
		URL:        strings.TrimSpace(url),
		Depth:      0,
		Weight:     1.0,
		CreateTime: time.Now(),
	}
}

// Child creates the request for a URL discovered while crawling q
func (q *URLQueue) Child(url string) *URLQueue {
	child := NewURLQueue(q.SessionID, url)
	child.ParentURL = q.URL
	child.Depth = q.Depth + 1
	return child
}
