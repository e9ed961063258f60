package entity

import "time"

// Metrics represents crawling metrics
type Metrics struct {
	SessionID      string
	QueueLength    int
	ActiveWorkers  int
	TotalWorkers   int
	Requests       int64
	SuccessCount   int64
	ErrorCount     int64
	RobotsDenied   int64
	URLsEnqueued   int64
	URLsProcessed  int64
	SitemapURLs    int64
	StartTime      time.Time
	LastUpdateTime time.Time
	ActiveURLs     []string
	// NextURLs previews the head of the session queue
	NextURLs []string
	Sessions []SessionStats
}

// SessionStats are the frontier sizes of one session
type SessionStats struct {
	ID       string
	Queued   int
	Seen     int
	Accessed int
}
