package entity

import "time"

// Access result statuses
const (
	StatusOK       = 0
	StatusNotFound = 1
	StatusFailed   = 2
)

// AccessResult records a completed fetch
type AccessResult struct {
	ID             string            `json:"id,omitempty"`
	SessionID      string            `json:"session_id"`
	RuleID         string            `json:"rule_id,omitempty"`
	URL            string            `json:"url"`
	ParentURL      string            `json:"parent_url,omitempty"`
	Method         string            `json:"method"`
	HTTPStatusCode int               `json:"http_status_code"`
	Status         int               `json:"status"`
	MimeType       string            `json:"mime_type,omitempty"`
	ContentLength  int64             `json:"content_length"`
	ExecutionTime  time.Duration     `json:"execution_time"`
	LastModified   *time.Time        `json:"last_modified,omitempty"`
	CreateTime     time.Time         `json:"create_time"`
	Data           *AccessResultData `json:"data,omitempty"`
}

// AccessResultData is the transformed payload of a fetch
type AccessResultData struct {
	TransformerName string `json:"transformer_name"`
	Encoding        string `json:"encoding,omitempty"`
	Data            []byte `json:"data,omitempty"`
}

// NewAccessResult builds an access result from a fetched response
func NewAccessResult(q *URLQueue, resp *ResponseData) *AccessResult {
	r := &AccessResult{
		SessionID:  q.SessionID,
		URL:        q.URL,
		ParentURL:  q.ParentURL,
		Method:     q.Method,
		CreateTime: time.Now(),
	}
	if resp != nil {
		r.HTTPStatusCode = resp.StatusCode
		r.MimeType = resp.MimeType
		r.ContentLength = resp.ContentLength
		r.ExecutionTime = resp.ExecutionTime
		r.LastModified = resp.LastModified
		r.Status = StatusForCode(resp.StatusCode)
	}
	return r
}

// StatusForCode maps a protocol status code to an access status
func StatusForCode(code int) int {
	switch {
	case code >= 200 && code < 400:
		return StatusOK
	case code == 404 || code == 410:
		return StatusNotFound
	default:
		return StatusFailed
	}
}
