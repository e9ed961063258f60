package frontier

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
)

// URLQueue is a session's FIFO of pending requests
type URLQueue struct {
	items []*entity.URLQueue
	mu    sync.Mutex
}

func newURLQueue() *URLQueue {
	return &URLQueue{}
}

// Enqueue appends a request
func (q *URLQueue) Enqueue(rec *entity.URLQueue) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, rec)
}

// Dequeue removes and returns the oldest request
func (q *URLQueue) Dequeue() (*entity.URLQueue, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	rec := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return rec, true
}

// Len returns the current queue length
func (q *URLQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a snapshot in scheduling order
func (q *URLQueue) Items() []*entity.URLQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*entity.URLQueue(nil), q.items...)
}

// renamed copies the queue with every request moved to session id. The
// original records are left untouched.
func (q *URLQueue) renamed(id string) *URLQueue {
	out := newURLQueue()
	for _, rec := range q.Items() {
		c := *rec
		c.SessionID = id
		out.items = append(out.items, &c)
	}
	return out
}

// URLSet holds the raw URLs a session has admitted to its queue
type URLSet struct {
	m    sync.Map
	size atomic.Int64
}

func newURLSet() *URLSet {
	return &URLSet{}
}

// Add inserts url and reports whether it was absent
func (s *URLSet) Add(url string) bool {
	if _, loaded := s.m.LoadOrStore(url, struct{}{}); loaded {
		return false
	}
	s.size.Add(1)
	return true
}

// Contains reports whether url is present
func (s *URLSet) Contains(url string) bool {
	_, ok := s.m.Load(url)
	return ok
}

// Len returns the number of URLs
func (s *URLSet) Len() int {
	return int(s.size.Load())
}

func (s *URLSet) clone() *URLSet {
	out := newURLSet()
	s.m.Range(func(k, _ any) bool {
		out.Add(k.(string))
		return true
	})
	return out
}

// AccessResultMap holds a session's completed fetches keyed by URL
type AccessResultMap struct {
	m    sync.Map
	size atomic.Int64
}

func newAccessResultMap() *AccessResultMap {
	return &AccessResultMap{}
}

// Put stores r under its URL, replacing any earlier result
func (a *AccessResultMap) Put(r *entity.AccessResult) {
	if _, loaded := a.m.Swap(r.URL, r); !loaded {
		a.size.Add(1)
	}
}

// Get returns the result for url
func (a *AccessResultMap) Get(url string) (*entity.AccessResult, bool) {
	v, ok := a.m.Load(url)
	if !ok {
		return nil, false
	}
	return v.(*entity.AccessResult), true
}

// Contains reports whether url has a result
func (a *AccessResultMap) Contains(url string) bool {
	_, ok := a.m.Load(url)
	return ok
}

// Len returns the number of results
func (a *AccessResultMap) Len() int {
	return int(a.size.Load())
}

// renamed copies the map with every result moved to session id
func (a *AccessResultMap) renamed(id string) *AccessResultMap {
	out := newAccessResultMap()
	a.Range(func(r *entity.AccessResult) bool {
		c := *r
		c.SessionID = id
		out.Put(&c)
		return true
	})
	return out
}

// Range calls fn for each result until fn returns false
func (a *AccessResultMap) Range(fn func(*entity.AccessResult) bool) {
	a.m.Range(func(_, v any) bool {
		return fn(v.(*entity.AccessResult))
	})
}

// Values returns every result ordered by creation time, then URL
func (a *AccessResultMap) Values() []*entity.AccessResult {
	var out []*entity.AccessResult
	a.Range(func(r *entity.AccessResult) bool {
		out = append(out, r)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].URL < out[j].URL
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out
}
