package frontier

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// History remembers URLs fetched by earlier runs
type History interface {
	Test(data []byte) bool
	Add(data []byte)
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics registers the store's collectors with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) { s.registerer = reg }
}

// WithHistory makes Enqueue reject URLs that h already contains, and
// RecordResult add fetched URLs to h
func WithHistory(h History) Option {
	return func(s *Store) { s.history = h }
}

// pending is swapped as a unit so the queue and its de-dup set never disagree
type pending struct {
	queue *URLQueue
	set   *URLSet
}

type session struct {
	pending atomic.Pointer[pending]
	results atomic.Pointer[AccessResultMap]
	filter  *Filter
}

func newSession() *session {
	s := &session{filter: newFilter()}
	s.pending.Store(&pending{queue: newURLQueue(), set: newURLSet()})
	s.results.Store(newAccessResultMap())
	return s
}

// Store is the crawl frontier shared by every worker. All state is keyed by
// session id and created on first use; no operation takes a store-wide lock.
type Store struct {
	sessions   atomic.Pointer[sync.Map]
	history    History
	logger     *logrus.Logger
	registerer prometheus.Registerer
	metrics    *storeMetrics
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:  logrus.StandardLogger(),
		metrics: newStoreMetrics(),
	}
	s.sessions.Store(new(sync.Map))
	for _, opt := range opts {
		opt(s)
	}
	if s.registerer != nil {
		if err := s.metrics.register(s.registerer); err != nil {
			s.logger.WithError(err).Warn("frontier metrics not registered")
		}
	}
	return s
}

func (s *Store) session(id string) *session {
	registry := s.sessions.Load()
	if v, ok := registry.Load(id); ok {
		return v.(*session)
	}
	v, loaded := registry.LoadOrStore(id, newSession())
	if !loaded {
		s.metrics.sessions.Inc()
	}
	return v.(*session)
}

// Queue returns the session's pending queue
func (s *Store) Queue(id string) *URLQueue {
	return s.session(id).pending.Load().queue
}

// QueuedURLs returns the set of URLs admitted to the session's queue
func (s *Store) QueuedURLs(id string) *URLSet {
	return s.session(id).pending.Load().set
}

// AccessResults returns the session's completed fetches
func (s *Store) AccessResults(id string) *AccessResultMap {
	return s.session(id).results.Load()
}

// Filter returns the session's include/exclude filter
func (s *Store) Filter(id string) *Filter {
	return s.session(id).filter
}

// Enqueue admits rec to the session queue unless its URL is blank, already
// queued, or known to the crawl history. The set insert and the queue append
// happen against the same pending generation.
func (s *Store) Enqueue(id string, rec *entity.URLQueue) bool {
	if rec == nil || strings.TrimSpace(rec.URL) == "" {
		s.reject(id, "", RejectBlank)
		return false
	}
	if s.history != nil && s.history.Test([]byte(rec.URL)) {
		s.reject(id, rec.URL, RejectHistory)
		return false
	}

	p := s.session(id).pending.Load()
	if !p.set.Add(rec.URL) {
		s.reject(id, rec.URL, RejectDuplicate)
		return false
	}
	p.queue.Enqueue(rec)
	s.metrics.enqueued.Inc()
	return true
}

// Dequeue removes the oldest pending request. The URL stays in the queued set
// so it cannot be admitted again during this session.
func (s *Store) Dequeue(id string) (*entity.URLQueue, bool) {
	rec, ok := s.Queue(id).Dequeue()
	if ok {
		s.metrics.dequeued.Inc()
	}
	return rec, ok
}

// Len returns the number of pending requests in the session
func (s *Store) Len(id string) int {
	return s.Queue(id).Len()
}

// OfferAll enqueues every request whose URL is not blank, queued, already
// fetched, or rejected by the session filter. It returns how many were added.
func (s *Store) OfferAll(id string, recs []*entity.URLQueue) int {
	sess := s.session(id)
	added := 0
	for _, rec := range recs {
		if rec == nil || strings.TrimSpace(rec.URL) == "" {
			s.reject(id, "", RejectBlank)
			continue
		}
		if sess.results.Load().Contains(rec.URL) {
			s.reject(id, rec.URL, RejectAccessed)
			continue
		}
		if !sess.filter.Match(rec.URL) {
			s.reject(id, rec.URL, RejectFiltered)
			continue
		}
		if s.Enqueue(id, rec) {
			added++
		}
	}
	return added
}

// Admits reports whether url passes the session's include/exclude filter
func (s *Store) Admits(id, url string) bool {
	return s.session(id).filter.Match(url)
}

// Visited reports whether url was queued or fetched in the session
func (s *Store) Visited(id, url string) bool {
	sess := s.session(id)
	return sess.pending.Load().set.Contains(url) || sess.results.Load().Contains(url)
}

// RecordResult stores a completed fetch and adds its URL to the crawl history
func (s *Store) RecordResult(id string, r *entity.AccessResult) {
	s.AccessResults(id).Put(r)
	if s.history != nil {
		s.history.Add([]byte(r.URL))
	}
	s.metrics.recorded.Inc()
}

// RemoveSession replaces the session's queue and set with empty ones.
// Holders of the old handles keep seeing the old contents.
func (s *Store) RemoveSession(id string) {
	s.session(id).pending.Store(&pending{queue: newURLQueue(), set: newURLSet()})
}

// ClearQueues resets the queue and set of every session
func (s *Store) ClearQueues() {
	s.sessions.Load().Range(func(_, v any) bool {
		v.(*session).pending.Store(&pending{queue: newURLQueue(), set: newURLSet()})
		return true
	})
}

// ClearAll drops every session
func (s *Store) ClearAll() {
	s.sessions.Store(new(sync.Map))
	s.metrics.sessions.Set(0)
}

// DeleteAccessResults drops the session's access results
func (s *Store) DeleteAccessResults(id string) {
	s.session(id).results.Store(newAccessResultMap())
}

// DeleteAllAccessResults drops the access results of every session
func (s *Store) DeleteAllAccessResults() {
	s.sessions.Load().Range(func(_, v any) bool {
		v.(*session).results.Store(newAccessResultMap())
		return true
	})
}

// AddIncludePattern adds a full-match include expression to the session
func (s *Store) AddIncludePattern(id, expr string) error {
	if err := s.session(id).filter.AddInclude(expr); err != nil {
		s.logger.WithError(err).WithField("session", id).Warn("include pattern skipped")
		return err
	}
	return nil
}

// AddExcludePattern adds a full-match exclude expression to the session
func (s *Store) AddExcludePattern(id, expr string) error {
	if err := s.session(id).filter.AddExclude(expr); err != nil {
		s.logger.WithError(err).WithField("session", id).Warn("exclude pattern skipped")
		return err
	}
	return nil
}

// IncludePatterns returns the session's include expressions
func (s *Store) IncludePatterns(id string) []string {
	return s.session(id).filter.Includes()
}

// ExcludePatterns returns the session's exclude expressions
func (s *Store) ExcludePatterns(id string) []string {
	return s.session(id).filter.Excludes()
}

// ClearPatterns drops the session's expressions
func (s *Store) ClearPatterns(id string) {
	s.session(id).filter.Clear()
}

// ClearAllPatterns drops the expressions of every session
func (s *Store) ClearAllPatterns() {
	s.sessions.Load().Range(func(_, v any) bool {
		v.(*session).filter.Clear()
		return true
	})
}

// AccessResultsAcrossSessions collects the result for url from every session
func (s *Store) AccessResultsAcrossSessions(url string) []*entity.AccessResult {
	var out []*entity.AccessResult
	s.sessions.Load().Range(func(_, v any) bool {
		if r, ok := v.(*session).results.Load().Get(url); ok {
			out = append(out, r)
		}
		return true
	})
	return out
}

// Sessions returns the materialized session ids in sorted order
func (s *Store) Sessions() []string {
	var ids []string
	s.sessions.Load().Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// Stats returns the queue, set and result sizes of every materialized
// session, ordered by id
func (s *Store) Stats() []entity.SessionStats {
	var out []entity.SessionStats
	s.sessions.Load().Range(func(k, v any) bool {
		sess := v.(*session)
		p := sess.pending.Load()
		out = append(out, entity.SessionStats{
			ID:       k.(string),
			Queued:   p.queue.Len(),
			Seen:     p.set.Len(),
			Accessed: sess.results.Load().Len(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateSessionID moves a session's state to a new id, replacing whatever
// the new id held. Queued requests and access results are copied into a new
// generation, so records already handed out keep their old session id. It
// reports whether the old session existed.
func (s *Store) UpdateSessionID(oldID, newID string) bool {
	if oldID == newID {
		return false
	}
	registry := s.sessions.Load()
	v, ok := registry.LoadAndDelete(oldID)
	if !ok {
		return false
	}
	old := v.(*session)
	p := old.pending.Load()

	moved := &session{filter: old.filter}
	moved.pending.Store(&pending{queue: p.queue.renamed(newID), set: p.set.clone()})
	moved.results.Store(old.results.Load().renamed(newID))

	if _, replaced := registry.Swap(newID, moved); replaced {
		s.metrics.sessions.Dec()
	}
	return true
}

// GenerateURLQueues seeds session id with the URLs fetched by session prevID,
// for incremental re-crawls. Each request restarts at depth 0 and keeps the
// method, parent URL and last-modified time of the earlier fetch. It returns
// how many requests were enqueued.
func (s *Store) GenerateURLQueues(prevID, id string) int {
	added := 0
	for _, r := range s.AccessResults(prevID).Values() {
		rec := entity.NewURLQueue(id, r.URL)
		if r.Method != "" {
			rec.Method = r.Method
		}
		rec.ParentURL = r.ParentURL
		rec.LastModified = r.LastModified
		if s.enqueueRegenerated(id, rec) {
			added++
		}
	}
	return added
}

// enqueueRegenerated skips the history check, since every regenerated URL was
// fetched before by definition
func (s *Store) enqueueRegenerated(id string, rec *entity.URLQueue) bool {
	if strings.TrimSpace(rec.URL) == "" {
		return false
	}
	p := s.session(id).pending.Load()
	if !p.set.Add(rec.URL) {
		s.reject(id, rec.URL, RejectDuplicate)
		return false
	}
	p.queue.Enqueue(rec)
	s.metrics.enqueued.Inc()
	return true
}

func (s *Store) reject(id, url, reason string) {
	s.metrics.rejected.WithLabelValues(reason).Inc()
	if s.logger.IsLevelEnabled(logrus.TraceLevel) {
		s.logger.WithFields(logrus.Fields{
			"session": id,
			"url":     url,
			"reason":  reason,
		}).Trace("url not enqueued")
	}
}
