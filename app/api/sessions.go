package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-mosaic/app/aggregator"
	"github.com/lysyi3m/rss-mosaic/app/pager"
)

const DefaultSessionTTL = 30 * time.Minute

// Session is one client's browsing state: the current result being paged
// through and the generation guard for its refreshes.
type Session struct {
	ID       string
	PageSize int
	Category string
	Day      time.Time

	mu    sync.Mutex
	mode  aggregator.Mode
	gens  aggregator.Generations
	pager *pager.Pager
}

func newSession(mode aggregator.Mode, pageSize int, category string, day time.Time) *Session {
	return &Session{
		ID:       uuid.NewString(),
		PageSize: pageSize,
		Category: category,
		Day:      day,
		mode:     mode,
		pager:    pager.New(),
	}
}

func (s *Session) options() []aggregator.Option {
	var opts []aggregator.Option
	if s.Category != "" {
		opts = append(opts, aggregator.InCategory(s.Category))
	}
	if !s.Day.IsZero() {
		opts = append(opts, aggregator.OnDay(s.Day))
	}
	return opts
}

// apply installs a finished aggregation unless a newer one was issued
// meanwhile. It reports whether the result was applied.
func (s *Session) apply(tagged aggregator.Tagged) (pager.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.gens.IsLatest(tagged.Generation) {
		return pager.Page{}, false
	}

	s.mode = tagged.Result.Mode
	return s.pager.Start(tagged.Result.Articles, s.PageSize), true
}

func (s *Session) Mode() aggregator.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) response(page pager.Page) sessionResponse {
	return sessionResponse{
		Session:   s.ID,
		Mode:      s.Mode(),
		Total:     s.pager.Total(),
		Remaining: s.pager.Remaining(),
		State:     s.pager.State().String(),
		Page:      page,
	}
}

// SessionStore keeps sessions in memory and drops those idle for longer
// than the TTL whenever the store is accessed.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastSeen map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (st *SessionStore) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictLocked()
	st.sessions[s.ID] = s
	st.lastSeen[s.ID] = st.now()
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictLocked()
	s, ok := st.sessions[id]
	if ok {
		st.lastSeen[id] = st.now()
	}
	return s, ok
}

func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	_, ok := st.sessions[id]
	delete(st.sessions, id)
	delete(st.lastSeen, id)
	return ok
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) evictLocked() {
	cutoff := st.now().Add(-st.ttl)
	for id, seen := range st.lastSeen {
		if seen.Before(cutoff) {
			delete(st.sessions, id)
			delete(st.lastSeen, id)
		}
	}
}
