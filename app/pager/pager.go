package pager

import (
	"slices"
	"sync"

	"github.com/lysyi3m/rss-mosaic/app/feed"
)

const DefaultPageSize = 32

type State int

const (
	Idle State = iota
	Paging
	Exhausted
)

func (s State) String() string {
	switch s {
	case Paging:
		return "paging"
	case Exhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

type Page struct {
	Index    int            `json:"index"`
	Articles []feed.Article `json:"articles"`
	Last     bool           `json:"last"`
}

// Pager delivers an aggregation result in fixed-size pages.
//
// A page handed out by Next is "in flight" until the caller acknowledges it
// with Consumed; a Next call made in the meantime is a no-op. Once the
// result runs out the pager is Exhausted and keeps returning empty pages.
//
// Start itself delivers page 0, so the first Next yields page 1. With 70
// articles and a page size of 32, Start returns 32 articles and successive
// Next calls return 32, 6 (Last set) and then empty pages.
type Pager struct {
	mu       sync.Mutex
	result   []feed.Article
	pageSize int
	cursor   int
	state    State
	inFlight bool
}

func New() *Pager {
	return &Pager{pageSize: DefaultPageSize}
}

// Start resets the pager onto a new result and returns its first page.
// pageSize <= 0 selects DefaultPageSize.
func (p *Pager) Start(result []feed.Article, pageSize int) Page {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	p.result = result
	p.pageSize = pageSize
	p.cursor = 0
	p.state = Paging
	p.inFlight = false

	return p.take()
}

// Next returns the following page. It reports false without advancing when
// the previous page has not been consumed yet or Start was never called.
func (p *Pager) Next() (Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.state == Idle, p.inFlight:
		return Page{}, false
	case p.state == Exhausted:
		return Page{Index: p.cursor, Articles: []feed.Article{}, Last: true}, true
	}

	p.inFlight = true
	return p.take(), true
}

// Consumed marks the page returned by the last Next as delivered.
func (p *Pager) Consumed() {
	p.mu.Lock()
	p.inFlight = false
	p.mu.Unlock()
}

func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Remaining is the number of articles not yet handed out.
func (p *Pager) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return max(len(p.result)-p.cursor*p.pageSize, 0)
}

func (p *Pager) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.result)
}

// take slices out the page at cursor and advances. Callers hold mu.
func (p *Pager) take() Page {
	start := min(p.cursor*p.pageSize, len(p.result))
	end := min(start+p.pageSize, len(p.result))

	page := Page{
		Index:    p.cursor,
		Articles: slices.Clone(p.result[start:end]),
	}
	if page.Articles == nil {
		page.Articles = []feed.Article{}
	}

	p.cursor++
	if end >= len(p.result) {
		p.state = Exhausted
		page.Last = true
	}

	return page
}
