package browser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoBrowser is returned when a tool needs a running browser.
	ErrNoBrowser = errors.New("no browser running; call launch_browser first")
	// ErrNoPage is returned when a tool needs an open page.
	ErrNoPage = errors.New("no open page; call new_page first")
)

type browserEntry struct {
	id       string
	browser  Browser
	headless bool
	started  time.Time
}

type pageEntry struct {
	id        string
	browserID string
	page      Page
	opened    time.Time
}

// Sessions tracks running browsers, their pages and the current page.
// Listing order is creation order.
type Sessions struct {
	mu       sync.Mutex
	browsers []*browserEntry
	pages    []*pageEntry
	current  string
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{}
}

func (s *Sessions) addBrowser(b Browser, headless bool) *browserEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &browserEntry{id: uuid.NewString(), browser: b, headless: headless, started: time.Now()}
	s.browsers = append(s.browsers, e)
	return e
}

// browser returns the browser with id, or the newest one when id is empty.
func (s *Sessions) browser(id string) (*browserEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		if len(s.browsers) == 0 {
			return nil, ErrNoBrowser
		}
		return s.browsers[len(s.browsers)-1], nil
	}
	for _, b := range s.browsers {
		if b.id == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("browser %s not found", id)
}

// removeBrowser drops a browser and its pages and returns them.
func (s *Sessions) removeBrowser(id string) (*browserEntry, []*pageEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed *browserEntry
	kept := s.browsers[:0]
	for _, b := range s.browsers {
		if b.id == id {
			removed = b
			continue
		}
		kept = append(kept, b)
	}
	s.browsers = kept

	var pages []*pageEntry
	keptPages := s.pages[:0]
	for _, p := range s.pages {
		if p.browserID == id {
			pages = append(pages, p)
			continue
		}
		keptPages = append(keptPages, p)
	}
	s.pages = keptPages
	s.fixCurrentLocked()
	return removed, pages
}

func (s *Sessions) allBrowsers() []*browserEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*browserEntry(nil), s.browsers...)
}

// addPage registers p and makes it current.
func (s *Sessions) addPage(browserID string, p Page) *pageEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &pageEntry{id: uuid.NewString(), browserID: browserID, page: p, opened: time.Now()}
	s.pages = append(s.pages, e)
	s.current = e.id
	return e
}

// page returns the page with id, or the current page when id is empty.
func (s *Sessions) page(id string) (*pageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = s.current
		if id == "" {
			return nil, ErrNoPage
		}
	}
	for _, p := range s.pages {
		if p.id == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("page %s not found", id)
}

// setCurrent makes the page with id current.
func (s *Sessions) setCurrent(id string) (*pageEntry, error) {
	p, err := s.page(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = p.id
	s.mu.Unlock()
	return p, nil
}

// removePage drops a page. The newest remaining page becomes current when
// the current page is removed.
func (s *Sessions) removePage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.pages[:0]
	for _, p := range s.pages {
		if p.id != id {
			kept = append(kept, p)
		}
	}
	s.pages = kept
	s.fixCurrentLocked()
}

func (s *Sessions) allPages() ([]*pageEntry, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*pageEntry(nil), s.pages...), s.current
}

func (s *Sessions) fixCurrentLocked() {
	for _, p := range s.pages {
		if p.id == s.current {
			return
		}
	}
	s.current = ""
	if n := len(s.pages); n > 0 {
		s.current = s.pages[n-1].id
	}
}
