package integration

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// LinkSite is a fake provider website that answers link probes with
// configured statuses and records how often each path was hit. Unknown
// paths answer 404.
type LinkSite struct {
	server *httptest.Server

	mu       sync.Mutex
	statuses map[string]int
	hits     map[string]int
}

func newLinkSite(t *testing.T) *LinkSite {
	t.Helper()
	ls := &LinkSite{
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
	ls.server = httptest.NewServer(http.HandlerFunc(ls.handle))
	t.Cleanup(ls.server.Close)
	return ls
}

func (ls *LinkSite) handle(w http.ResponseWriter, r *http.Request) {
	ls.mu.Lock()
	ls.hits[r.URL.Path]++
	status, ok := ls.statuses[r.URL.Path]
	ls.mu.Unlock()

	if !ok {
		status = http.StatusNotFound
	}
	w.WriteHeader(status)
}

// URL returns the absolute URL for path on this site.
func (ls *LinkSite) URL(path string) string {
	return ls.server.URL + path
}

// Serve makes path answer with status.
func (ls *LinkSite) Serve(path string, status int) *LinkSite {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.statuses[path] = status
	return ls
}

// Hits returns how many requests path received.
func (ls *LinkSite) Hits(path string) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.hits[path]
}

// Reset clears recorded hits.
func (ls *LinkSite) Reset() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.hits = make(map[string]int)
}
