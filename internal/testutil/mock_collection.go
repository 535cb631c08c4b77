// Package testutil provides testing utilities for pagefeed.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Post is the wire shape served by MockCollection.
type Post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// MockResponse overrides the response for one page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCollection is an httptest server that serves a paginated collection
// under /<resource>?_page=N&_limit=M, the way jsonplaceholder does.
type MockCollection struct {
	server   *httptest.Server
	mu       sync.RWMutex
	resource string
	items    []Post
	pages    map[int]MockResponse
	delays   map[int]time.Duration
	gates    map[int]chan struct{}
	etags    bool

	// Tracking
	RequestCount      int
	ConditionalCount  int
	RequestedPages    []int
	LastRequestHeader http.Header
}

// NewMockCollection serves total generated posts under resource.
func NewMockCollection(resource string, total int) *MockCollection {
	m := &MockCollection{
		resource: strings.Trim(resource, "/"),
		items:    GeneratePosts(1, total),
		pages:    make(map[int]MockResponse),
		delays:   make(map[int]time.Duration),
		gates:    make(map[int]chan struct{}),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// GeneratePosts returns count posts with consecutive ids starting at firstID.
func GeneratePosts(firstID, count int) []Post {
	posts := make([]Post, 0, count)
	for id := firstID; id < firstID+count; id++ {
		posts = append(posts, Post{
			UserID: (id-1)/10 + 1,
			ID:     id,
			Title:  fmt.Sprintf("post %d", id),
			Body:   fmt.Sprintf("body of post %d", id),
		})
	}
	return posts
}

// URL returns the mock server URL.
func (m *MockCollection) URL() string {
	return m.server.URL
}

// Close shuts down the mock server. Gated pages are released first.
func (m *MockCollection) Close() {
	m.mu.Lock()
	for page, gate := range m.gates {
		close(gate)
		delete(m.gates, page)
	}
	m.mu.Unlock()
	m.server.Close()
}

// SetItems replaces the served collection.
func (m *MockCollection) SetItems(items []Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// SetPageResponse overrides the response for page.
func (m *MockCollection) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = resp
}

// ClearPageResponse removes an override set by SetPageResponse.
func (m *MockCollection) ClearPageResponse(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, page)
}

// SetPageDelay delays every response for page.
func (m *MockCollection) SetPageDelay(page int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[page] = d
}

// HoldPage blocks responses for page until the returned release func is called.
func (m *MockCollection) HoldPage(page int) (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[page] = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[page] == gate {
				delete(m.gates, page)
				close(gate)
			}
			m.mu.Unlock()
		})
	}
}

// EnableETags makes the server send ETags and answer If-None-Match with 304.
func (m *MockCollection) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCollection) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockCollection) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetRequestedPages returns the page numbers requested so far, in order.
func (m *MockCollection) GetRequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.RequestedPages...)
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockCollection) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Clone()
}

func (m *MockCollection) handle(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("_page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("_limit"))

	m.mu.Lock()
	m.RequestCount++
	m.RequestedPages = append(m.RequestedPages, page)
	m.LastRequestHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	override, hasOverride := m.pages[page]
	delay := m.delays[page]
	gate := m.gates[page]
	etags := m.etags
	resource := m.resource
	items := m.items
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if strings.Trim(r.URL.Path, "/") != resource {
		http.NotFound(w, r)
		return
	}

	if hasOverride {
		if override.Delay > 0 {
			time.Sleep(override.Delay)
		}
		for key, value := range override.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	// jsonplaceholder semantics: without _page the whole collection is returned.
	pageItems := items
	if page >= 1 && limit > 0 {
		start := (page - 1) * limit
		end := start + limit
		switch {
		case start >= len(items):
			pageItems = []Post{}
		case end > len(items):
			pageItems = items[start:]
		default:
			pageItems = items[start:end]
		}
	}

	body, err := json.Marshal(pageItems)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))

	if etags {
		etag := fmt.Sprintf(`W/"%d-%d-%d"`, page, limit, len(body))
		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response with an empty object body.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not a list.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"posts": "not-a-list"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitedResponse creates a 200 OK response carrying a rate limit budget.
func NewRateLimitedResponse(body string, remaining, resetSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type":          "application/json; charset=utf-8",
			"X-RateLimit-Remaining": strconv.Itoa(remaining),
			"X-RateLimit-Reset":     strconv.Itoa(resetSeconds),
		},
	}
}
