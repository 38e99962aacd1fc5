// Package testutil provides testing utilities for the storefront cache.
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

// MockResponse defines a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockDocStore is a configurable in-process document store for testing.
// It serves paginated collections and single documents over the same wire
// format as the real store.
type MockDocStore struct {
	server *httptest.Server

	mu          sync.RWMutex
	collections map[string][]json.RawMessage
	documents   map[string]json.RawMessage
	overrides   map[string]MockResponse
	pageErrors  map[string]MockResponse
	failures    []MockResponse

	// Quota reporting, disabled while quotaLimit is 0
	quotaLimit int
	quotaReset int

	// Tracking
	requestCount      int
	pathCounts        map[string]int
	lastRequestHeader http.Header
}

// NewMockDocStore starts a new mock document store.
func NewMockDocStore() *MockDocStore {
	mock := &MockDocStore{
		collections: make(map[string][]json.RawMessage),
		documents:   make(map[string]json.RawMessage),
		overrides:   make(map[string]MockResponse),
		pageErrors:  make(map[string]MockResponse),
		pathCounts:  make(map[string]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockDocStore) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDocStore) Close() {
	m.server.Close()
}

// Reset clears tracking counters and queued failures. Data is kept.
func (m *MockDocStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.lastRequestHeader = nil
	m.failures = nil
}

// SetCollection replaces the documents of a collection. Each document is
// JSON encoded.
func (m *MockDocStore) SetCollection(name string, docs ...any) {
	raw := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		raw = append(raw, mustJSON(doc))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = raw
}

// SetDocument stores a single document.
func (m *MockDocStore) SetDocument(collection, id string, doc any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[collection+"/"+id] = mustJSON(doc)
}

// DeleteDocument removes a single document.
func (m *MockDocStore) DeleteDocument(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, collection+"/"+id)
}

// SetResponse overrides every response for an exact path.
func (m *MockDocStore) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = resp
}

// SetPageResponse overrides the response for one page of a collection listing.
func (m *MockDocStore) SetPageResponse(collection string, page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageErrors[pageKey(collection, page)] = resp
}

// FailNext queues responses served, in order, before normal handling resumes.
func (m *MockDocStore) FailNext(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, responses...)
}

// SetQuota makes every response report a RateLimit quota that starts at limit
// and drops by one per request, resetting resetSeconds from each response.
func (m *MockDocStore) SetQuota(limit, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotaLimit = limit
	m.quotaReset = resetSeconds
}

// RequestCount returns the number of requests made to the server.
func (m *MockDocStore) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to a path.
func (m *MockDocStore) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockDocStore) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

func (m *MockDocStore) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.pathCounts[r.URL.Path]++
	m.lastRequestHeader = r.Header.Clone()

	var canned *MockResponse
	if len(m.failures) > 0 {
		resp := m.failures[0]
		m.failures = m.failures[1:]
		canned = &resp
	} else if resp, ok := m.overrides[r.URL.Path]; ok {
		canned = &resp
	}
	if m.quotaLimit > 0 {
		remaining := m.quotaLimit - m.requestCount
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(m.quotaReset))
	}
	m.mu.Unlock()

	if canned != nil {
		writeCanned(w, *canned)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// /v1/collections/{collection}/documents[/{id}]
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "collections" && parts[3] == "documents":
		m.serveListing(w, r, parts[2])
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "collections" && parts[3] == "documents":
		m.serveDocument(w, parts[2], parts[4])
	default:
		writeError(w, http.StatusNotFound, "unknown path")
	}
}

func (m *MockDocStore) serveListing(w http.ResponseWriter, r *http.Request, collection string) {
	m.mu.RLock()
	docs, ok := m.collections[collection]
	m.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 100)
	if page < 1 || pageSize < 1 {
		writeError(w, http.StatusBadRequest, "invalid pagination")
		return
	}

	m.mu.RLock()
	canned, override := m.pageErrors[pageKey(collection, page)]
	m.mu.RUnlock()
	if override {
		writeCanned(w, canned)
		return
	}

	totalPages := (len(docs) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(docs) {
		start = len(docs)
	}
	if end > len(docs) {
		end = len(docs)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Total-Pages", strconv.Itoa(totalPages))
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(docs[start:end])
}

func (m *MockDocStore) serveDocument(w http.ResponseWriter, collection, id string) {
	m.mu.RLock()
	doc, ok := m.documents[collection+"/"+id]
	m.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func pageKey(collection string, page int) string {
	return collection + "#" + strconv.Itoa(page)
}

func writeCanned(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error": %q}`, msg)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func mustJSON(v any) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode document: %v", err))
	}
	return data
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	headers := map[string]string{"Content-Type": "application/json; charset=utf-8"}
	if retryAfterSeconds > 0 {
		headers["Retry-After"] = strconv.Itoa(retryAfterSeconds)
	}
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    headers,
	}
}

// NewClientErrorResponse creates a 400 Bad Request response.
func NewClientErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "Bad request"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
