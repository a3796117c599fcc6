// Package httputil provides an HTTP client abstraction so the OSRM client
// can be driven by a fake transport in tests instead of a real server.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Client abstracts the one HTTP verb the OSRM client needs. Use
// NewStandardClient for production, NewMockClient for tests.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// StandardClient wraps *http.Client to implement Client.
type StandardClient struct {
	*http.Client
}

// NewStandardClient wraps c, or http.DefaultClient if c is nil.
func NewStandardClient(c *http.Client) *StandardClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &StandardClient{Client: c}
}

// Do sends the request.
func (c *StandardClient) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

// MockClient is a testable stand-in for Client: it records every request it
// sees and replays a queue of canned responses.
type MockClient struct {
	mu          sync.Mutex
	DoFunc      func(req *http.Request) (*http.Response, error)
	Requests    []*http.Request
	Responses   []*MockResponse
	responseIdx int
}

// MockResponse is a canned response or error for MockClient to return.
type MockResponse struct {
	StatusCode int
	Body       string
	Error      error
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{Requests: []*http.Request{}, Responses: []*MockResponse{}}
}

// AddResponse queues a response to return on the next call to Do.
func (m *MockClient) AddResponse(statusCode int, body string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{StatusCode: statusCode, Body: body})
	return m
}

// AddErrorResponse queues a transport-level error to return on the next
// call to Do.
func (m *MockClient) AddErrorResponse(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, &MockResponse{Error: err})
	return m
}

// Do records the request and returns the next queued response.
func (m *MockClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}

	if m.responseIdx >= len(m.Responses) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("")), Request: req}, nil
	}

	resp := m.Responses[m.responseIdx]
	m.responseIdx++
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(resp.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// RequestCount returns the number of recorded requests.
func (m *MockClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequestURL returns the URL of the most recently recorded request, or
// "" if none has been made yet.
func (m *MockClient) LastRequestURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return ""
	}
	return m.Requests[len(m.Requests)-1].URL.String()
}
