// Package testutil provides testing utilities for the kline fetcher.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines one scripted answer of the mock exchange.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	// Delay holds the response back; the handler gives up early when the
	// client disconnects.
	Delay time.Duration
}

// MockBinance is a scripted klines endpoint. Queued responses are served in
// order; once the queue is empty every request gets the fallback response.
type MockBinance struct {
	server *httptest.Server

	mu       sync.Mutex
	queue    []MockResponse
	fallback MockResponse
	handler  http.HandlerFunc

	requests    []url.Values
	lastHeaders http.Header
}

// NewMockBinance starts a mock exchange that answers 200 with an empty page
// until responses are queued.
func NewMockBinance() *MockBinance {
	m := &MockBinance{
		fallback: NewPageResponse(nil),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockBinance) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.Query())
	m.lastHeaders = r.Header.Clone()
	handler := m.handler
	resp := m.fallback
	if len(m.queue) > 0 {
		resp = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server base URL.
func (m *MockBinance) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBinance) Close() {
	m.server.Close()
}

// Enqueue appends scripted responses.
func (m *MockBinance) Enqueue(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// EnqueueStatus appends bare responses with the given status codes.
func (m *MockBinance) EnqueueStatus(codes ...int) {
	for _, code := range codes {
		m.Enqueue(MockResponse{StatusCode: code, Body: `{"code":-1,"msg":"scripted"}`})
	}
}

// SetFallback sets the response served once the queue is empty.
func (m *MockBinance) SetFallback(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// SetHandler replaces scripted responses with a custom handler.
func (m *MockBinance) SetHandler(h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// RequestCount returns the number of requests served.
func (m *MockBinance) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the query of every request served, in order.
func (m *MockBinance) Requests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]url.Values, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastHeaders returns the headers of the most recent request.
func (m *MockBinance) LastHeaders() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeaders
}

// KlineRows builds n kline rows in the exchange's 12-column layout, starting
// at startMs and spaced step apart. Prices increase with the row index.
func KlineRows(startMs int64, step time.Duration, n int) [][]any {
	rows := make([][]any, 0, n)
	stepMs := step.Milliseconds()
	for i := 0; i < n; i++ {
		open := startMs + int64(i)*stepMs
		price := strconv.Itoa(100 + i)
		rows = append(rows, []any{
			open,
			price + ".00",
			price + ".50",
			price + ".00",
			price + ".25",
			"12.5",
			open + stepMs - 1,
			"1250.0",
			42,
			"6.0",
			"600.0",
			"0",
		})
	}
	return rows
}

// KlineBody marshals rows into a response body.
func KlineBody(rows [][]any) string {
	if rows == nil {
		return "[]"
	}
	data, err := json.Marshal(rows)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// NewPageResponse creates a 200 response carrying rows.
func NewPageResponse(rows [][]any) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       KlineBody(rows),
		Headers: map[string]string{
			"Content-Type":         "application/json;charset=UTF-8",
			"X-MBX-USED-WEIGHT-1M": "2",
		},
	}
}

// NewTimeoutResponse creates a response that outlasts any sane client timeout.
func NewTimeoutResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "[]",
		Delay:      5 * time.Second,
	}
}

// SleepRecorder is a SleepFunc that records requested durations instead of
// sleeping.
type SleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

// Sleep records d and returns immediately, or returns ctx.Err() if ctx is done.
func (s *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Calls returns the recorded durations in order.
func (s *SleepRecorder) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.calls))
	copy(out, s.calls)
	return out
}
