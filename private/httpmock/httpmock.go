// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package httpmock provides a scriptable http.RoundTripper for tests.
// Responses are keyed by method and URL and consumed in sequence, and
// every request is recorded so tests can assert on submitted payloads.
package httpmock

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// Response represents a mocked HTTP response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Request is one recorded request with its body fully read.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// Transport is a custom HTTP transport for handling mocked responses.
type Transport struct {
	mutex     sync.Mutex
	responses map[string][]Response
	requests  []Request
}

// NewTransport creates a new instance of Transport.
func NewTransport() *Transport {
	return &Transport{
		responses: make(map[string][]Response),
	}
}

func key(method, url string) string {
	return method + " " + url
}

// AddResponse registers a response for a given method and URL.
// Multiple responses for the same key are returned in sequence; a drained
// queue answers 404.
func (t *Transport) AddResponse(method, url string, response Response) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.responses[key(method, url)] = append(t.responses[key(method, url)], response)
}

// Requests returns every request seen so far.
func (t *Transport) Requests() []Request {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]Request{}, t.requests...)
}

// LastRequest returns the most recent request, or nil.
func (t *Transport) LastRequest() *Request {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	last := t.requests[len(t.requests)-1]
	return &last
}

// RoundTrip implements the http.RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	body := ""
	if req.Body != nil {
		content, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		body = string(content)
	}
	t.requests = append(t.requests, Request{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	responses := t.responses[key(req.Method, req.URL.String())]
	if len(responses) == 0 {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("Not Found")),
			Request:    req,
		}, nil
	}

	response := responses[0]
	t.responses[key(req.Method, req.URL.String())] = responses[1:]

	headers := make(http.Header)
	for k, v := range response.Headers {
		headers.Set(k, v)
	}
	return &http.Response{
		StatusCode: response.StatusCode,
		Header:     headers,
		Body:       io.NopCloser(strings.NewReader(response.Body)),
		Request:    req,
	}, nil
}

// NewClient creates an *http.Client configured to use the Transport.
func NewClient() (*http.Client, *Transport) {
	transport := NewTransport()
	client := &http.Client{Transport: transport}
	return client, transport
}
