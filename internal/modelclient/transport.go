package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Transport is the contract named in spec.md §4.J: send a request, get
// back a byte stream. HTTPTransport talks to a live Responses-style
// endpoint; MockTransport replays fixed chunks for tests.
type Transport interface {
	Send(ctx context.Context, req Request) (io.ReadCloser, *TransportError, error)
}

// TransportError carries HTTP-layer failure details (status code,
// Retry-After) up to the retry policy without forcing every caller to
// re-parse an *http.Response.
type TransportError struct {
	StatusCode int
	RetryAfter float64
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: status=%d body=%s", e.StatusCode, e.Body)
}

// HTTPTransport POSTs the request to <BaseURL>/responses with a bearer
// Authorization header, accepting text/event-stream.
type HTTPTransport struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

// NewHTTPTransport builds a transport with a sane default client.
func NewHTTPTransport(baseURL, bearerToken string) *HTTPTransport {
	return &HTTPTransport{BaseURL: baseURL, BearerToken: bearerToken, HTTPClient: http.DefaultClient}
}

func (t *HTTPTransport) Send(ctx context.Context, req Request) (io.ReadCloser, *TransportError, error) {
	body, err := json.Marshal(req.toWire())
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+t.BearerToken)

	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &TransportError{StatusCode: resp.StatusCode, RetryAfter: retryAfter, Body: string(errBody)}, nil
	}

	return resp.Body, nil, nil
}

func parseRetryAfter(header string) float64 {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(header, 64); err == nil {
		return seconds
	}
	return 0
}

// MockTransport replays a fixed sequence of SSE chunks, ignoring the
// request. It exists for driver and parser tests that need a
// deterministic transport with no network dependency.
type MockTransport struct {
	Chunks []string
	Err    error
}

func (t *MockTransport) Send(ctx context.Context, req Request) (io.ReadCloser, *TransportError, error) {
	if t.Err != nil {
		return nil, nil, t.Err
	}
	var buf bytes.Buffer
	for _, c := range t.Chunks {
		buf.WriteString(c)
	}
	return io.NopCloser(&buf), nil, nil
}
