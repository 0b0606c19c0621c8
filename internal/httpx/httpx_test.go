package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

// mockRoundTripper replays canned responses in order.
type mockRoundTripper struct {
	responses []*http.Response
	errors    []error
	index     int
	mux       sync.Mutex
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.index >= len(m.responses) {
		return nil, errors.New("no more responses")
	}
	resp, err := m.responses[m.index], m.errors[m.index]
	m.index++
	return resp, err
}

func newMockClient(responses []*http.Response, errs []error) (*http.Client, *mockRoundTripper) {
	for len(errs) < len(responses) {
		errs = append(errs, nil)
	}
	rt := &mockRoundTripper{responses: responses, errors: errs}
	return &http.Client{Transport: rt}, rt
}

func newMockResponse(statusCode int, body []byte, headers map[string]string) *http.Response {
	header := http.Header{}
	for k, v := range headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     header,
	}
}

func getRequest(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "https://example.com", nil)
}

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestDoWithRetrySuccess(t *testing.T) {
	client, _ := newMockClient([]*http.Response{newMockResponse(200, []byte(`{"ok":true}`), nil)}, nil)

	resp, body, err := DoWithRetry(context.Background(), client, getRequest, fastConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestDoWithRetryRetryableStatus(t *testing.T) {
	client, rt := newMockClient([]*http.Response{
		newMockResponse(429, []byte("slow down"), map[string]string{"Retry-After": "0"}),
		newMockResponse(200, []byte("done"), nil),
	}, nil)

	_, body, err := DoWithRetry(context.Background(), client, getRequest, fastConfig())
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if string(body) != "done" {
		t.Errorf("unexpected body %q", body)
	}
	if rt.index != 2 {
		t.Errorf("expected 2 attempts, got %d", rt.index)
	}
}

func TestDoWithRetryNonRetryableStatus(t *testing.T) {
	client, rt := newMockClient([]*http.Response{
		newMockResponse(404, []byte("missing"), nil),
		newMockResponse(200, []byte("unused"), nil),
	}, nil)

	_, _, err := DoWithRetry(context.Background(), client, getRequest, fastConfig())
	if StatusCode(err) != 404 {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if rt.index != 1 {
		t.Errorf("expected a single attempt, got %d", rt.index)
	}
}

func TestDoWithRetryMaxAttemptsExceeded(t *testing.T) {
	client, _ := newMockClient([]*http.Response{
		newMockResponse(500, []byte("boom"), nil),
		newMockResponse(502, []byte("boom"), nil),
		newMockResponse(503, []byte("boom"), nil),
	}, nil)

	_, _, err := DoWithRetry(context.Background(), client, getRequest, fastConfig())
	if StatusCode(err) != 503 {
		t.Fatalf("expected final 503, got %v", err)
	}
}

func TestDoWithRetryBuildReqError(t *testing.T) {
	client, _ := newMockClient(nil, nil)
	build := func(context.Context) (*http.Request, error) { return nil, errors.New("request build error") }

	_, _, err := DoWithRetry(context.Background(), client, build, fastConfig())
	if err == nil || !strings.Contains(err.Error(), "request build error") {
		t.Errorf("expected build error, got %v", err)
	}
}

func TestDoWithRetryDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	w.Write([]byte("<html>compressed</html>"))
	w.Close()

	client, _ := newMockClient([]*http.Response{
		newMockResponse(200, buf.Bytes(), map[string]string{"Content-Encoding": "br"}),
	}, nil)

	_, body, err := DoWithRetry(context.Background(), client, getRequest, fastConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html>compressed</html>" {
		t.Errorf("expected decoded body, got %q", body)
	}
}

func TestDoWithRetryBodyLimit(t *testing.T) {
	client, _ := newMockClient([]*http.Response{
		newMockResponse(200, []byte(strings.Repeat("a", 100)), nil),
	}, nil)
	cfg := fastConfig()
	cfg.MaxBodyBytes = 10

	_, body, err := DoWithRetry(context.Background(), client, getRequest, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) != 10 {
		t.Errorf("expected body truncated to 10 bytes, got %d", len(body))
	}
}

func TestDoJSON(t *testing.T) {
	client, _ := newMockClient([]*http.Response{newMockResponse(200, []byte(`{"name":"glow"}`), nil)}, nil)

	var out struct {
		Name string `json:"name"`
	}
	if err := DoJSON(context.Background(), client, getRequest, &out, fastConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "glow" {
		t.Errorf("expected name 'glow', got %q", out.Name)
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	if got := ParseRetryAfter(resp); got != 3*time.Second {
		t.Errorf("expected 3s, got %v", got)
	}
	resp = &http.Response{Header: http.Header{}}
	if got := ParseRetryAfter(resp); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}
