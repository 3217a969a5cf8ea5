// Package http is the outbound JSON client used for webhooks.
//
//	resp, err := client.Post(url).
//	    Header("X-Event", "order.placed").
//	    Body(payload).
//	    Retry(3, 500*time.Millisecond).
//	    Send(ctx)
//	if err == nil {
//	    err = resp.Throw()
//	}
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"time"

	"github.com/buddyengineerz/storefront/pkg/logger"
)

// maxBody caps how much of a response is kept.
const maxBody = 1 << 20

var defaultTransport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        50,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
}

// Client sends requests over a shared pooled transport.
type Client struct {
	HTTP *gohttp.Client
}

// New returns a client whose attempts each time out after timeout.
func New(timeout time.Duration) *Client {
	return &Client{HTTP: &gohttp.Client{Transport: defaultTransport, Timeout: timeout}}
}

// Request is a fluent request builder.
type Request struct {
	client    *Client
	method    string
	url       string
	headers   map[string]string
	body      any
	retries   int
	retryWait time.Duration
}

func (c *Client) Get(url string) *Request  { return c.newRequest(gohttp.MethodGet, url) }
func (c *Client) Post(url string) *Request { return c.newRequest(gohttp.MethodPost, url) }

func (c *Client) newRequest(method, url string) *Request {
	return &Request{
		client:    c,
		method:    method,
		url:       url,
		headers:   map[string]string{"Accept": "application/json"},
		retries:   1,
		retryWait: 500 * time.Millisecond,
	}
}

func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

func (r *Request) Headers(h map[string]string) *Request {
	for k, v := range h {
		r.headers[k] = v
	}
	return r
}

// Body sets the request body. Strings and byte slices go out raw,
// anything else as JSON.
func (r *Request) Body(v any) *Request {
	r.body = v
	return r
}

// Retry sets the total attempts and the first backoff, which doubles on
// each retry. Transport errors and 5xx answers are retried.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	if n < 1 {
		n = 1
	}
	r.retries = n
	r.retryWait = wait
	return r
}

// Send runs the request. A non-2xx answer is not an error here; call
// Throw on the response for that.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	payload, ct, err := r.encode()
	if err != nil {
		return nil, err
	}

	var (
		resp    *Response
		lastErr error
		wait    = r.retryWait
	)
	for attempt := 1; attempt <= r.retries; attempt++ {
		resp, lastErr = r.do(ctx, payload, ct)
		if lastErr == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if attempt == r.retries {
			break
		}
		logger.WithCtx(ctx).Warn("http: request failed, retrying",
			"url", r.url, "attempt", attempt, "backoff", wait, "error", lastErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	if lastErr != nil {
		return nil, fmt.Errorf("http: %s %s failed after %d attempts: %w", r.method, r.url, r.retries, lastErr)
	}
	return resp, nil
}

func (r *Request) do(ctx context.Context, payload []byte, ct string) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	hc := r.client.HTTP
	if hc == nil {
		hc = gohttp.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Headers: res.Header, Raw: raw}, nil
}

func (r *Request) encode() ([]byte, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(v), "text/plain", nil
	case []byte:
		return v, "application/octet-stream", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return b, "application/json", nil
	}
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

// Throw turns a non-2xx answer into an error.
func (r *Response) Throw() error {
	if !r.OK() {
		return fmt.Errorf("http: request failed with HTTP %d", r.StatusCode)
	}
	return nil
}
