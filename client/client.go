package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Interceptor observes every outcome of Client.Do. It receives the request,
// the response (nil when none arrived) and the error, and returns the outcome
// handed to the next interceptor or to the caller.
type Interceptor interface {
	Intercept(ctx context.Context, req *Request, resp *Response, err error) (*Response, error)
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(ctx context.Context, req *Request, resp *Response, err error) (*Response, error)

func (f InterceptorFunc) Intercept(ctx context.Context, req *Request, resp *Response, err error) (*Response, error) {
	return f(ctx, req, resp, err)
}

// Retry settings for idempotent requests.
const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	MaxRetries        int
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

type registeredInterceptor struct {
	id int
	ic Interceptor
}

// Client sends requests to the API. It holds default headers applied to
// every request and an ordered chain of response interceptors.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
	maxRetries int
	limiter    *RateLimiter
	sleep      func(time.Duration)

	mu            sync.RWMutex
	defaultHeader http.Header
	interceptors  []registeredInterceptor
	nextID        int
}

// New creates a Client from opts.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "gymctl"
	}

	return &Client{
		baseURL:       base,
		httpClient:    hc,
		userAgent:     ua,
		maxRetries:    max(opts.MaxRetries, 0),
		limiter:       NewRateLimiter(opts.RequestsPerSecond, 1),
		sleep:         time.Sleep,
		defaultHeader: make(http.Header),
	}, nil
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// SetDefaultHeader sets a header sent with every request that does not set it itself.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHeader.Set(key, value)
}

// DeleteDefaultHeader removes a default header.
func (c *Client) DeleteDefaultHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultHeader.Del(key)
}

// DefaultHeader returns the current value of a default header.
func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultHeader.Get(key)
}

// Use appends an interceptor to the chain and returns its id.
func (c *Client) Use(ic Interceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.interceptors = append(c.interceptors, registeredInterceptor{id: c.nextID, ic: ic})
	return c.nextID
}

// Eject removes the interceptor with the given id. It reports whether the
// interceptor was attached.
func (c *Client) Eject(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.interceptors {
		if r.id == id {
			c.interceptors = append(c.interceptors[:i:i], c.interceptors[i+1:]...)
			return true
		}
	}
	return false
}

// InterceptorCount returns the number of attached interceptors.
func (c *Client) InterceptorCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.interceptors)
}

// Do sends the request and runs the outcome through the interceptor chain.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.Send(ctx, req)

	c.mu.RLock()
	chain := make([]registeredInterceptor, len(c.interceptors))
	copy(chain, c.interceptors)
	c.mu.RUnlock()

	for _, r := range chain {
		resp, err = r.ic.Intercept(ctx, req, resp, err)
	}
	return resp, err
}

// Send sends the request without running interceptors. A non-2xx response is
// returned together with an *HTTPError; a missing response yields a
// *TransportError.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.resolveURL(req)
	if err != nil {
		return nil, err
	}

	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, req, target)
		if attempt >= c.maxRetries || !isIdempotent(req.Method) || !shouldRetry(ctx, resp, err) {
			return resp, err
		}
		log.Warn().Err(err).Str("method", req.Method).Str("url", target).Int("attempt", attempt+1).Msg("Retrying request")
		c.sleep(delay)
		delay = min(delay*2, retryMaxDelay)
	}
}

func (c *Client) attempt(ctx context.Context, req *Request, target string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, target, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", target).Msg("Failed to create HTTP request object")
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}
	httpReq.Header = c.buildHeader(req, contentType)
	req.sentToken = strings.TrimPrefix(httpReq.Header.Get("Authorization"), BearerPrefix)

	requestID := httpReq.Header.Get("X-Request-ID")
	log.Debug().Str("method", req.Method).Str("url", target).Str("request_id", requestID).Bool("replay", req.replayed).Msg("Sending HTTP request")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", target).Str("request_id", requestID).Msg("HTTP request failed")
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		log.Error().Err(err).Str("url", target).Msg("Failed to read response body")
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Request:    req,
	}
	if !resp.OK() {
		log.Debug().Str("method", req.Method).Str("url", target).Str("request_id", requestID).Int("status", resp.StatusCode).Msg("HTTP request returned non-OK status")
		return resp, &HTTPError{StatusCode: resp.StatusCode, Body: data}
	}
	log.Debug().Str("method", req.Method).Str("url", target).Str("request_id", requestID).Int("status", resp.StatusCode).Msg("HTTP request successful")
	return resp, nil
}

// buildHeader merges default headers with the request's own. Request headers
// win; the content type follows the encoded body.
func (c *Client) buildHeader(req *Request, contentType string) http.Header {
	c.mu.RLock()
	h := c.defaultHeader.Clone()
	c.mu.RUnlock()
	if h == nil {
		h = make(http.Header)
	}
	for k, v := range req.Header {
		h[k] = append([]string(nil), v...)
	}

	if _, ok := req.Body.(*Multipart); ok {
		h.Set("Content-Type", contentType)
	} else if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}
	h.Set("User-Agent", c.userAgent)
	h.Set("X-Request-ID", uuid.NewString())
	return h
}

func (c *Client) resolveURL(req *Request) (string, error) {
	ref, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", req.URL, err)
	}
	var u *url.URL
	if isAbsoluteURL(req.URL) {
		u = ref
	} else {
		ref.Path = strings.TrimPrefix(ref.Path, "/")
		u = c.baseURL.ResolveReference(ref)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// shouldRetry reports whether an attempt failed in a way worth retrying:
// a transport failure while ctx is still live, or a gateway-class status.
func shouldRetry(ctx context.Context, resp *Response, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return !errors.Is(te.Err, context.Canceled) && !errors.Is(te.Err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
