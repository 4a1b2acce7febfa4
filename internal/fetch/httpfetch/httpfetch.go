// Package httpfetch implements the HTTP Fetcher: a retrying, realistic
// browser-shaped GET with gzip/deflate decompression, charset decoding,
// Retry-After-aware backoff, and optional per-domain rate limiting.
package httpfetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"

	"pageforge/internal/domain/entity"
)

// DefaultUserAgent is a recent realistic desktop Chrome UA string, used
// whenever a caller doesn't supply one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// MobileUserAgent is used only by the adaptive fetcher's mobile_ua branch.
const MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 " +
	"(KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

var retryableStatus = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// RateLimiter enforces a minimum interval between requests to the same
// domain. Implemented by internal/fetch/ratelimit.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Auth carries request-time credentials and, optionally, a refresh
// callback invoked once on a 401 response.
type Auth struct {
	Headers         map[string]string
	Cookies         []*http.Cookie
	SupportsRefresh bool
	Refresh         func(ctx context.Context) (map[string]string, error)
}

// Options configures a single Get call.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	MaxRetries  int
	ProxyURL    *url.URL
	Auth        *Auth
	RateLimiter RateLimiter

	// ConditionalHeaders carries If-None-Match / If-Modified-Since for
	// a delta-aware conditional GET; a 304 response still surfaces as
	// a *entity.FetchError with Status=304 for the caller to inspect.
	ConditionalHeaders map[string]string
}

// Response is the full result of a Fetch call: status, headers, and
// decoded body. Get is a thin convenience wrapper that discards
// everything but the body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Client is the reusable HTTP Fetcher. The zero value is not usable;
// construct with New.
type Client struct {
	base *http.Transport
}

// New builds a Client with a hardened base transport (TLS 1.2 floor,
// connection pooling).
func New() *Client {
	return &Client{
		base: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// Get fetches rawURL, retrying transient failures with exponential
// backoff, and returns the decoded response body as a UTF-8 string. It
// fails with *entity.FetchError for any HTTP-level problem, including an
// exhausted retry budget, in which case Body carries whatever was last
// read.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (string, error) {
	resp, err := c.Fetch(ctx, rawURL, opts)
	if err != nil {
		return "", err
	}
	return resp.Body, nil
}

// Fetch is Get's full-fidelity counterpart: it returns the status code
// and response headers alongside the decoded body, which the crawler
// needs for 304/Content-Type handling and conditional-cache bookkeeping.
// A non-2xx status, once the retry budget is exhausted, still fails
// with *entity.FetchError — including on 304, which callers that care
// about delta fetching should special-case on Status.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) (Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Response{}, &entity.FetchError{URL: rawURL, Status: 0, Err: fmt.Errorf("unsupported scheme")}
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := c.clientFor(opts.ProxyURL, timeout)
	extraHeaders := map[string]string{}
	if opts.Auth != nil {
		for k, v := range opts.Auth.Headers {
			extraHeaders[k] = v
		}
	}
	for k, v := range opts.ConditionalHeaders {
		extraHeaders[k] = v
	}

	var lastErr error
	var lastBody string
	var lastStatus int
	var lastHeader http.Header
	refreshedOnce := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if opts.RateLimiter != nil {
			if err := opts.RateLimiter.Wait(ctx, rawURL); err != nil {
				return Response{}, &entity.FetchError{URL: rawURL, Err: err}
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		status, body, header, retryAfter, err := c.doOnce(reqCtx, client, rawURL, opts, extraHeaders)
		cancel()

		if err == nil && status == http.StatusUnauthorized && opts.Auth != nil &&
			opts.Auth.SupportsRefresh && opts.Auth.Refresh != nil && !refreshedOnce {
			refreshedOnce = true
			fresh, rerr := opts.Auth.Refresh(ctx)
			if rerr == nil {
				for k, v := range fresh {
					extraHeaders[k] = v
				}
				continue // consumes this attempt, no sleep
			}
		}

		if err == nil && status >= 200 && status < 300 {
			return Response{StatusCode: status, Header: header, Body: body}, nil
		}

		lastErr = err
		lastBody = body
		lastStatus = status
		lastHeader = header

		if !retryable(status, err) || attempt == maxRetries {
			break
		}

		delay := backoffDelay(attempt, retryAfter)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, &entity.FetchError{URL: rawURL, Status: lastStatus, Body: lastBody, Err: ctx.Err()}
		}
	}

	return Response{}, &entity.FetchError{URL: rawURL, Status: lastStatus, Body: lastBody, Header: lastHeader, Err: lastErr}
}

func (c *Client) clientFor(proxyURL *url.URL, timeout time.Duration) *http.Client {
	transport := c.base
	if proxyURL != nil {
		cloned := c.base.Clone()
		cloned.Proxy = http.ProxyURL(proxyURL)
		transport = cloned
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// doOnce performs a single request attempt and returns the decoded
// body (best effort, even on non-2xx) plus any Retry-After duration.
func (c *Client) doOnce(ctx context.Context, client *http.Client, rawURL string, opts Options, extraHeaders map[string]string) (status int, body string, header http.Header, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", nil, 0, err
	}
	applyBrowserHeaders(req, opts.UserAgent)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	if opts.Auth != nil {
		for _, ck := range opts.Auth.Cookies {
			req.AddCookie(ck)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, perr := strconv.Atoi(ra); perr == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		return resp.StatusCode, "", resp.Header, retryAfter, nil
	}

	reader, derr := decompress(resp)
	if derr != nil {
		return resp.StatusCode, "", resp.Header, retryAfter, derr
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return resp.StatusCode, "", resp.Header, retryAfter, err
	}

	decoded, derr := decodeCharset(raw, resp.Header.Get("Content-Type"))
	if derr != nil {
		decoded = string(raw)
	}
	return resp.StatusCode, decoded, resp.Header, retryAfter, nil
}

func applyBrowserHeaders(req *http.Request, userAgent string) {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Cache-Control", "max-age=0")
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return nil, fmt.Errorf("brotli content-encoding not supported")
	default:
		return resp.Body, nil
	}
}

func decodeCharset(raw []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func retryable(status int, err error) bool {
	if err != nil {
		return true // URL/socket-level errors are retryable
	}
	_, ok := retryableStatus[status]
	return ok
}

// backoffDelay computes 2^attempt + uniform(0,1) seconds, or
// max(retryAfter, 2^attempt) + uniform(0,1) when the server supplied a
// Retry-After duration.
func backoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if retryAfter > base {
		base = retryAfter
	}
	jitter := time.Duration(rand.Float64() * float64(time.Second))
	return base + jitter
}
