package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	randv2 "math/rand/v2"
	"net"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client wraps http.Client with logging, default headers and retries.
type Client struct {
	hc            *stdhttp.Client
	log           *slog.Logger
	retries       int
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	headers       map[string]string
	retryMethods  map[string]struct{}
	retryNonIdem  bool
	maxReplayBody int64
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the overall per-attempt timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = t }
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetries enables n retries with exponential backoff and jitter.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		if backoff > 0 {
			c.baseBackoff = backoff
		}
	}
}

// WithMaxBackoff limits exponential backoff growth.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) { c.maxBackoff = d }
}

// WithHeaders adds default headers to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithRetryNonIdempotent allows retries for POST without an Idempotency-Key.
// Only safe for endpoints where a duplicate request is harmless.
func WithRetryNonIdempotent(v bool) Option {
	return func(c *Client) { c.retryNonIdem = v }
}

// New creates configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxIdleConnsPerHost = 20
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 60 * time.Second

	c := &Client{
		hc:            &stdhttp.Client{Timeout: 60 * time.Second, Transport: tr},
		log:           slog.Default(),
		baseBackoff:   250 * time.Millisecond,
		maxBackoff:    10 * time.Second,
		headers:       map[string]string{"User-Agent": "dailydev/1.0"},
		maxReplayBody: 1 << 20,
		retryMethods: map[string]struct{}{
			stdhttp.MethodGet:    {},
			stdhttp.MethodHead:   {},
			stdhttp.MethodPut:    {},
			stdhttp.MethodDelete: {},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ErrReplayBodyTooLarge indicates request body exceeds replay limit.
var ErrReplayBodyTooLarge = errors.New("http: body too large for replay")

// StatusError is a non-2xx response turned into an error by CheckStatus.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Code, e.Body)
}

// Temporary reports whether the provider may succeed on a later attempt.
func (e *StatusError) Temporary() bool {
	return e.Code == stdhttp.StatusTooManyRequests || e.Code >= 500
}

// CheckStatus returns nil for 2xx. Otherwise it reads up to 4KB of the body,
// closes it and returns a *StatusError tagged with service.
func CheckStatus(service string, resp *stdhttp.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	drainAndClose(resp.Body)
	return &StatusError{Service: service, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// retryAfter parses Retry-After header value.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := stdhttp.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// drainAndClose drains up to 512KB from body and closes it.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, b, 512<<10)
	_ = b.Close()
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		var ne net.Error
		if errors.As(ue.Err, &ne) && ne.Timeout() {
			return true
		}
		var oe *net.OpError
		if errors.As(ue.Err, &oe) {
			return true
		}
		var dnsErr *net.DNSError
		if errors.As(ue.Err, &dnsErr) && dnsErr.IsTemporary {
			return true
		}
	}
	return false
}

// retryInfo decides whether to retry and returns an optional server-provided delay.
func retryInfo(resp *stdhttp.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, isRetryableError(err)
	}
	switch {
	case resp.StatusCode == 408 || resp.StatusCode == 425:
		drainAndClose(resp.Body)
		return 0, true
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		delay := retryAfter(resp.Header.Get("Retry-After"))
		drainAndClose(resp.Body)
		return delay, true
	default:
		return 0, false
	}
}

func (c *Client) bufferBody(req *stdhttp.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	limited := io.LimitReader(req.Body, c.maxReplayBody+1)
	body, err := io.ReadAll(limited)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	if int64(len(body)) > c.maxReplayBody {
		return ErrReplayBodyTooLarge
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	req.Body, _ = req.GetBody()
	return nil
}

// Do sends HTTP request with context, logging and retries.
// POST is retried only with an Idempotency-Key header or WithRetryNonIdempotent.
func (c *Client) Do(ctx context.Context, req *stdhttp.Request) (*stdhttp.Response, error) {
	if err := c.bufferBody(req); err != nil {
		return nil, err
	}

	retries := c.retries
	if _, ok := c.retryMethods[req.Method]; !ok && req.Header.Get("Idempotency-Key") == "" && !c.retryNonIdem {
		retries = 0
	}

	var lastErr error
	for attempt := 1; attempt <= retries+1; attempt++ {
		r := req.Clone(ctx)
		for k, v := range c.headers {
			if r.Header.Get(k) == "" {
				r.Header.Set(k, v)
			}
		}
		if r.GetBody != nil {
			rc, err := r.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = rc
		}

		u := r.URL.Redacted()
		st := time.Now()
		resp, err := c.hc.Do(r)
		dur := time.Since(st)

		var (
			delay time.Duration
			retry bool
		)
		if attempt <= retries {
			delay, retry = retryInfo(resp, err)
		}
		if !retry {
			if err != nil {
				c.log.Warn("http request error", "method", r.Method, "url", u, "attempt", attempt, "err", err)
				return nil, err
			}
			c.log.Debug("http request", "method", r.Method, "url", u, "status", resp.StatusCode, "dur", dur, "attempt", attempt)
			return resp, nil
		}

		wait := delay
		if wait <= 0 {
			wait = c.baseBackoff * time.Duration(1<<uint(attempt-1))
			wait += time.Duration(randv2.Int64N(int64(wait)/2 + 1))
		}
		if c.maxBackoff > 0 && wait > c.maxBackoff {
			wait = c.maxBackoff
		}
		if deadline, ok := ctx.Deadline(); ok {
			rem := time.Until(deadline)
			if rem <= 0 {
				return nil, context.DeadlineExceeded
			}
			if wait > rem {
				wait = rem
			}
		}

		if err != nil {
			lastErr = err
			c.log.Warn("http request error, retrying", "method", r.Method, "url", u, "attempt", attempt, "wait", wait, "err", err)
		} else {
			lastErr = fmt.Errorf("%s %s: unexpected status %d", r.Method, u, resp.StatusCode)
			c.log.Warn("http request status, retrying", "method", r.Method, "url", u, "attempt", attempt, "wait", wait, "status", resp.StatusCode)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
