package cybereason

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anatolykoptev/cybereason-mcp/internal/metrics"
	"github.com/sony/gobreaker"
)

const (
	defaultLoginTimeout   = 30 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// errServerStatus marks a 5xx response so the breaker counts it as a failure.
var errServerStatus = errors.New("server error status")

// Client is a session-authenticated Cybereason API client.
//
// The session token is swapped atomically without a lock: concurrent 401s may
// each trigger a re-login and the last successful login wins. Login is
// idempotent on the console side, so this is wasteful but safe.
type Client struct {
	cfg     Config
	gen     Generation
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	token   atomic.Pointer[http.Cookie]
	audit   Auditor
	now     func() time.Time
}

var _ AlertManager = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAuditor sets the sink for status-change audit records.
func WithAuditor(a Auditor) Option {
	return func(c *Client) {
		if a != nil {
			c.audit = a
		}
	}
}

// WithClock overrides the time source used for query ranges.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient validates cfg and builds an unauthenticated client.
// Call Login before the first request, or let the first 401 trigger it.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	var missing []string
	if strings.TrimSpace(cfg.BaseURL) == "" {
		missing = append(missing, "CYBEREASON_URL")
	}
	if cfg.Username == "" {
		missing = append(missing, "CYBEREASON_USERNAME")
	}
	if cfg.Password == "" {
		missing = append(missing, "CYBEREASON_PASSWORD")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid CYBEREASON_URL %q", cfg.BaseURL)}
	}

	gen, err := GenerationFor(cfg.APIVersion)
	if err != nil {
		return nil, err
	}

	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = defaultLoginTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	c := &Client{
		cfg:     cfg,
		gen:     gen,
		baseURL: u.String(),
		audit:   logAuditor{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(cfg.VerifySSL)
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker(cfg)
	}
	if !cfg.VerifySSL {
		slog.Warn("TLS certificate verification disabled", slog.String("url", c.baseURL))
	}
	return c, nil
}

func newBreaker(cfg Config) *gobreaker.CircuitBreaker {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cybereason-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("target", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// Generation returns the API generation this client speaks.
func (c *Client) Generation() Generation { return c.gen }

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// LoggedIn reports whether a session token is held.
func (c *Client) LoggedIn() bool { return c.token.Load() != nil }

// Login posts form-encoded credentials and stores the session cookie.
// The console can answer 200 on a page that did not establish a session, so
// a 2xx without the session cookie is still an authentication failure.
func (c *Client) Login(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LoginTimeout)
	defer cancel()

	form := url.Values{
		"username": {c.cfg.Username},
		"password": {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.gen.LoginPath(), strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthenticationError{Reason: "build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// A fresh jar per attempt captures cookies set on redirects and never
	// reports a stale session as a new one.
	inner, err := cookiejar.New(nil)
	if err != nil {
		return &AuthenticationError{Reason: "create cookie jar", Err: err}
	}
	jar := &loginJar{CookieJar: inner}
	hc := *c.http
	hc.Jar = jar

	resp, err := c.send(&hc, req)
	if err != nil {
		metrics.RecordLoginFailure()
		return &AuthenticationError{Reason: "login request failed", Err: err}
	}
	if resp.status < 200 || resp.status >= 300 {
		metrics.RecordLoginFailure()
		return &AuthenticationError{StatusCode: resp.status, Reason: "login rejected"}
	}

	cookie := jar.session(SessionCookie)
	if cookie == nil {
		metrics.RecordLoginFailure()
		return &AuthenticationError{StatusCode: resp.status, Reason: "no " + SessionCookie + " cookie in login response"}
	}
	c.token.Store(cookie)

	slog.Info("cybereason login successful",
		slog.String("url", c.baseURL),
		slog.String("api_version", c.gen.Name()))
	return nil
}

// loginJar records every cookie set during the login exchange, whatever path
// or redirect hop it was scoped to. Consoles scope JSESSIONID to "/" or to a
// sub-path such as "/rest", which a path-based jar lookup would miss.
type loginJar struct {
	http.CookieJar

	mu  sync.Mutex
	set []*http.Cookie
}

func (j *loginJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	j.set = append(j.set, cookies...)
	j.mu.Unlock()
	j.CookieJar.SetCookies(u, cookies)
}

// session returns the last non-empty cookie called name, or nil.
func (j *loginJar) session(name string) *http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return sessionCookie(j.set, name)
}

// sessionCookie picks the last live cookie called name, stripped to name and value.
func sessionCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for i := len(cookies) - 1; i >= 0; i-- {
		ck := cookies[i]
		if ck.Name == name && ck.Value != "" && ck.MaxAge >= 0 {
			return &http.Cookie{Name: ck.Name, Value: ck.Value}
		}
	}
	return nil
}

// response is a fully-read HTTP response.
type response struct {
	status  int
	body    []byte
	cookies []*http.Cookie
}

// request issues an authenticated JSON call. A 401 with retryOnAuthFailure set
// triggers exactly one Login and one replay with retry disabled, so a login
// that silently yields an invalid session cannot loop.
func (c *Client) request(ctx context.Context, method, path string, retryOnAuthFailure bool, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := c.token.Load(); tok != nil {
		req.AddCookie(tok)
	}

	resp, err := c.send(c.http, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	metrics.RecordAPIRequest(method, resp.status)

	if resp.status == http.StatusUnauthorized && retryOnAuthFailure {
		slog.Info("cybereason session expired, re-authenticating",
			slog.String("method", method),
			slog.String("path", path))
		metrics.RecordRelogin()
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		return c.request(ctx, method, path, false, body)
	}

	if resp.status < 200 || resp.status >= 300 {
		return nil, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.status,
			Body:       string(resp.body),
		}
	}
	// The console may rotate the session on a data response.
	if ck := sessionCookie(resp.cookies, SessionCookie); ck != nil {
		c.token.Store(ck)
	}
	return resp, nil
}

// send performs one HTTP attempt, through the circuit breaker when enabled.
// Only transport errors and 5xx responses count as breaker failures.
func (c *Client) send(hc *http.Client, req *http.Request) (*response, error) {
	attempt := func() (*response, error) {
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		r := &response{status: resp.StatusCode, body: data, cookies: resp.Cookies()}
		if resp.StatusCode >= 500 {
			return r, errServerStatus
		}
		return r, nil
	}

	if c.breaker == nil {
		r, err := attempt()
		if errors.Is(err, errServerStatus) {
			return r, nil
		}
		return r, err
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return attempt()
	})
	r, _ := out.(*response)
	switch {
	case errors.Is(err, errServerStatus):
		return r, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitOpen()
		return nil, fmt.Errorf("cybereason API unavailable: %w", err)
	case err != nil:
		return nil, err
	}
	return r, nil
}
