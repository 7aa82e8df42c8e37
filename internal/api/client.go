// Package api is the REST client for the carpool backend. Every call is
// context-aware and returns either a decoded payload or a typed *Error;
// there is no distinction between "next" and "error" callback channels.
//
// Mutating calls self-guard against duplicate submission: while a request
// for an entity is in flight, a second attempt on the same entity fails
// locally. The guard is released on completion and on timeout, so an
// unresponsive backend never leaves an item permanently busy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/session"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	base     string
	http     *http.Client
	sessions session.Store

	mu       sync.Mutex
	inflight map[string]struct{}
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func New(baseURL string, sessions session.Store, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		sessions: sessions,
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// currentUser loads the session, mapping an absent session to a local auth
// error so no unauthenticated request is even attempted.
func (c *Client) currentUser(ctx context.Context) (session.Session, error) {
	s, err := c.sessions.Load(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return session.Session{}, &Error{Kind: KindAuth, Message: "You must be logged in.", cause: err}
		}
		return session.Session{}, transportErr(err)
	}
	return s, nil
}

// begin marks an entity as having a mutating request in flight.
func (c *Client) begin(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return validationMsg(actionInProgressMsg)
	}
	c.inflight[key] = struct{}{}
	return nil
}

func (c *Client) end(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

func deliveryKey(id int64) string { return fmt.Sprintf("delivery/%d", id) }
func tripKey(id int64) string     { return fmt.Sprintf("trip/%d", id) }

// do performs one request/response cycle and decodes the envelope.
// success=false is a domain error regardless of HTTP status; connectivity
// failures and unstructured bodies are transport errors.
func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any, token string) (T, error) {
	var zero T

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, validationErr(err)
		}
		rd = bytes.NewReader(b)
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return zero, transportErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var ne interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return zero, timeoutErr(err)
		}
		return zero, transportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, transportErr(err)
	}

	// An envelope-shaped body wins over the HTTP status: success=false is
	// a domain error carrying the server's message even on a 401 or 500.
	var env models.Envelope[T]
	if err := json.Unmarshal(raw, &env); err == nil && envelopeShaped(raw) {
		if !env.Success {
			return zero, domainErr(env.Message, env.Errors)
		}
		return env.Data, nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return zero, authErr(fmt.Errorf("http %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		return zero, rateLimitedErr()
	}
	return zero, transportErr(fmt.Errorf("http %d: undecodable body", resp.StatusCode))
}

// envelopeShaped distinguishes a structured backend failure from a bare
// proxy/5xx page.
func envelopeShaped(raw []byte) bool {
	var probe struct {
		Success *bool `json:"success"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.Success != nil
}

// get is do without a body, for reads.
func get[T any](ctx context.Context, c *Client, path string, query url.Values, token string) (T, error) {
	return do[T](ctx, c, http.MethodGet, path, query, nil, token)
}

// getRetryOnce retries a read one time on transport failure. Mutating
// calls are never retried: the backend does not guarantee idempotency.
func getRetryOnce[T any](ctx context.Context, c *Client, path string, query url.Values, token string) (T, error) {
	out, err := get[T](ctx, c, path, query, token)
	if err != nil && IsKind(err, KindTransport) && ctx.Err() == nil {
		return get[T](ctx, c, path, query, token)
	}
	return out, err
}
