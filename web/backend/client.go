// Package backend is the panel's only way to talk to the Antarex API. A
// process-wide Client is bound to one browser's session.Store per request;
// the resulting Adapter attaches the session's bearer token to every call,
// ends the session when the API rejects the token, and reports every failure
// as an *Error of a known Kind.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antarex-ai/dashboard/logger"
	"github.com/antarex-ai/dashboard/util/metrics"
	"github.com/antarex-ai/dashboard/web/access"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	maxDetailBytes  = 64 << 10
	requestIDHeader = "X-Request-ID"
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client holds what is shared by every browser: the API address and the
// HTTP connection pool. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	hc        *http.Client
	userAgent string
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("backend url %q: must be an absolute http(s) url", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "antarex-dashboard"
	}
	return &Client{base: base, hc: hc, userAgent: ua}, nil
}

// BaseURL returns the API address the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Bind returns an Adapter acting for the session held in store.
func (c *Client) Bind(store *session.Store) *Adapter {
	return &Adapter{client: c, store: store}
}

func (c *Client) url(path string, query url.Values) string {
	u := strings.TrimRight(c.base.String(), "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Adapter performs API calls on behalf of one session.
type Adapter struct {
	client *Client
	store  *session.Store
}

// Session exposes the store the adapter acts for.
func (a *Adapter) Session() *session.Store {
	return a.store
}

// authorize refuses, without any network traffic, calls the session may not
// make.
func (a *Adapter) authorize(capability access.Capability, what string) error {
	snap := a.store.Current()
	if !snap.Authenticated() {
		return notLoggedIn()
	}
	if !access.Allows(snap.Caller(), capability) {
		metrics.PolicyDenials.WithLabelValues(string(capability)).Inc()
		return denied(what)
	}
	return nil
}

type request struct {
	// endpoint labels metrics and logs, e.g. "auth.login".
	endpoint string
	method   string
	// path must already be escaped.
	path        string
	query       url.Values
	body        []byte
	stream      io.Reader
	contentType string
	// anonymous requests never carry the bearer token and may be sent
	// without a session. A 401 on them is a plain authentication failure.
	anonymous bool
}

// do sends r and returns the response for any 2xx status. Every other outcome
// is mapped to an *Error, and the response body is closed.
func (a *Adapter) do(ctx context.Context, r request) (*http.Response, error) {
	snap := a.store.Current()
	if !r.anonymous && !snap.Authenticated() {
		metrics.BackendRequests.WithLabelValues(r.endpoint, "blocked").Inc()
		return nil, notLoggedIn()
	}

	body := r.stream
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, a.client.url(r.path, r.query), body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "could not build request", Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("User-Agent", a.client.userAgent)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.anonymous {
		req.Header.Set("Authorization", "Bearer "+snap.Token)
	}

	start := time.Now()
	resp, err := a.client.hc.Do(req)
	metrics.BackendLatency.WithLabelValues(r.endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		msg := "the server could not be reached, try again"
		if errors.Is(err, context.Canceled) {
			msg = "request cancelled"
		}
		logger.Warningf("backend %s [%s]: %v", r.endpoint, reqID, err)
		return nil, a.record(r.endpoint, &Error{Kind: KindTransport, Message: msg, Err: err})
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.BackendRequests.WithLabelValues(r.endpoint, "ok").Inc()
		return resp, nil
	}

	defer resp.Body.Close()
	detail := readDetail(resp)
	e := &Error{Status: resp.StatusCode, Message: detail}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.Kind = KindAuthentication
		if !r.anonymous {
			e.Message = "session expired, please log in again"
			if a.store.Expire(snap.Generation) {
				metrics.SessionExpirations.Inc()
				logger.Infof("session of %s ended by backend on %s", snap.Username, r.endpoint)
			}
		}
	case resp.StatusCode == http.StatusForbidden:
		e.Kind = KindAuthorization
	case resp.StatusCode >= 500:
		e.Kind = KindTransport
		logger.Warningf("backend %s [%s]: %d %s", r.endpoint, reqID, resp.StatusCode, detail)
	case resp.StatusCode >= 400:
		e.Kind = KindConflict
	default:
		e.Kind = KindTransport
		e.Message = "unexpected response " + resp.Status
	}
	return nil, a.record(r.endpoint, e)
}

func (a *Adapter) record(endpoint string, e *Error) *Error {
	metrics.BackendRequests.WithLabelValues(endpoint, e.Kind.String()).Inc()
	return e
}

// doJSON sends r and decodes a JSON response into out, which may be nil.
func (a *Adapter) doJSON(ctx context.Context, r request, out any) error {
	resp, err := a.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return a.record(r.endpoint, &Error{
			Kind:    KindTransport,
			Status:  resp.StatusCode,
			Message: "the server sent an unreadable response",
			Err:     err,
		})
	}
	return nil
}

func jsonRequest(endpoint, method, path string, payload any) (request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return request{}, &Error{Kind: KindValidation, Message: "could not encode request", Err: err}
	}
	return request{endpoint: endpoint, method: method, path: path, body: b, contentType: "application/json"}, nil
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// readDetail extracts the API's explanation from an error response. FastAPI
// sends {"detail": "..."} or, for schema errors, a list of issues.
func readDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil && s != "" {
			return s
		}
		var issues []validationIssue
		if json.Unmarshal(envelope.Detail, &issues) == nil && len(issues) > 0 {
			parts := make([]string, 0, len(issues))
			for _, is := range issues {
				if len(is.Loc) > 0 {
					parts = append(parts, fmt.Sprintf("%v: %s", is.Loc[len(is.Loc)-1], is.Msg))
				} else {
					parts = append(parts, is.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || strings.HasPrefix(text, "<") {
		return http.StatusText(resp.StatusCode)
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
