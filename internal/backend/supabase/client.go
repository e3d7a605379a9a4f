// Package supabase implements the record store, identity and blob contracts
// against a hosted Supabase project (PostgREST, GoTrue and Storage).
package supabase

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
	"time"

	"golang.org/x/oauth2"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
)

// APITimeout is the default timeout for one backend call.
const APITimeout = 30 * time.Second

// errNoSession is returned by the token source when nobody is signed in.
var errNoSession = errors.New("no active session")

// Client sends authenticated requests to a Supabase project.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	timeout time.Duration
	tokens  oauth2.TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for the project at baseURL.
func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    http.DefaultClient,
		timeout: APITimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseTokenSource makes requests carry the user's access token when one is
// available. Without a token the anon key is sent as bearer.
func (c *Client) UseTokenSource(ts oauth2.TokenSource) {
	c.tokens = ts
}

type response struct {
	status int
	header http.Header
	body   []byte
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	header http.Header
	// bearer overrides the token source when set.
	bearer string
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	switch b := r.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.anonKey)
	if err := c.authorize(req, r.bearer); err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(r.op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(r.op, resp.StatusCode, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) authorize(req *http.Request, bearer string) error {
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
		return nil
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		switch {
		case err == nil:
			tok.SetAuthHeader(req)
			return nil
		case !errors.Is(err, errNoSession):
			return err
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	return nil
}

// decodeError turns a PostgREST, GoTrue or Storage error body into a RemoteError.
func decodeError(op string, status int, body []byte) error {
	var payload struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	re := &appErrors.RemoteError{Op: op, Status: status}
	switch code := payload.Code.(type) {
	case string:
		re.Code = code
	case float64:
		re.Code = fmt.Sprintf("%d", int(code))
	}
	if re.Code == "" {
		re.Code = payload.ErrorCode
	}
	for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
		if m != "" {
			re.Message = m
			break
		}
	}
	return re
}

func wrapError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &appErrors.RemoteError{Op: op, Message: "request timed out"}
	}
	return &appErrors.RemoteError{Op: op, Message: err.Error()}
}

// isNoRows reports whether err is PostgREST's "no rows for a single object".
func isNoRows(err error) bool {
	var re *appErrors.RemoteError
	return errors.As(err, &re) && re.Code == "PGRST116"
}
