// Package transport delivers encoded payloads to an RPC endpoint over HTTP.
//
// One PerformCall is one POST: the payload is wrapped in the encrypted
// envelope when a key is given, sent through the middleware chain, and the
// response body is unwrapped with the same key.
//
//	payload ──Wrap──→ middleware ... ──POST──→ endpoint
//	result  ←─Unwrap── middleware ... ←─body──┘
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rpcclient/middleware"
	"rpcclient/protocol"
	"rpcclient/rpcerr"
)

// UserAgent is sent with every request unless overridden by a header option.
const UserAgent = "rpcclient/1.0"

// Transport performs one request/response exchange.
type Transport interface {
	PerformCall(ctx context.Context, payload []byte, contentType string, key string) ([]byte, error)
}

// HTTPTransport posts payloads to a fixed endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	headers  http.Header
	timeout  time.Duration
	proxy    *url.URL
	mws      []middleware.Middleware
	handler  middleware.HandlerFunc
}

type Option func(*HTTPTransport) error

// WithTimeout bounds every exchange, connection and body read included.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) error {
		if d < 0 {
			return rpcerr.Errorf("transport.WithTimeout", rpcerr.InvalidArgument, "negative timeout %s", d)
		}
		t.timeout = d
		return nil
	}
}

// WithHTTPClient replaces the default client. Timeout and proxy options
// still apply on a copy of it.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) error {
		if c == nil {
			return rpcerr.New("transport.WithHTTPClient", rpcerr.InvalidArgument, "nil http client")
		}
		t.client = c
		return nil
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(t *HTTPTransport) error {
		t.headers.Add(key, value)
		return nil
	}
}

// WithProxy routes requests through the given proxy URL.
func WithProxy(raw string) Option {
	return func(t *HTTPTransport) error {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return rpcerr.Wrap("transport.WithProxy", rpcerr.InvalidArgument, err, "invalid proxy "+raw)
		}
		t.proxy = u
		return nil
	}
}

// WithMiddleware appends middlewares around the HTTP exchange, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(t *HTTPTransport) error {
		t.mws = append(t.mws, mws...)
		return nil
	}
}

// NewHTTPTransport validates endpoint and applies opts.
func NewHTTPTransport(endpoint string, opts ...Option) (*HTTPTransport, error) {
	const op = "transport.NewHTTPTransport"
	u, err := url.Parse(endpoint)
	if endpoint == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &rpcerr.Error{Op: op, Kind: rpcerr.InvalidArgument, Message: "Invalid RPC server address", Err: err}
	}

	t := &HTTPTransport{
		endpoint: endpoint,
		client:   http.DefaultClient,
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	if t.timeout > 0 || t.proxy != nil {
		c := *t.client
		if t.timeout > 0 {
			c.Timeout = t.timeout
		}
		if t.proxy != nil {
			base, ok := c.Transport.(*http.Transport)
			if !ok || base == nil {
				base = http.DefaultTransport.(*http.Transport)
			}
			tr := base.Clone()
			tr.Proxy = http.ProxyURL(t.proxy)
			c.Transport = tr
		}
		t.client = &c
	}
	t.handler = middleware.Chain(t.mws...)(t.post)
	return t, nil
}

func (t *HTTPTransport) Endpoint() string { return t.endpoint }

// PerformCall sends payload and returns the response body. A non-empty key
// enables the encrypted envelope in both directions.
func (t *HTTPTransport) PerformCall(ctx context.Context, payload []byte, contentType string, key string) ([]byte, error) {
	body, err := protocol.Wrap(payload, key)
	if err != nil {
		return nil, err
	}
	raw, err := t.handler(ctx, &middleware.Request{
		Endpoint:    t.endpoint,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return nil, err
	}
	return protocol.Unwrap(raw, key)
}

func (t *HTTPTransport) post(ctx context.Context, req *middleware.Request) ([]byte, error) {
	const op = "transport.HTTPTransport.PerformCall"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.Transport, err, "cannot build request")
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	httpReq.Header.Set("User-Agent", UserAgent)
	for k, vs := range t.headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.Transport, err, "POST "+req.Endpoint+" failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.Transport, err, "cannot read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &rpcerr.Error{
			Op:      op,
			Kind:    rpcerr.Transport,
			Code:    int64(resp.StatusCode),
			Message: fmt.Sprintf("unexpected HTTP status %s", resp.Status),
		}
	}
	return data, nil
}
