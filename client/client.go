// Package client is the entry point of the RPC client: it queues requests,
// encodes them for the configured protocol, posts them through a transport and
// decodes the response.
//
//	c, _ := client.NewClient("http://localhost/rpc", client.WithProtocol(codec.ProtocolJSON))
//	req, _ := message.New("echo", []any{"hello"})
//	_ = c.AddRequest(req)
//	result, err := c.Send(ctx)
package client

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"rpcclient/codec"
	"rpcclient/message"
	"rpcclient/rpcerr"
	"rpcclient/transport"
)

// Logger receives the client's structured log lines. *zap.SugaredLogger
// satisfies it.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Client holds the queue of pending requests and the exchange settings.
//
// Send and Payload are serialized by an internal lock. The queue itself is not
// guarded, so requests should not be added while a Send is in flight.
type Client struct {
	mu sync.Mutex

	endpoint    string
	protocol    codec.Protocol
	encoding    string
	key         string
	autoclean   bool
	sharedTypes bool

	logger    Logger
	transport transport.Transport
	httpOpts  []transport.Option
	queue     *message.Queue
}

type Option func(*Client) error

// WithProtocol selects XML-RPC (the default) or JSON-RPC.
func WithProtocol(p codec.Protocol) Option {
	return func(c *Client) error {
		return c.SetProtocol(p)
	}
}

// WithEncoding sets the character encoding of XML-RPC payloads.
func WithEncoding(enc string) Option {
	return func(c *Client) error {
		return c.SetEncoding(enc)
	}
}

// WithEncryption enables the encrypted envelope with the given shared key.
func WithEncryption(key string) Option {
	return func(c *Client) error {
		return c.SetEncryption(key)
	}
}

// WithAutoclean controls whether a successful Send empties the queue.
// It is on by default.
func WithAutoclean(on bool) Option {
	return func(c *Client) error {
		c.SetAutoclean(on)
		return nil
	}
}

// WithSharedSpecialTypes makes XML-RPC special types declared on any queued
// request apply to every request of a multicall.
func WithSharedSpecialTypes() Option {
	return func(c *Client) error {
		c.sharedTypes = true
		return nil
	}
}

func WithLogger(l Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return rpcerr.New("client.WithLogger", rpcerr.InvalidArgument, "nil logger")
		}
		c.logger = l
		return nil
	}
}

// WithTransport replaces the HTTP transport. WithHTTPOptions is ignored then.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) error {
		if t == nil {
			return rpcerr.New("client.WithTransport", rpcerr.InvalidArgument, "nil transport")
		}
		c.transport = t
		return nil
	}
}

// WithHTTPOptions configures the default HTTP transport.
func WithHTTPOptions(opts ...transport.Option) Option {
	return func(c *Client) error {
		c.httpOpts = append(c.httpOpts, opts...)
		return nil
	}
}

// NewClient creates a client for the RPC server at endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, rpcerr.New("client.NewClient", rpcerr.InvalidArgument, "Invalid RPC server address")
	}
	c := &Client{
		endpoint:  endpoint,
		protocol:  codec.ProtocolXML,
		encoding:  codec.DefaultEncoding,
		autoclean: true,
		logger:    zap.NewNop().Sugar(),
		queue:     message.NewQueue(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.transport == nil {
		t, err := transport.NewHTTPTransport(endpoint, c.httpOpts...)
		if err != nil {
			return nil, err
		}
		c.transport = t
	}
	return c, nil
}

func (c *Client) SetProtocol(p codec.Protocol) error {
	if p != codec.ProtocolXML && p != codec.ProtocolJSON {
		return rpcerr.Errorf("client.SetProtocol", rpcerr.InvalidArgument, "Invalid RPC protocol %d", p)
	}
	c.protocol = p
	return nil
}

func (c *Client) SetEncoding(enc string) error {
	if enc == "" {
		return rpcerr.New("client.SetEncoding", rpcerr.InvalidArgument, "Invalid encoding")
	}
	c.encoding = enc
	return nil
}

func (c *Client) SetEncryption(key string) error {
	if key == "" {
		return rpcerr.New("client.SetEncryption", rpcerr.InvalidArgument, "Shared key cannot be empty")
	}
	c.key = key
	return nil
}

// DisableEncryption drops the shared key.
func (c *Client) DisableEncryption() { c.key = "" }

func (c *Client) SetAutoclean(on bool) { c.autoclean = on }

func (c *Client) Endpoint() string { return c.endpoint }
func (c *Client) Protocol() codec.Protocol { return c.protocol }
func (c *Client) Encoding() string { return c.encoding }
func (c *Client) Encryption() string { return c.key }
func (c *Client) Autoclean() bool { return c.autoclean }
func (c *Client) Logger() Logger { return c.logger }
func (c *Client) Transport() transport.Transport { return c.transport }

// Queue returns the pending requests.
func (c *Client) Queue() *message.Queue { return c.queue }

// AddRequest queues r for the next Send.
func (c *Client) AddRequest(r *message.Request) error {
	return c.queue.Add(r)
}

func (c *Client) processor() codec.Processor {
	if c.protocol == codec.ProtocolJSON {
		return &codec.JSONProcessor{}
	}
	return &codec.XMLProcessor{Encoding: c.encoding, SharedSpecialTypes: c.sharedTypes}
}

// Payload returns what Send would post for the current queue, before
// encryption. Nothing is sent.
func (c *Client) Payload() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqs := c.queue.Requests()
	if len(reqs) == 0 {
		return nil, rpcerr.New("client.Payload", rpcerr.InvalidState, "No request to send")
	}
	ex, err := c.processor().Encode(reqs)
	if err != nil {
		return nil, err
	}
	return ex.Payload, nil
}

// Send posts every queued request in one exchange and returns the decoded
// result: a single value for one request, a slice for several (one entry per
// XML-RPC call, or one codec.BatchResult per JSON-RPC request expecting a
// response), or true when only JSON-RPC notifications were sent.
//
// The queue is emptied only when the exchange succeeds and autoclean is on.
func (c *Client) Send(ctx context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqs := c.queue.Requests()
	if len(reqs) == 0 {
		return nil, rpcerr.New("client.Send", rpcerr.InvalidState, "No request to send")
	}
	result, err := c.exchange(ctx, reqs)
	if err != nil {
		return nil, err
	}
	if c.autoclean {
		c.queue.Clear()
	}
	return result, nil
}

// Call sends a single request built from method and params, bypassing the
// queue. The request gets a generated id.
func (c *Client) Call(ctx context.Context, method string, params ...any) (any, error) {
	r, err := message.New(method, params)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchange(ctx, []*message.Request{r})
}

func (c *Client) exchange(ctx context.Context, reqs []*message.Request) (any, error) {
	proc := c.processor()

	c.logger.Debugw("encoding rpc requests",
		"endpoint", c.endpoint,
		"protocol", c.protocol.String(),
		"requests", len(reqs),
	)
	ex, err := proc.Encode(reqs)
	if err != nil {
		c.logger.Errorw("cannot encode rpc requests", "error", err)
		return nil, err
	}
	c.logger.Debugw("rpc payload encoded",
		"bytes", len(ex.Payload),
		"multicall", ex.Multicall,
		"expected_ids", len(ex.ExpectedIDs),
		"encrypted", c.key != "",
	)

	raw, err := c.transport.PerformCall(ctx, ex.Payload, c.protocol.ContentType(), c.key)
	if err != nil {
		c.logger.Errorw("rpc exchange failed", "endpoint", c.endpoint, "error", err)
		return nil, err
	}
	c.logger.Debugw("rpc response received", "bytes", len(raw))

	result, err := proc.Decode(ex, raw)
	if err != nil {
		c.logger.Errorw("cannot decode rpc response", "kind", rpcerr.KindOf(err).String(), "error", err)
		return nil, err
	}
	c.logger.Infow("rpc exchange completed",
		"endpoint", c.endpoint,
		"protocol", c.protocol.String(),
		"requests", len(reqs),
	)
	return result, nil
}
