// Package middleware wraps the raw HTTP exchange performed by the transport.
//
// A middleware sees the payload exactly as it goes on the wire, after the
// encrypted envelope (if any) was applied, and the raw body that came back.
package middleware

import (
	"context"
)

// Request is one outgoing HTTP exchange.
type Request struct {
	Endpoint    string
	ContentType string
	Body        []byte
}

// HandlerFunc performs an exchange and returns the raw response body.
type HandlerFunc func(ctx context.Context, req *Request) ([]byte, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
