package middleware

import (
	"context"
	"time"

	"rpcclient/rpcerr"
)

type result struct {
	body []byte
	err  error
}

func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				body, err := next(ctx, req)
				done <- result{body, err}
			}()

			select {
			case r := <-done:
				return r.body, r.err
			case <-ctx.Done():
				return nil, rpcerr.Wrap("middleware.Timeout", rpcerr.Transport, ctx.Err(), "request timed out")
			}
		}
	}
}
