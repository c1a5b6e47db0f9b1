package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"rpcclient/rpcerr"
)

// RateLimitMiddleware creates a token bucket limiter shared by every exchange
// of the handler it wraps. An exchange waits for a token until ctx is done.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, rpcerr.Wrap("middleware.RateLimit", rpcerr.Transport, err, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
