package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			start := time.Now()
			body, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("endpoint", req.Endpoint),
				zap.String("content_type", req.ContentType),
				zap.Int("bytes_out", len(req.Body)),
				zap.Int("bytes_in", len(body)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("rpc exchange failed", append(fields, zap.Error(err))...)
				return body, err
			}
			logger.Debug("rpc exchange", fields...)
			return body, nil
		}
	}
}
