package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// MetricsMiddleware counts exchanges and errors and records their duration in
// set, labelled by content type. A nil set means the global default set.
//
//	<prefix>_requests_total{content_type="..."}
//	<prefix>_errors_total{content_type="..."}
//	<prefix>_request_duration_seconds{content_type="..."}
func MetricsMiddleware(set *metrics.Set, prefix string) Middleware {
	counter := metrics.GetOrCreateCounter
	histogram := metrics.GetOrCreateHistogram
	if set != nil {
		counter = set.GetOrCreateCounter
		histogram = set.GetOrCreateHistogram
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			labels := fmt.Sprintf(`{content_type=%q}`, req.ContentType)
			start := time.Now()
			counter(prefix + "_requests_total" + labels).Inc()
			body, err := next(ctx, req)
			histogram(prefix + "_request_duration_seconds" + labels).UpdateDuration(start)
			if err != nil {
				counter(prefix + "_errors_total" + labels).Inc()
			}
			return body, err
		}
	}
}
