package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/capdir/observability"
)

// Telemetry opens an http.request span and records the request metrics
// against the matched route. A nil metrics records no metrics.
func Telemetry(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanHTTPRequest)
		if id := c.GetHeader(HeaderRequestID); id != "" {
			observability.SetSpanAttribute(ctx, observability.AttrRequestID, id)
		}
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		metrics.RecordRequestStart(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observability.SetSpanAttribute(ctx, observability.AttrStatus, status)
		metrics.RecordRequestEnd(ctx, c.Request.Method, route, strconv.Itoa(status), time.Since(start))
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last
		}
		observability.EndSpan(span, err)
	}
}
