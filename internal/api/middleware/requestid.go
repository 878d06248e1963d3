package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/merchantlabs/backoffice/pkg/telemetry/correlation"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns a correlation ID to each request, honoring an inbound
// header when present, and threads it through the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := correlation.ContextWithCorrelationID(c.Request.Context(), c.GetHeader(requestIDHeader))
		ctx, id := correlation.EnsureCorrelationID(ctx)

		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
