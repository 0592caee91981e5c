package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderKey carries the request id in both directions.
	HeaderKey  = "X-Request-ID"
	contextKey = "request_id"
	maxLength  = 128
)

// Middleware tags each request with the caller's X-Request-ID or a fresh UUID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderKey)
		if reqID == "" || len(reqID) > maxLength {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(HeaderKey, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
