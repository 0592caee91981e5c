package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "request_start"
	processingTimeMS = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// ExtractMeta returns the metadata map stored on the context, stamped with the
// time spent so far. It returns nil outside WithResponseMeta.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta[processingTimeMS] = time.Since(t).Milliseconds()
		}
	}
	return meta
}
