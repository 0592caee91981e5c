package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// New answers CORS for the configured frontend origins. Credentials are only
// advertised to an origin that was matched explicitly.
func New(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(origin, "/")
		if origin == "*" {
			allowAll = true
			continue
		}
		originSet[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		if _, ok := originSet[origin]; ok && origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		} else if allowAll {
			h.Set("Access-Control-Allow-Origin", "*")
		}

		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
