package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/x", WithResponseMeta(), func(c *gin.Context) {
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotNil(t, meta)
	assert.Contains(t, meta, "processing_time_ms")
}

func TestExtractMetaOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, ExtractMeta(c))
	assert.Nil(t, ExtractMeta(nil))
}
