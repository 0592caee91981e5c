package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/middleware"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/response"
)

// bindJSON decodes the request body, rendering a 400 on malformed JSON.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func callerUID(c *gin.Context) string {
	if principal := middleware.PrincipalFromContext(c); principal != nil {
		return principal.UID
	}
	return ""
}

func withMeta(c *gin.Context, extra map[string]interface{}) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}
