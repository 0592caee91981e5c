package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/logger"
	"github.com/meemli/meemli-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the verified caller.
const ContextPrincipalKey = "principal"

// BypassUID identifies the synthetic caller admitted when verification is disabled.
const BypassUID = "auth-bypass"

// TokenVerifier checks a bearer token with the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// Auth requires a bearer token verified by the identity provider.
// With bypass set every request runs as a synthetic admin principal.
func Auth(verifier TokenVerifier, bypass bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bypass {
			setPrincipal(c, &models.Principal{UID: BypassUID, Admin: true})
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token"))
			c.Abort()
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the caller stored by Auth, or nil.
func PrincipalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}

func setPrincipal(c *gin.Context, principal *models.Principal) {
	c.Set(ContextPrincipalKey, principal)
	c.Set(logger.UIDKey, principal.UID)
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
