package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
	"github.com/meemli/meemli-api/pkg/response"
)

// Access rules accepted by RBAC.
const (
	RoleAdmin = models.RoleAdmin
	RoleSelf  = "SELF"
)

// ContextAdminKey stores whether RBAC resolved the caller as an administrator.
const ContextAdminKey = "is_admin"

// AdminChecker resolves the admin flag stored on a user row.
type AdminChecker interface {
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

// RBAC admits admins (by token claim or stored row) and, when SELF is listed,
// callers acting on their own :id.
func RBAC(admins AdminChecker, allowed ...string) gin.HandlerFunc {
	allowAdmin, allowSelf := false, false
	for _, a := range allowed {
		switch a {
		case RoleAdmin:
			allowAdmin = true
		case RoleSelf:
			allowSelf = true
		}
	}

	return func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		if principal == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		admin := principal.Admin
		if !admin && admins != nil {
			stored, err := admins.IsAdmin(c.Request.Context(), principal.UID)
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			admin = stored
		}
		c.Set(ContextAdminKey, admin)

		if allowAdmin && admin {
			c.Next()
			return
		}
		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == principal.UID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// IsAdminCaller reports the admin flag resolved by RBAC for this request.
func IsAdminCaller(c *gin.Context) bool {
	return c.GetBool(ContextAdminKey)
}

// RequireAdmin admits administrators only.
func RequireAdmin(admins AdminChecker) gin.HandlerFunc {
	return RBAC(admins, RoleAdmin)
}
