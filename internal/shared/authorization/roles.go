// Package authorization holds the principal roles carried in access tokens.
package authorization

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/gatewarden/internal/shared/constants"
	"github.com/orris-inc/gatewarden/internal/shared/utils"
)

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

func (r UserRole) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// RoleFromContext reads the role set by the auth middleware; unknown values demote to RoleUser.
func RoleFromContext(c *gin.Context) UserRole {
	role := UserRole(c.GetString(constants.ContextKeyUserRole))
	if !role.IsValid() {
		return RoleUser
	}
	return role
}

// RequireAdmin rejects requests whose authenticated role is not admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromContext(c) != RoleAdmin {
			utils.ErrorResponse(c, http.StatusForbidden, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
