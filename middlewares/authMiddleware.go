package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shifts_backend/utils"
)

// AuthMiddleware validates the bearer token and stores the caller's company,
// user and role in the request context. Requests without a token pass through;
// handlers reject them when they need an actor.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			// legacy clients send the raw token in a "token" header
			auth = c.Request.Header.Get("token")
		}
		if auth == "" {
			c.Next()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claim.CompanyId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetCompanyIdInContext(ctx, claim.CompanyId)
		ctx = utils.SetUserIdInContext(ctx, claim.ID)
		ctx = utils.SetUserNameInContext(ctx, claim.Name)
		ctx = utils.SetUserRoleInContext(ctx, claim.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests that did not carry a valid token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetCompanyIdFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
