package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
)

// RequireLevel is a middleware that guards a route group behind a minimum
// authorization level. Unauthenticated callers get 401, authenticated
// callers below the required level get 403.
func RequireLevel(level auth.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx := GetAuthContext(c)
		if authCtx.Allows(level) {
			c.Next()
			return
		}

		if !authCtx.Authenticated {
			c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized,
				"Authentication required"))
		} else {
			c.JSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden,
				"Insufficient permissions", map[string]interface{}{
					"required_level": level.String(),
					"client_id":      authCtx.ClientID,
				}))
		}
		c.Abort()
	}
}
