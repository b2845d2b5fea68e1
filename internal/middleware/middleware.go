package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
)

// AuthContextKey is the gin context key under which the validated
// AuthContext of the request is stored.
const AuthContextKey = "authContext"

// Authenticate runs the credential scheme chain on every request and stores
// the resulting AuthContext. A request carrying no credential passes through
// with the anonymous context; whether that is enough is decided per tool and
// per route. A request carrying an invalid credential is rejected here.
func Authenticate(validator *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, err := validator.Authenticate(c.Request.Context(), c.Request)
		if err != nil {
			if apiErr, ok := models.AsAPIError(err); ok {
				c.JSON(apiErr.HTTPStatus(), apiErr)
			} else {
				c.JSON(http.StatusUnauthorized,
					models.NewAPIError(models.ErrUnauthorized, "Credential validation failed"))
			}
			c.Abort()
			return
		}

		c.Set(AuthContextKey, authCtx)
		c.Next()
	}
}

// GetAuthContext returns the AuthContext stored by Authenticate, falling
// back to the anonymous context when the middleware did not run.
func GetAuthContext(c *gin.Context) *auth.AuthContext {
	if v, exists := c.Get(AuthContextKey); exists {
		if authCtx, ok := v.(*auth.AuthContext); ok {
			return authCtx
		}
	}
	return auth.AnonymousContext()
}
