package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appUsecases "github.com/opencat-io/opencat/internal/application/app/usecases"
	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/utils"
)

const appContextKey = "authenticated_app"

// APIKeyAuth authenticates requests by the X-Api-Key header and stores the
// resolved app in the request context. Every tenant-scoped route sits behind
// this middleware.
func APIKeyAuth(authUC *appUsecases.AuthenticateAPIKeyUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(constants.APIKeyHeaderName)

		a, err := authUC.Execute(c.Request.Context(), key)
		if err != nil {
			utils.ErrorResponseWithError(c, err)
			c.Abort()
			return
		}

		c.Set(appContextKey, a)
		c.Next()
	}
}

// RequireAppScope rejects requests whose app_sid path parameter names an app
// other than the one the API key authenticated. Keys are app-scoped; a valid
// key for one app grants nothing on another.
func RequireAppScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := AppFromContext(c)
		if !ok {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}
		if sid := c.Param("app_sid"); sid != a.SID() {
			utils.ErrorResponse(c, http.StatusForbidden, "API key does not grant access to this app")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AppFromContext returns the authenticated app set by APIKeyAuth.
func AppFromContext(c *gin.Context) (*app.App, bool) {
	value, exists := c.Get(appContextKey)
	if !exists {
		return nil, false
	}
	a, ok := value.(*app.App)
	return a, ok
}
