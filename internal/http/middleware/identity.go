package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/FaultMaven/fm-case-service/internal/http/response"
	"github.com/FaultMaven/fm-case-service/internal/services"
)

const actorKey = "identity.actor"

// RequireIdentity trusts the gateway-injected identity headers. This service
// never validates credentials itself; the gateway authenticates and forwards
// X-User-ID / X-Organization-ID.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			response.RespondError(c, http.StatusUnauthorized, "missing_identity",
				errors.New("X-User-ID header required"))
			c.Abort()
			return
		}
		c.Set(actorKey, services.Actor{
			UserID:         userID,
			OrganizationID: strings.TrimSpace(c.GetHeader("X-Organization-ID")),
		})
		c.Next()
	}
}

// ActorFrom returns the identity set by RequireIdentity.
func ActorFrom(c *gin.Context) services.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(services.Actor); ok {
			return a
		}
	}
	return services.Actor{}
}
