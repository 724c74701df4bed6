package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plexward/internal/infrastructure/auth"
	"plexward/internal/shared/logger"
	"plexward/internal/shared/utils"
)

type AdminAuthMiddleware struct {
	jwtService *auth.JWTService
	logger     logger.Interface
}

func NewAdminAuthMiddleware(jwtService *auth.JWTService, log logger.Interface) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		jwtService: jwtService,
		logger:     log,
	}
}

// RequireAuth gates admin routes on a valid bearer token. An unset session
// secret means no token can ever verify, so the API answers 503 instead of
// pretending the credentials were wrong.
func (m *AdminAuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.jwtService.Configured() {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "admin API is not configured")
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := m.jwtService.Verify(parts[1])
		if err != nil {
			m.logger.Warnw("failed to verify admin token", "error", err)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
