package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saaskit/scaffold/internal/infrastructure/auth"
	"github.com/saaskit/scaffold/internal/infrastructure/session"
	"github.com/saaskit/scaffold/internal/interfaces/http/dto"
)

const (
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// SessionMiddleware installs a fresh ambient session on every request and,
// when a valid bearer token is present, populates it with the token's
// claims. Requests without a token proceed unauthenticated; authorization
// decisions belong to RequireAuth or the handlers themselves.
func SessionMiddleware(jwtService *auth.JWTService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ctx := session.NewContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse("UNAUTHORIZED", "Invalid or expired token"))
			return
		}
		if err := session.SetClaims(ctx, claims); err != nil {
			log.Warn("session already authenticated", zap.Error(err))
		}
		c.Next()
	}
}

// RequireAuth aborts requests whose session carries no authenticated user.
// It must run after SessionMiddleware.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.CurrentUser(c.Request.Context())
		if !user.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse("UNAUTHORIZED", "Authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRole aborts authenticated requests lacking any of the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.CurrentUser(c.Request.Context())
		if !user.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse("UNAUTHORIZED", "Authentication required"))
			return
		}
		for _, want := range roles {
			for _, have := range user.Roles {
				if have == want {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden,
			dto.NewErrorResponse("FORBIDDEN", "Insufficient role"))
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader(authHeaderKey)
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(header, bearerPrefix)
}
