package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"healthshield-ai/internal/pkg/jwtutil"
	"healthshield-ai/internal/transport/http/response"
)

const ContextTenantIDKey = "tenant_id"

// TenantJWT binds the request to the tenant_id claim of a Bearer token. With
// an empty secret every request passes and the tenant comes from the request.
func TenantJWT(secret string) gin.HandlerFunc {
	if strings.TrimSpace(secret) == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextTenantIDKey, claims.TenantID)
		c.Next()
	}
}

// ResolveTenant returns the tenant for this request. A tenant named in the
// request must agree with the token's tenant when one is bound.
func ResolveTenant(c *gin.Context, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	bound := c.GetString(ContextTenantIDKey)
	if bound == "" {
		if requested == "" {
			response.Error(c, 400, response.CodeBadRequest, "tenant id is required")
			return "", false
		}
		return requested, true
	}
	if requested != "" && requested != bound {
		response.Error(c, 403, response.CodeTenantMismatch, "tenant does not match token")
		return "", false
	}
	return bound, true
}
