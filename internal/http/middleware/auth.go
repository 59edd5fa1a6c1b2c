package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/permission"
	"github.com/AminElhag/Liyaqa-sub035/internal/tenant"
	"github.com/AminElhag/Liyaqa-sub035/internal/token"
)

const principalKey = "authPrincipal"

type principalContextKey struct{}

// Principal is the immutable authenticated identity attached to a request.
type Principal struct {
	UserID      uuid.UUID
	TenantID    uuid.UUID
	Role        domain.Role
	Email       string
	Permissions domain.PermissionSet
}

// Authorities returns the authority strings surfaced to authorization checks:
// one ROLE_<NAME> entry plus each resolved permission code verbatim.
func (p Principal) Authorities() []string {
	authorities := make([]string, 0, len(p.Permissions)+1)
	authorities = append(authorities, p.Role.Authority())
	authorities = append(authorities, p.Permissions.Codes()...)
	return authorities
}

// Auth authenticates requests from bearer tokens. It never rejects a request
// for a bad token: absent, malformed, expired, or wrong-type tokens all fall
// through anonymous, and route-level authorization decides what anonymous may
// do. Only a storage failure during permission resolution aborts, because a
// request whose permission set is unknown must not be authenticated.
type Auth struct {
	Validator *token.Validator
	Resolver  *permission.Resolver
	Logger    *zap.Logger
}

// Authenticate is the per-request authentication gate.
func (m *Auth) Authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}

	// Exact prefix: "Bearer" is case-sensitive and followed by one space.
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		c.Next()
		return
	}

	claims, err := m.Validator.ValidateAccess(raw)
	if err != nil {
		m.log().Debug("token rejected", zap.Error(err))
		c.Next()
		return
	}

	perms, err := m.Resolver.EffectivePermissions(c.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		m.log().Error("permission resolution failed",
			zap.String("user_id", claims.UserID.String()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":             "service_unavailable",
			"error_description": "Authentication is temporarily unavailable.",
		})
		return
	}

	principal := Principal{
		UserID:      claims.UserID,
		TenantID:    claims.TenantID,
		Role:        claims.Role,
		Email:       claims.Email,
		Permissions: perms,
	}

	ctx := tenant.WithTenant(c.Request.Context(), claims.TenantID)
	ctx = context.WithValue(ctx, principalContextKey{}, principal)
	c.Request = c.Request.WithContext(ctx)
	c.Set(principalKey, principal)

	c.Next()
}

// GetPrincipal extracts the authenticated principal from gin.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

// PrincipalFromContext extracts the principal from a standard context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// RequireAuth aborts anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPrincipal(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Authentication required.",
			})
			return
		}
		c.Next()
	}
}

// RequireRole aborts requests whose principal holds none of the given roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Authentication required.",
			})
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":             "forbidden",
			"error_description": "Access denied.",
		})
	}
}

// RequirePermission aborts requests whose principal lacks the permission code.
func RequirePermission(code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Authentication required.",
			})
			return
		}
		if !principal.Permissions.Has(code) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "forbidden",
				"error_description": "Access denied.",
			})
			return
		}
		c.Next()
	}
}

func (m *Auth) log() *zap.Logger {
	if m != nil && m.Logger != nil {
		return m.Logger
	}
	return zap.L()
}
