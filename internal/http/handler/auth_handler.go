package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/middleware"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
	"github.com/AminElhag/Liyaqa-sub035/internal/service"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Login exchanges tenant-scoped credentials for a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenant_id" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid login request."})
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid tenant id."})
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), tenantID, req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh rotates a refresh token into a fresh pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid refresh request."})
		return
	}

	result, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken, c.Request.UserAgent())
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout revokes the presented refresh token. Always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Logout failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// LogoutAll revokes every refresh token of the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	if err := h.Auth.LogoutAll(c.Request.Context(), principal.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Logout failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Register creates a member account in the tenant and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		TenantID    string `json:"tenant_id" binding:"required"`
		Email       string `json:"email" binding:"required"`
		Password    string `json:"password" binding:"required,min=8"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid registration request."})
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid tenant id."})
		return
	}

	// Self-service registration always produces a member. Staff accounts are
	// provisioned by tenant admins.
	result, err := h.Auth.Register(c.Request.Context(), tenantID, req.Email, req.Password, req.DisplayName, domain.RoleMember)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Me returns the authenticated user's profile and effective authorities.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Authentication required."})
		return
	}

	user, err := h.Auth.CurrentUser(c.Request.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "error_description": "Account no longer exists."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Profile lookup failed."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           user.ID,
		"tenant_id":    user.TenantID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"role":         user.Role,
		"status":       user.Status,
		"authorities":  principal.Authorities(),
		"permissions":  principal.Permissions.Codes(),
		"last_login":   user.LastLoginAt,
	})
}

// writeAuthError maps service failures onto the JSON error envelope. Anything
// that is not a deliberate AuthError stays opaque to the caller.
func writeAuthError(c *gin.Context, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Something went wrong."})
}
