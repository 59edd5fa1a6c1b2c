package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/middleware"
	"github.com/AminElhag/Liyaqa-sub035/internal/permission"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
)

// PermissionHandler exposes the permission catalog and per-user grants.
type PermissionHandler struct {
	Resolver *permission.Resolver
	Users    repository.UserRepository
}

// NewPermissionHandler creates the handler.
func NewPermissionHandler(resolver *permission.Resolver, users repository.UserRepository) *PermissionHandler {
	return &PermissionHandler{Resolver: resolver, Users: users}
}

// List returns the full permission catalog.
func (h *PermissionHandler) List(c *gin.Context) {
	permissions, err := h.Resolver.Catalog(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Catalog lookup failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": permissions})
}

// ListByModule returns the catalog grouped by module.
func (h *PermissionHandler) ListByModule(c *gin.Context) {
	grouped, err := h.Resolver.CatalogByModule(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Catalog lookup failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": grouped})
}

// UserPermissions returns one user's explicit grants plus role defaults.
func (h *PermissionHandler) UserPermissions(c *gin.Context) {
	userID, role, ok := h.targetUser(c)
	if !ok {
		return
	}

	set, err := h.Resolver.EffectivePermissions(c.Request.Context(), userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Permission lookup failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "permissions": set.Codes()})
}

// Grant adds an explicit permission to a user.
func (h *PermissionHandler) Grant(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid user id."})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Permission code is required."})
		return
	}

	var grantedBy *uuid.UUID
	if principal, ok := middleware.GetPrincipal(c); ok {
		id := principal.UserID
		grantedBy = &id
	}

	if err := h.Resolver.Grant(c.Request.Context(), userID, req.Code, grantedBy); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Unknown permission code."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Grant failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "granted"})
}

// Revoke removes an explicit grant from a user. Role defaults are untouched.
func (h *PermissionHandler) Revoke(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid user id."})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Permission code is required."})
		return
	}

	if err := h.Resolver.Revoke(c.Request.Context(), userID, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Unknown permission code."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Revoke failed."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// targetUser resolves the :id path parameter against the tenant's user store.
func (h *PermissionHandler) targetUser(c *gin.Context) (uuid.UUID, domain.Role, bool) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid user id."})
		return uuid.Nil, "", false
	}

	user, err := h.Users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "User not found."})
			return uuid.Nil, "", false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "User lookup failed."})
		return uuid.Nil, "", false
	}
	return user.ID, user.Role, true
}
