// Package permission resolves a user's effective permission set from role
// defaults and explicit per-user grants.
package permission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
)

// Resolver computes effective permissions. Role defaults are a floor, not a
// ceiling: per-user grants only ever add codes, and there is no per-user deny.
type Resolver struct {
	repo repository.PermissionRepository
}

// NewResolver creates a permission resolver.
func NewResolver(repo repository.PermissionRepository) *Resolver {
	return &Resolver{repo: repo}
}

// EffectivePermissions returns the union of the role's default permission
// codes and the user's explicit grants. A storage failure propagates: a user
// whose permissions cannot be determined must not be treated as having any.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID uuid.UUID, role domain.Role) (domain.PermissionSet, error) {
	defaults, err := r.repo.ListCodesForRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("resolve role defaults: %w", err)
	}
	grants, err := r.repo.ListCodesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user grants: %w", err)
	}

	set := make(domain.PermissionSet, len(defaults)+len(grants))
	for _, code := range defaults {
		set[code] = struct{}{}
	}
	for _, code := range grants {
		set[code] = struct{}{}
	}

	zap.L().Debug("permissions resolved",
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
		zap.Int("count", len(set)),
	)
	return set, nil
}

// Catalog returns the full permission catalog.
func (r *Resolver) Catalog(ctx context.Context) ([]domain.Permission, error) {
	return r.repo.ListAll(ctx)
}

// CatalogByModule groups the catalog by module for the admin UI.
func (r *Resolver) CatalogByModule(ctx context.Context) (map[string][]domain.Permission, error) {
	permissions, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]domain.Permission)
	for _, p := range permissions {
		grouped[p.Module] = append(grouped[p.Module], p)
	}
	return grouped, nil
}

// Grant adds an explicit permission grant to one user. Granting a code the
// user already holds is a no-op.
func (r *Resolver) Grant(ctx context.Context, userID uuid.UUID, code string, grantedBy *uuid.UUID) error {
	perm, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("grant %q: %w", code, err)
	}
	if err := r.repo.GrantToUser(ctx, domain.UserPermission{
		UserID:       userID,
		PermissionID: perm.ID,
		GrantedBy:    grantedBy,
	}); err != nil {
		return fmt.Errorf("grant %q: %w", code, err)
	}
	return nil
}

// Revoke removes an explicit grant. It cannot remove a role default; role
// defaults always remain part of the effective set.
func (r *Resolver) Revoke(ctx context.Context, userID uuid.UUID, code string) error {
	perm, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("revoke %q: %w", code, err)
	}
	if err := r.repo.RevokeFromUser(ctx, userID, perm.ID); err != nil {
		return fmt.Errorf("revoke %q: %w", code, err)
	}
	return nil
}
