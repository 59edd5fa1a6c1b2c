// Package bootstrap seeds the permission catalog, role defaults, and the
// initial admin account on startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/config"
	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/password"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
	"github.com/AminElhag/Liyaqa-sub035/internal/tenant"
)

type catalogEntry struct {
	code        string
	module      string
	description string
}

// permissionCatalog is the canonical set of permission codes per module.
// Seeding is idempotent; redeploys re-assert the catalog without touching
// per-user grants.
var permissionCatalog = []catalogEntry{
	{"members_view", "members", "View member profiles"},
	{"members_create", "members", "Create members"},
	{"members_edit", "members", "Edit member profiles"},
	{"members_delete", "members", "Delete members"},
	{"subscriptions_view", "subscriptions", "View subscriptions"},
	{"subscriptions_create", "subscriptions", "Create subscriptions"},
	{"subscriptions_edit", "subscriptions", "Edit subscriptions"},
	{"subscriptions_cancel", "subscriptions", "Cancel subscriptions"},
	{"classes_view", "classes", "View class schedules"},
	{"classes_create", "classes", "Create classes"},
	{"classes_edit", "classes", "Edit classes"},
	{"classes_delete", "classes", "Delete classes"},
	{"classes_book", "classes", "Book class sessions"},
	{"attendance_view", "attendance", "View attendance records"},
	{"attendance_record", "attendance", "Record attendance"},
	{"billing_view", "billing", "View invoices and payments"},
	{"billing_create", "billing", "Create invoices and take payments"},
	{"billing_refund", "billing", "Issue refunds"},
	{"reports_view", "reports", "View reports"},
	{"reports_export", "reports", "Export reports"},
	{"staff_view", "staff", "View staff accounts"},
	{"staff_create", "staff", "Create staff accounts"},
	{"staff_edit", "staff", "Edit staff accounts"},
	{"settings_view", "settings", "View club settings"},
	{"settings_edit", "settings", "Edit club settings"},
	{"permissions_view", "permissions", "View permission assignments"},
	{"permissions_grant", "permissions", "Grant and revoke permissions"},
}

// roleDefaults maps each role to its default permission codes. Admin roles
// get the full catalog and are handled in seedRoleDefaults.
var roleDefaults = map[domain.Role][]string{
	domain.RoleStaff: {
		"members_view", "members_create", "members_edit",
		"subscriptions_view", "subscriptions_create",
		"classes_view", "attendance_view", "attendance_record",
		"billing_view",
	},
	domain.RoleTrainer: {
		"members_view",
		"classes_view", "classes_create", "classes_edit",
		"attendance_view", "attendance_record",
	},
	domain.RoleReceptionist: {
		"members_view", "members_create",
		"subscriptions_view",
		"classes_view", "classes_book",
		"attendance_record",
		"billing_view", "billing_create",
	},
	domain.RoleMember: {
		"classes_view", "classes_book", "attendance_view",
	},
}

var fullCatalogRoles = []domain.Role{
	domain.RoleSuperAdmin,
	domain.RoleClubAdmin,
	domain.RolePlatformAdmin,
	domain.RolePlatformSuperAdmin,
}

// Seed registers the startup hook that seeds the catalog and admin user.
func Seed(lc fx.Lifecycle, cfg config.Config, pool *pgxpool.Pool, users repository.UserRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := seedCatalog(ctx, pool); err != nil {
				return err
			}
			if err := seedRoleDefaults(ctx, pool); err != nil {
				return err
			}
			return ensureAdmin(ctx, cfg, users, logger)
		},
	})
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	const insert = `INSERT INTO permissions (id, code, module, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET module = EXCLUDED.module, description = EXCLUDED.description`

	for _, entry := range permissionCatalog {
		if _, err := pool.Exec(ctx, insert, uuid.New(), entry.code, entry.module, entry.description); err != nil {
			return fmt.Errorf("seed permission %q: %w", entry.code, err)
		}
	}
	return nil
}

func seedRoleDefaults(ctx context.Context, pool *pgxpool.Pool) error {
	const insert = `INSERT INTO role_default_permissions (role, permission_id)
SELECT $1, id FROM permissions WHERE code = $2
ON CONFLICT DO NOTHING`
	const insertAll = `INSERT INTO role_default_permissions (role, permission_id)
SELECT $1, id FROM permissions
ON CONFLICT DO NOTHING`

	for role, codes := range roleDefaults {
		for _, code := range codes {
			if _, err := pool.Exec(ctx, insert, string(role), code); err != nil {
				return fmt.Errorf("seed defaults for %s: %w", role, err)
			}
		}
	}
	for _, role := range fullCatalogRoles {
		if _, err := pool.Exec(ctx, insertAll, string(role)); err != nil {
			return fmt.Errorf("seed defaults for %s: %w", role, err)
		}
	}
	return nil
}

// ensureAdmin creates the configured admin account if missing. Skipped when
// the admin env vars are unset.
func ensureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" || cfg.AdminTenantID == "" {
		return nil
	}

	tenantID, err := uuid.Parse(cfg.AdminTenantID)
	if err != nil {
		return fmt.Errorf("bootstrap admin tenant id: %w", err)
	}
	ctx = tenant.WithTenant(ctx, tenantID)

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup admin: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  "Admin",
		Role:         domain.RoleSuperAdmin,
		Status:       domain.UserStatusActive,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", created.ID.String()),
		)
	}
	return nil
}
