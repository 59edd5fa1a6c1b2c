package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist. Callers in the
// auth flow must not surface why a lookup missed.
var ErrNotFound = errors.New("not found")

// UserRepository exposes persistence for authenticatable users. Lookups are
// scoped to the tenant carried on the context; a missing tenant fails the
// query rather than widening it.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) error
}

// PermissionRepository exposes the permission catalog, role defaults, and
// per-user grants.
type PermissionRepository interface {
	ListAll(ctx context.Context) ([]domain.Permission, error)
	GetByCode(ctx context.Context, code string) (domain.Permission, error)
	ListCodesForRole(ctx context.Context, role domain.Role) ([]string, error)
	ListCodesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	GrantToUser(ctx context.Context, grant domain.UserPermission) error
	RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error
}

// RefreshTokenRepository persists refresh-token hashes for rotation and
// revocation checks. Consume is the rotation primitive: an atomic
// check-and-delete, so two concurrent refreshes of the same token cannot both
// succeed.
type RefreshTokenRepository interface {
	Save(ctx context.Context, token domain.RefreshToken) error
	FindActiveByHash(ctx context.Context, hash string) (domain.RefreshToken, error)
	Consume(ctx context.Context, hash string) (domain.RefreshToken, error)
	Revoke(ctx context.Context, hash string) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitRepository implements the fixed-window counter over storage. The
// increment is a single atomic statement so concurrent requests cannot both
// observe count-1 and pass.
type RateLimitRepository interface {
	CheckAndIncrement(ctx context.Context, clientKey, tier string, windowStart time.Time, limit int) (count int, allowed bool, err error)
	DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
