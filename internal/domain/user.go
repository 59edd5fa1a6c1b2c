package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse-grained role assigned to a user within a tenant.
type Role string

const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleClubAdmin    Role = "CLUB_ADMIN"
	RoleStaff        Role = "STAFF"
	RoleTrainer      Role = "TRAINER"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleMember       Role = "MEMBER"

	// Platform roles operate across tenants from the operator dashboard.
	RolePlatformAdmin      Role = "PLATFORM_ADMIN"
	RolePlatformSuperAdmin Role = "PLATFORM_SUPER_ADMIN"
)

// Authority returns the Spring-compatible role authority understood by the
// downstream authorization layer, e.g. "ROLE_CLUB_ADMIN".
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// IsPlatform reports whether the role belongs to platform (cross-tenant) staff.
func (r Role) IsPlatform() bool {
	switch r {
	case RolePlatformAdmin, RolePlatformSuperAdmin:
		return true
	}
	return false
}

// UserStatus describes whether a user may currently authenticate.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusLocked   UserStatus = "LOCKED"
)

// User is the authenticatable identity within a tenant.
type User struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Email               string
	PasswordHash        string
	DisplayName         string
	Role                Role
	Status              UserStatus
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CanLogin reports whether the account is in a state that permits issuing
// tokens. A lock that has passed its expiry no longer blocks login.
func (u User) CanLogin(now time.Time) bool {
	switch u.Status {
	case UserStatusActive:
		return true
	case UserStatusLocked:
		return u.LockedUntil != nil && now.After(*u.LockedUntil)
	}
	return false
}
