package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission is one entry of the static permission catalog, identified by a
// unique code such as "members_view" or "branding_update".
type Permission struct {
	ID          uuid.UUID
	Code        string
	Module      string
	Description string
	CreatedAt   time.Time
}

// UserPermission is an explicit per-user grant on top of the role defaults.
// Grants are strictly additive; there is no per-user deny.
type UserPermission struct {
	UserID       uuid.UUID
	PermissionID uuid.UUID
	GrantedBy    *uuid.UUID
	CreatedAt    time.Time
}

// PermissionSet is the resolved effective permission codes for one user.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given codes.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission code.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the codes in the set. Order is unspecified.
func (s PermissionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	return codes
}
