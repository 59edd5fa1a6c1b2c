package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record of an issued refresh token. Only the
// SHA-256 hash of the raw token is ever stored; the raw value lives with the
// client until it is presented for rotation.
type RefreshToken struct {
	ID         int64
	UserID     uuid.UUID
	TenantID   uuid.UUID
	TokenHash  string
	DeviceInfo string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Active reports whether the record may still be redeemed at the given time.
func (t RefreshToken) Active(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
