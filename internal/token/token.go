// Package token issues and validates the signed session tokens that carry a
// user's identity, tenant, and role between requests. Access and refresh
// tokens share one symmetric signing secret and differ only in TTL and in the
// declared token type, which is modelled as a closed type so a refresh token
// can never slip through an access-token check.
package token

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
)

// ErrInvalid is returned for every validation failure: bad signature,
// malformed payload, expiry in the past, or mismatched token type. Callers
// must not distinguish between these cases.
var ErrInvalid = errors.New("invalid token")

// Type is the declared purpose of a token. The zero value is not a valid type;
// anything that is not exactly TypeAccess or TypeRefresh fails validation.
type Type int

const (
	TypeAccess Type = iota + 1
	TypeRefresh
)

const (
	typeClaimAccess  = "access"
	typeClaimRefresh = "refresh"
)

// String returns the wire form of the type as carried in the "type" claim.
func (t Type) String() string {
	switch t {
	case TypeAccess:
		return typeClaimAccess
	case TypeRefresh:
		return typeClaimRefresh
	}
	return "unknown"
}

func parseType(claim string) (Type, bool) {
	switch claim {
	case typeClaimAccess:
		return TypeAccess, true
	case typeClaimRefresh:
		return TypeRefresh, true
	}
	return 0, false
}

// Claims is the verified payload of a token. Values are only meaningful when
// obtained from a successful Validator call.
type Claims struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Role      domain.Role
	Email     string
	Type      Type
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// customClaims is the JSON shape of the non-registered claims.
type customClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
	Type     string `json:"type"`
}

// Hash computes the one-way fingerprint of a raw token string: the base64
// encoded SHA-256 digest. This is the only form in which refresh tokens are
// ever persisted or compared.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}
