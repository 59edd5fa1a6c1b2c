package token

import (
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
)

// Validator verifies token signatures and claims. Every failure is reported
// as an ordinary error wrapping ErrInvalid; validation never panics and never
// distinguishes why a token was rejected.
type Validator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewValidator constructs a validator for the given signing secret.
func NewValidator(secret []byte, issuer string) *Validator {
	return &Validator{secret: secret, issuer: issuer, now: time.Now}
}

// Validate verifies the signature and payload of a token of either type and
// requires the expiry to be strictly in the future.
func (v *Validator) Validate(raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: parse: %v", ErrInvalid, err)
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(v.secret, &std, &custom); err != nil {
		return Claims{}, fmt.Errorf("%w: verify: %v", ErrInvalid, err)
	}

	if v.issuer != "" && std.Issuer != v.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}
	if std.Expiry == nil || !v.now().Before(std.Expiry.Time()) {
		return Claims{}, fmt.Errorf("%w: expired", ErrInvalid)
	}

	userID, err := uuid.Parse(std.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: subject", ErrInvalid)
	}
	tenantID, err := uuid.Parse(custom.TenantID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: tenant", ErrInvalid)
	}
	typ, ok := parseType(custom.Type)
	if !ok {
		return Claims{}, fmt.Errorf("%w: token type", ErrInvalid)
	}

	claims := Claims{
		UserID:    userID,
		TenantID:  tenantID,
		Role:      domain.Role(custom.Role),
		Email:     custom.Email,
		Type:      typ,
		ExpiresAt: std.Expiry.Time(),
	}
	if std.IssuedAt != nil {
		claims.IssuedAt = std.IssuedAt.Time()
	}
	return claims, nil
}

// ValidateAccess accepts only access tokens. A valid refresh token presented
// here fails exactly like a forged one.
func (v *Validator) ValidateAccess(raw string) (Claims, error) {
	return v.validateTyped(raw, TypeAccess)
}

// ValidateRefresh accepts only refresh tokens.
func (v *Validator) ValidateRefresh(raw string) (Claims, error) {
	return v.validateTyped(raw, TypeRefresh)
}

func (v *Validator) validateTyped(raw string, want Type) (Claims, error) {
	claims, err := v.Validate(raw)
	if err != nil {
		return Claims{}, err
	}
	switch claims.Type {
	case TypeAccess, TypeRefresh:
		if claims.Type != want {
			return Claims{}, fmt.Errorf("%w: token type", ErrInvalid)
		}
	default:
		return Claims{}, fmt.Errorf("%w: token type", ErrInvalid)
	}
	return claims, nil
}
