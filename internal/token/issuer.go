package token

import (
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
)

// Issuer signs access and refresh tokens. It performs no I/O; persisting the
// refresh-token hash is the caller's responsibility.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer constructs an issuer for the given signing secret and TTLs.
func NewIssuer(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccessToken produces a signed access token carrying the user's
// identity, tenant, role, and email.
func (i *Issuer) IssueAccessToken(user domain.User) (string, error) {
	return i.sign(user, TypeAccess, i.accessTTL)
}

// IssueRefreshToken produces a signed refresh token together with its one-way
// hash. The raw token goes back to the client; only the hash may be stored.
func (i *Issuer) IssueRefreshToken(user domain.User) (raw string, hash string, err error) {
	raw, err = i.sign(user, TypeRefresh, i.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return raw, Hash(raw), nil
}

// AccessTokenTTL exposes the configured access token lifetime for expires_in
// style responses.
func (i *Issuer) AccessTokenTTL() time.Duration {
	return i.accessTTL
}

func (i *Issuer) sign(user domain.User, typ Type, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: i.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := i.now().UTC()
	std := gojwt.Claims{
		Subject:  user.ID.String(),
		Issuer:   i.issuer,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}

	custom := customClaims{
		TenantID: user.TenantID.String(),
		Type:     typ.String(),
	}
	if typ == TypeAccess {
		custom.Role = string(user.Role)
		custom.Email = user.Email
	}

	signed, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return signed, nil
}
