package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testUser() domain.User {
	return domain.User{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Email:    "trainer@club.example",
		Role:     domain.RoleTrainer,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "liyaqa", 15*time.Minute, time.Hour)
	validator := token.NewValidator(testSecret, "liyaqa")
	user := testUser()

	raw, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := validator.ValidateAccess(raw)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, user.TenantID, claims.TenantID)
	require.Equal(t, user.Role, claims.Role)
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, token.TypeAccess, claims.Type)
	require.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestRefreshTokenOmitsProfileClaims(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "liyaqa", 15*time.Minute, time.Hour)
	validator := token.NewValidator(testSecret, "liyaqa")

	raw, hash, err := issuer.IssueRefreshToken(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEqual(t, raw, hash)
	require.Equal(t, token.Hash(raw), hash)

	claims, err := validator.ValidateRefresh(raw)
	require.NoError(t, err)
	require.Equal(t, token.TypeRefresh, claims.Type)
	require.Empty(t, claims.Email)
	require.Empty(t, string(claims.Role))
}

func TestTokenTypeSeparation(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "liyaqa", 15*time.Minute, time.Hour)
	validator := token.NewValidator(testSecret, "liyaqa")
	user := testUser()

	access, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)
	refresh, _, err := issuer.IssueRefreshToken(user)
	require.NoError(t, err)

	_, err = validator.ValidateRefresh(access)
	require.ErrorIs(t, err, token.ErrInvalid)

	_, err = validator.ValidateAccess(refresh)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "liyaqa", -time.Minute, time.Hour)
	validator := token.NewValidator(testSecret, "liyaqa")

	raw, err := issuer.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = validator.ValidateAccess(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "liyaqa", 15*time.Minute, time.Hour)
	validator := token.NewValidator([]byte("another-secret-another-secret-32"), "liyaqa")

	raw, err := issuer.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = validator.ValidateAccess(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestIssuerMismatchRejected(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "someone-else", 15*time.Minute, time.Hour)
	validator := token.NewValidator(testSecret, "liyaqa")

	raw, err := issuer.IssueAccessToken(testUser())
	require.NoError(t, err)

	_, err = validator.ValidateAccess(raw)
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestTamperedTokenRejected(t *testing.T) {
	issuer := token.NewIssuer(testSecret, "liyaqa", 15*time.Minute, time.Hour)
	validator := token.NewValidator(testSecret, "liyaqa")

	raw, err := issuer.IssueAccessToken(testUser())
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = validator.ValidateAccess(tampered)
	require.ErrorIs(t, err, token.ErrInvalid)

	_, err = validator.Validate("not-a-token")
	require.ErrorIs(t, err, token.ErrInvalid)
}

func TestHashIsDeterministic(t *testing.T) {
	require.Equal(t, token.Hash("abc"), token.Hash("abc"))
	require.NotEqual(t, token.Hash("abc"), token.Hash("abd"))
	require.NotEqual(t, "abc", token.Hash("abc"))
}
