package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/config"
	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	httptransport "github.com/AminElhag/Liyaqa-sub035/internal/http"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/handler"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/middleware"
	"github.com/AminElhag/Liyaqa-sub035/internal/permission"
	"github.com/AminElhag/Liyaqa-sub035/internal/ratelimit"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
	"github.com/AminElhag/Liyaqa-sub035/internal/service"
	"github.com/AminElhag/Liyaqa-sub035/internal/tenant"
	"github.com/AminElhag/Liyaqa-sub035/internal/token"
)

var testSecret = "0123456789abcdef0123456789abcdef"

type routerUserRepo struct {
	users map[uuid.UUID]domain.User
}

func (m *routerUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range m.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, repository.ErrNotFound
}

func (m *routerUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	tenantID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return domain.User{}, err
	}
	u, ok := m.users[userID]
	if !ok || u.TenantID != tenantID {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *routerUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.users[user.ID] = user
	return user, nil
}

func (m *routerUserRepo) Update(ctx context.Context, user domain.User) error {
	m.users[user.ID] = user
	return nil
}

type routerTokenRepo struct{}

func (routerTokenRepo) Save(ctx context.Context, t domain.RefreshToken) error { return nil }

func (routerTokenRepo) FindActiveByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return domain.RefreshToken{}, repository.ErrNotFound
}

func (routerTokenRepo) Consume(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return domain.RefreshToken{}, repository.ErrNotFound
}

func (routerTokenRepo) Revoke(ctx context.Context, hash string) error { return nil }

func (routerTokenRepo) RevokeAllByUser(ctx context.Context, userID uuid.UUID) error { return nil }

func (routerTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type routerPermissionRepo struct {
	roleCodes map[domain.Role][]string
}

func (m *routerPermissionRepo) ListAll(ctx context.Context) ([]domain.Permission, error) {
	return nil, nil
}

func (m *routerPermissionRepo) GetByCode(ctx context.Context, code string) (domain.Permission, error) {
	return domain.Permission{}, repository.ErrNotFound
}

func (m *routerPermissionRepo) ListCodesForRole(ctx context.Context, role domain.Role) ([]string, error) {
	return m.roleCodes[role], nil
}

func (m *routerPermissionRepo) ListCodesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return nil, nil
}

func (m *routerPermissionRepo) GrantToUser(ctx context.Context, grant domain.UserPermission) error {
	return nil
}

func (m *routerPermissionRepo) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	return nil
}

type routerRateLimitStore struct{}

func (routerRateLimitStore) CheckAndIncrement(ctx context.Context, clientKey, tier string, windowStart time.Time, limit int) (int, bool, error) {
	return 1, true, nil
}

func (routerRateLimitStore) DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type routerFixture struct {
	router *gin.Engine
	issuer *token.Issuer
	admin  domain.User
	member domain.User
	target domain.User
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tenantID := uuid.New()
	admin := domain.User{ID: uuid.New(), TenantID: tenantID, Email: "admin@club.example", Role: domain.RoleClubAdmin, Status: domain.UserStatusActive}
	member := domain.User{ID: uuid.New(), TenantID: tenantID, Email: "member@club.example", Role: domain.RoleMember, Status: domain.UserStatusActive}
	target := domain.User{ID: uuid.New(), TenantID: tenantID, Email: "target@club.example", Role: domain.RoleStaff, Status: domain.UserStatusActive}

	users := &routerUserRepo{users: map[uuid.UUID]domain.User{
		admin.ID:  admin,
		member.ID: member,
		target.ID: target,
	}}
	perms := &routerPermissionRepo{roleCodes: map[domain.Role][]string{
		domain.RoleClubAdmin: {"permissions_view", "permissions_grant"},
		domain.RoleMember:    {"classes_view", "classes_book"},
		domain.RoleStaff:     {"members_view"},
	}}

	cfg := config.Config{
		ServiceName:     "liyaqa-auth",
		JWTSecret:       testSecret,
		JWTIssuer:       "liyaqa",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	issuer := token.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	validator := token.NewValidator([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	resolver := permission.NewResolver(perms)
	logger := zap.NewNop()

	authService := service.NewAuthService(users, routerTokenRepo{}, issuer, validator, cfg, logger)
	router := httptransport.NewRouter(
		cfg,
		logger,
		handler.NewAuthHandler(authService),
		handler.NewPermissionHandler(resolver, users),
		&middleware.Auth{Validator: validator, Resolver: resolver, Logger: logger},
		ratelimit.New(routerRateLimitStore{}, time.Minute, nil),
		middleware.NewThrottle(0),
	)

	return &routerFixture{router: router, issuer: issuer, admin: admin, member: member, target: target}
}

func (f *routerFixture) get(t *testing.T, path string, as *domain.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if as != nil {
		raw, err := f.issuer.IssueAccessToken(*as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestUserPermissionsRequiresPermissionsView(t *testing.T) {
	f := newRouterFixture(t)
	path := "/api/users/" + f.target.ID.String() + "/permissions"

	rec := f.get(t, path, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// An ordinary member cannot enumerate another user's permissions.
	rec = f.get(t, path, &f.member)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.get(t, path, &f.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "members_view")
	require.Contains(t, rec.Body.String(), f.target.ID.String())
}

func TestHealthIsOpen(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.get(t, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "liyaqa-auth")
}
