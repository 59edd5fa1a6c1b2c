package permission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/permission"
	"github.com/AminElhag/Liyaqa-sub035/internal/repository"
)

type memoryPermissionRepo struct {
	catalog    []domain.Permission
	roleCodes  map[domain.Role][]string
	userCodes  map[uuid.UUID][]string
	grants     []domain.UserPermission
	roleErr    error
	userErr    error
	catalogErr error
}

func (m *memoryPermissionRepo) ListAll(ctx context.Context) ([]domain.Permission, error) {
	return m.catalog, m.catalogErr
}

func (m *memoryPermissionRepo) GetByCode(ctx context.Context, code string) (domain.Permission, error) {
	for _, p := range m.catalog {
		if p.Code == code {
			return p, nil
		}
	}
	return domain.Permission{}, repository.ErrNotFound
}

func (m *memoryPermissionRepo) ListCodesForRole(ctx context.Context, role domain.Role) ([]string, error) {
	if m.roleErr != nil {
		return nil, m.roleErr
	}
	return m.roleCodes[role], nil
}

func (m *memoryPermissionRepo) ListCodesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	if m.userErr != nil {
		return nil, m.userErr
	}
	return m.userCodes[userID], nil
}

func (m *memoryPermissionRepo) GrantToUser(ctx context.Context, grant domain.UserPermission) error {
	m.grants = append(m.grants, grant)
	return nil
}

func (m *memoryPermissionRepo) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	return nil
}

func TestEffectivePermissionsIsUnion(t *testing.T) {
	userID := uuid.New()
	repo := &memoryPermissionRepo{
		roleCodes: map[domain.Role][]string{
			domain.RoleTrainer: {"classes_view", "classes_edit", "members_view"},
		},
		userCodes: map[uuid.UUID][]string{
			userID: {"reports_view", "members_view"},
		},
	}
	resolver := permission.NewResolver(repo)

	set, err := resolver.EffectivePermissions(context.Background(), userID, domain.RoleTrainer)
	require.NoError(t, err)

	require.Len(t, set, 4)
	require.True(t, set.Has("classes_view"))
	require.True(t, set.Has("classes_edit"))
	require.True(t, set.Has("members_view"))
	require.True(t, set.Has("reports_view"))
	require.False(t, set.Has("billing_refund"))
}

func TestEffectivePermissionsEmptyWithoutGrants(t *testing.T) {
	repo := &memoryPermissionRepo{}
	resolver := permission.NewResolver(repo)

	set, err := resolver.EffectivePermissions(context.Background(), uuid.New(), domain.RoleMember)
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestEffectivePermissionsPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection refused")

	resolver := permission.NewResolver(&memoryPermissionRepo{roleErr: boom})
	_, err := resolver.EffectivePermissions(context.Background(), uuid.New(), domain.RoleStaff)
	require.ErrorIs(t, err, boom)

	resolver = permission.NewResolver(&memoryPermissionRepo{userErr: boom})
	_, err = resolver.EffectivePermissions(context.Background(), uuid.New(), domain.RoleStaff)
	require.ErrorIs(t, err, boom)
}

func TestGrantUnknownCode(t *testing.T) {
	resolver := permission.NewResolver(&memoryPermissionRepo{})

	err := resolver.Grant(context.Background(), uuid.New(), "no_such_code", nil)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGrantRecordsGrantor(t *testing.T) {
	permID := uuid.New()
	repo := &memoryPermissionRepo{
		catalog: []domain.Permission{{ID: permID, Code: "reports_view", Module: "reports"}},
	}
	resolver := permission.NewResolver(repo)

	userID := uuid.New()
	adminID := uuid.New()
	require.NoError(t, resolver.Grant(context.Background(), userID, "reports_view", &adminID))

	require.Len(t, repo.grants, 1)
	require.Equal(t, userID, repo.grants[0].UserID)
	require.Equal(t, permID, repo.grants[0].PermissionID)
	require.NotNil(t, repo.grants[0].GrantedBy)
	require.Equal(t, adminID, *repo.grants[0].GrantedBy)
}

func TestCatalogByModule(t *testing.T) {
	repo := &memoryPermissionRepo{
		catalog: []domain.Permission{
			{ID: uuid.New(), Code: "members_view", Module: "members"},
			{ID: uuid.New(), Code: "members_edit", Module: "members"},
			{ID: uuid.New(), Code: "reports_view", Module: "reports"},
		},
	}
	resolver := permission.NewResolver(repo)

	grouped, err := resolver.CatalogByModule(context.Background())
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	require.Len(t, grouped["members"], 2)
	require.Len(t, grouped["reports"], 1)
}
