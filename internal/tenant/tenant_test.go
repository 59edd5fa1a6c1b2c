package tenant_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AminElhag/Liyaqa-sub035/internal/tenant"
)

func TestWithTenantRoundTrip(t *testing.T) {
	id := uuid.New()
	ctx := tenant.WithTenant(context.Background(), id)

	got, ok := tenant.FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)

	got, err := tenant.MustFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestMissingTenant(t *testing.T) {
	_, ok := tenant.FromContext(context.Background())
	require.False(t, ok)

	_, err := tenant.MustFromContext(context.Background())
	require.ErrorIs(t, err, tenant.ErrNoTenant)
}

func TestChildContextDoesNotLeakIntoParent(t *testing.T) {
	parentID := uuid.New()
	parent := tenant.WithTenant(context.Background(), parentID)

	childID := uuid.New()
	child := tenant.WithTenant(parent, childID)

	got, ok := tenant.FromContext(parent)
	require.True(t, ok)
	require.Equal(t, parentID, got)

	got, ok = tenant.FromContext(child)
	require.True(t, ok)
	require.Equal(t, childID, got)
}
