// Package tenant carries "which tenant is this request acting as" through a
// request's lifetime. The tenant is an immutable value on the request
// context, set once after successful authentication; it disappears with the
// context on every exit path, so one request's tenant can never leak into
// another through worker reuse.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoTenant is returned when an operation that must be tenant-scoped runs
// without a tenant on the context. There is no default or global tenant.
var ErrNoTenant = errors.New("no tenant in context")

type contextKey struct{}

// WithTenant returns a child context acting as the given tenant.
func WithTenant(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the current tenant, if any.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok
}

// MustFromContext returns the current tenant or ErrNoTenant. Data-access code
// uses this to scope every query; a missing tenant is a hard failure, never a
// silent fall-through to global scope.
func MustFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, ErrNoTenant
	}
	return id, nil
}
