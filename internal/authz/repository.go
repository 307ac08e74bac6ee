package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrProfileNotFound indicates the principal has no users row. Callers
// treat it as an incomplete-setup state, distinct from unauthenticated and
// from data-store failures.
var ErrProfileNotFound = errors.New("authz: profile not found")

// ErrDuplicateAssignment indicates the (principal, role) pair already
// exists. Repair inserts hitting it mean the store is already consistent.
var ErrDuplicateAssignment = errors.New("authz: role already assigned")

// RepositoryPort defines the data access the resolver needs.
type RepositoryPort interface {
	// GetPrincipal fetches the users row, returning ErrProfileNotFound
	// when absent.
	GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
	// ListRoleAssignments returns the distinct roles assigned to the
	// principal, empty when none exist.
	ListRoleAssignments(ctx context.Context, id uuid.UUID) ([]Role, error)
	// InsertRoleAssignment adds one assignment row, returning
	// ErrDuplicateAssignment when the pair already exists.
	InsertRoleAssignment(ctx context.Context, id uuid.UUID, role Role) error
	// HasCounselorProfile reports whether a counselor profile row exists
	// for the principal.
	HasCounselorProfile(ctx context.Context, id uuid.UUID) (bool, error)
}
