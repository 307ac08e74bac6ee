package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
)

// RepositoryPort defines data access methods for account administration.
type RepositoryPort interface {
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, int, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	CreateAccount(ctx context.Context, account Account, passwordHash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	GrantRole(ctx context.Context, id uuid.UUID, role authz.Role) error
	RevokeRole(ctx context.Context, id uuid.UUID, role authz.Role) error
}
