package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightpath-care/brightpath/internal/authz"
)

// Account represents a user account for administration.
type Account struct {
	ID         uuid.UUID
	Email      string
	FullName   string
	IsActive   bool
	LegacyRole *authz.Role
	Roles      []authz.Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NeedsRepair reports whether the account still relies on the legacy
// role column without a matching assignment row.
func (a Account) NeedsRepair() bool {
	return a.LegacyRole != nil && len(a.Roles) == 0
}

// ListFilter narrows account listings.
type ListFilter struct {
	Search  string
	Role    string
	Page    int
	PerPage int
}

// NewAccount carries the fields for account creation.
type NewAccount struct {
	Email    string
	FullName string
	Password string
	Roles    []authz.Role
}
