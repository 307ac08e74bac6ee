package authz

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Role is one of the closed set of portal roles. Roles are not mutually
// exclusive: a principal may hold several at once.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCounselor Role = "counselor"
	RoleCounselee Role = "counselee"
)

// ParseRole validates a raw role value against the closed enumeration.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleCounselor, RoleCounselee:
		return Role(raw), nil
	}
	return "", fmt.Errorf("authz: unknown role %q", raw)
}

// RoleSet is a deduplicated collection of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Has reports whether the set contains role.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Add inserts role into the set.
func (s RoleSet) Add(role Role) {
	s[role] = struct{}{}
}

// Roles returns the members in a stable order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s))
	for role := range s {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Principal is the profile row backing an authenticated identity.
type Principal struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	IsActive  bool
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time

	// LegacyRole is the deprecated single-role column, nil once migrated.
	// It is consulted only when no assignment rows exist.
	LegacyRole *Role
}

// ResolvedUser pairs a principal with its effective role set. Handlers
// receive it as an explicit value, never from package-level state.
type ResolvedUser struct {
	Principal
	Roles RoleSet
}

// HasRole reports whether the resolved user holds role.
func (u *ResolvedUser) HasRole(role Role) bool {
	return u != nil && u.Roles.Has(role)
}

// IsAdmin is a convenience accessor used by templates.
func (u *ResolvedUser) IsAdmin() bool { return u.HasRole(RoleAdmin) }

// IsCounselor is a convenience accessor used by templates.
func (u *ResolvedUser) IsCounselor() bool { return u.HasRole(RoleCounselor) }

// IsCounselee is a convenience accessor used by templates.
func (u *ResolvedUser) IsCounselee() bool { return u.HasRole(RoleCounselee) }
