package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// Resolver computes a principal's effective role set from the three
// sources of role truth left behind by the single-role migration: the
// user_roles table, the legacy users.role column, and counselor profile
// existence. While reconciling it opportunistically inserts the assignment
// rows the authoritative table is missing; those repairs are best-effort
// and never affect the returned result.
type Resolver struct {
	repo   RepositoryPort
	logger *slog.Logger

	// Repairs, when set, counts successful backfill inserts by source.
	Repairs RepairCounter
}

// RepairCounter receives one count per successful repair insert.
type RepairCounter interface {
	CountRoleRepair(source string)
}

// NewResolver builds a Resolver instance.
func NewResolver(repo RepositoryPort, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns the principal attributes and deduplicated role set for
// id. A missing users row yields ErrProfileNotFound; store failures
// propagate. The returned set may be empty, which callers must treat as
// "no authorized portal" rather than an error.
func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) (*ResolvedUser, error) {
	principal, err := r.repo.GetPrincipal(ctx, id)
	if err != nil {
		return nil, err
	}

	assigned, err := r.repo.ListRoleAssignments(ctx, id)
	if err != nil {
		return nil, err
	}

	roles := NewRoleSet(assigned...)
	if len(assigned) == 0 && principal.LegacyRole != nil {
		// No assignment rows yet: the legacy column is the fallback
		// source of truth, and the row it implies gets backfilled.
		roles.Add(*principal.LegacyRole)
		r.repair(ctx, id, *principal.LegacyRole, "legacy_column")
	}

	hasProfile, err := r.repo.HasCounselorProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if hasProfile && !roles.Has(RoleCounselor) {
		roles.Add(RoleCounselor)
		r.repair(ctx, id, RoleCounselor, "counselor_profile")
	}

	return &ResolvedUser{Principal: *principal, Roles: roles}, nil
}

// repair attempts one assignment insert. Duplicates mean a concurrent
// request or earlier call already fixed the row; anything else is logged
// and swallowed, since the resolved set is correct either way.
func (r *Resolver) repair(ctx context.Context, id uuid.UUID, role Role, source string) {
	err := r.repo.InsertRoleAssignment(ctx, id, role)
	if err == nil {
		if r.Repairs != nil {
			r.Repairs.CountRoleRepair(source)
		}
		return
	}
	if errors.Is(err, ErrDuplicateAssignment) {
		return
	}
	if r.logger != nil {
		r.logger.Warn("role assignment repair failed",
			slog.String("user_id", id.String()),
			slog.String("role", string(role)),
			slog.Any("error", err))
	}
}
