package authz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetPrincipal fetches the users row by id.
func (r *Repository) GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, COALESCE(full_name, ''), role, is_active, COALESCE(metadata, '{}'::jsonb), created_at, updated_at FROM users WHERE id = $1`, id)
	var (
		p         Principal
		legacyRaw *string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &legacyRaw, &p.IsActive, &p.Metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if legacyRaw != nil {
		if role, err := ParseRole(*legacyRaw); err == nil {
			p.LegacyRole = &role
		}
	}
	return &p, nil
}

// ListRoleAssignments returns the distinct roles in user_roles.
func (r *Repository) ListRoleAssignments(ctx context.Context, id uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT role FROM user_roles WHERE user_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		role, err := ParseRole(raw)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// InsertRoleAssignment adds one (user, role) row.
func (r *Repository) InsertRoleAssignment(ctx context.Context, id uuid.UUID, role Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3)`, id, string(role), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAssignment
		}
		return err
	}
	return nil
}

// HasCounselorProfile reports counselor profile existence.
func (r *Repository) HasCounselorProfile(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM counselor_profiles WHERE user_id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

var _ RepositoryPort = (*Repository)(nil)
