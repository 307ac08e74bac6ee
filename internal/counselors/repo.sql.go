package counselors

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath-care/brightpath/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const summaryQuery = `SELECT cp.id, cp.user_id, cp.specialties, COALESCE(cp.bio, ''), cp.max_counselees, cp.is_accepting_new, cp.created_at, cp.updated_at,
		u.email, COALESCE(u.full_name, ''),
		(SELECT count(*) FROM counselee_profiles a WHERE a.assigned_counselor_id = cp.user_id AND a.assignment_status = 'active')
	FROM counselor_profiles cp
	JOIN users u ON u.id = cp.user_id`

// ListProfiles returns all counselor profiles with account details and
// active counselee counts.
func (r *Repository) ListProfiles(ctx context.Context) ([]ProfileSummary, error) {
	rows, err := r.pool.Query(ctx, summaryQuery+` ORDER BY u.full_name, u.email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []ProfileSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfileByUser fetches the profile owned by userID.
func (r *Repository) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*ProfileSummary, error) {
	row := r.pool.QueryRow(ctx, summaryQuery+` WHERE cp.user_id = $1`, userID)
	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

// CreateProfile inserts a counselor profile row.
func (r *Repository) CreateProfile(ctx context.Context, profile Profile) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `INSERT INTO counselor_profiles (id, user_id, specialties, bio, max_counselees, is_accepting_new, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $7)`,
		profile.ID, profile.UserID, profile.Specialties, profile.Bio, profile.MaxCounselees, profile.IsAcceptingNew, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateProfile updates the editable fields of an existing profile.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE counselor_profiles
		SET specialties = $2, bio = NULLIF($3, ''), max_counselees = $4, is_accepting_new = $5, updated_at = now()
		WHERE user_id = $1`,
		userID, input.Specialties, input.Bio, input.MaxCounselees, input.IsAcceptingNew)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (ProfileSummary, error) {
	var summary ProfileSummary
	err := row.Scan(
		&summary.ID, &summary.UserID, &summary.Specialties, &summary.Bio,
		&summary.MaxCounselees, &summary.IsAcceptingNew, &summary.CreatedAt, &summary.UpdatedAt,
		&summary.Email, &summary.FullName, &summary.ActiveCounselees,
	)
	return summary, err
}

var _ RepositoryPort = (*Repository)(nil)
