package counselees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/platform/db"
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

const summaryColumns = `cp.id, cp.user_id, cp.intake_submission_id, cp.assigned_counselor_id, cp.assignment_status,
	cp.assigned_at, COALESCE(cp.notes, ''), cp.emergency_contact, cp.created_at, cp.updated_at,
	u.email, COALESCE(u.full_name, ''), COALESCE(c.full_name, c.email, '')`

const summaryJoins = `FROM counselee_profiles cp
	JOIN users u ON u.id = cp.user_id
	LEFT JOIN users c ON c.id = cp.assigned_counselor_id`

// ListProfiles returns a page of counselee profiles with the total
// match count.
func (r *Repository) ListProfiles(ctx context.Context, filter ListFilter) ([]Summary, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if filter.CounselorID != nil {
		args = append(args, *filter.CounselorID)
		where += fmt.Sprintf(` AND cp.assigned_counselor_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(` AND cp.assignment_status = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM counselee_profiles cp `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := shared.LimitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query := `SELECT ` + summaryColumns + ` ` + summaryJoins + ` ` + where +
		` ORDER BY cp.created_at DESC LIMIT $` + fmt.Sprint(len(args)-1) + ` OFFSET $` + fmt.Sprint(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// GetProfileByUser fetches the profile owned by userID.
func (r *Repository) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+summaryColumns+` `+summaryJoins+` WHERE cp.user_id = $1`, userID)
	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}

// CreateProfile inserts a counselee profile row.
func (r *Repository) CreateProfile(ctx context.Context, profile Profile) error {
	return insertProfile(ctx, r.pool, profile)
}

// AssignCounselor attaches a counselor and activates the assignment.
func (r *Repository) AssignCounselor(ctx context.Context, counseleeUserID, counselorUserID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE counselee_profiles
		SET assigned_counselor_id = $2, assignment_status = $3, assigned_at = now(), updated_at = now()
		WHERE user_id = $1`,
		counseleeUserID, counselorUserID, string(StatusActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateStatus moves the assignment through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, counseleeUserID uuid.UUID, status AssignmentStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE counselee_profiles SET assignment_status = $2, updated_at = now() WHERE user_id = $1`,
		counseleeUserID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateAccountWithProfile creates the users row, the counselee role
// assignment and the profile in one transaction.
func (r *Repository) CreateAccountWithProfile(ctx context.Context, record NewAccountRecord) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		_, err := tx.Exec(ctx, `INSERT INTO users (id, email, full_name, password_hash, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, $5, $5)`,
			record.UserID, record.Email, record.FullName, record.PasswordHash, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO user_roles (user_id, role, created_at) VALUES ($1, $2, $3)`,
			record.UserID, string(authz.RoleCounselee), now)
		if err != nil {
			return err
		}
		return insertProfile(ctx, tx, record.Profile)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertProfile(ctx context.Context, ex execer, profile Profile) error {
	contactJSON, err := json.Marshal(profile.EmergencyContact)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = ex.Exec(ctx, `INSERT INTO counselee_profiles
		(id, user_id, intake_submission_id, assigned_counselor_id, assignment_status, assigned_at, notes, emergency_contact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $9)`,
		profile.ID, profile.UserID, profile.IntakeSubmissionID, profile.AssignedCounselorID,
		string(profile.AssignmentStatus), profile.AssignedAt, profile.Notes, contactJSON, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (Summary, error) {
	var (
		summary     Summary
		status      string
		contactJSON []byte
	)
	err := row.Scan(
		&summary.ID, &summary.UserID, &summary.IntakeSubmissionID, &summary.AssignedCounselorID, &status,
		&summary.AssignedAt, &summary.Notes, &contactJSON, &summary.CreatedAt, &summary.UpdatedAt,
		&summary.Email, &summary.FullName, &summary.CounselorName,
	)
	if err != nil {
		return Summary{}, err
	}
	summary.AssignmentStatus = AssignmentStatus(status)
	if len(contactJSON) > 0 {
		_ = json.Unmarshal(contactJSON, &summary.EmergencyContact)
	}
	return summary, nil
}

var _ RepositoryPort = (*Repository)(nil)
