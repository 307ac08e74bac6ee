package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

const submissionColumns = `s.id, s.form_id, s.submission_id, COALESCE(s.form_title, ''), s.payload, s.parsed, s.submitted_at, s.received_at`

// CreateSubmission stores a delivery. submission_id is unique, so a
// replayed delivery surfaces as shared.ErrDuplicate.
func (r *Repository) CreateSubmission(ctx context.Context, sub Submission) error {
	payloadJSON, err := json.Marshal(sub.Payload)
	if err != nil {
		return err
	}
	parsedJSON, err := json.Marshal(sub.Parsed)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO intake_submissions (id, form_id, submission_id, form_title, payload, parsed, submitted_at, received_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		sub.ID, sub.FormID, sub.SubmissionID, sub.FormTitle, payloadJSON, parsedJSON, sub.SubmittedAt, sub.ReceivedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// ListSubmissions returns a page of submissions, newest first.
func (r *Repository) ListSubmissions(ctx context.Context, filter ListFilter) ([]Submission, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	if filter.CounselorID != nil {
		args = append(args, *filter.CounselorID)
		where += fmt.Sprintf(` AND NOT EXISTS (
			SELECT 1 FROM counselee_profiles cp
			WHERE cp.intake_submission_id = s.id AND cp.assigned_counselor_id IS DISTINCT FROM $%d)`, len(args))
	} else if filter.OnlyUnlinked {
		where += ` AND NOT EXISTS (SELECT 1 FROM counselee_profiles cp WHERE cp.intake_submission_id = s.id)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM intake_submissions s `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := shared.LimitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query := `SELECT ` + submissionColumns + ` FROM intake_submissions s ` + where +
		` ORDER BY s.received_at DESC LIMIT $` + fmt.Sprint(len(args)-1) + ` OFFSET $` + fmt.Sprint(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// GetSubmission fetches a single submission.
func (r *Repository) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM intake_submissions s WHERE s.id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		sub         Submission
		payloadJSON []byte
		parsedJSON  []byte
	)
	if err := row.Scan(&sub.ID, &sub.FormID, &sub.SubmissionID, &sub.FormTitle, &payloadJSON, &parsedJSON, &sub.SubmittedAt, &sub.ReceivedAt); err != nil {
		return Submission{}, err
	}
	if len(payloadJSON) > 0 {
		_ = json.Unmarshal(payloadJSON, &sub.Payload)
	}
	if len(parsedJSON) > 0 {
		_ = json.Unmarshal(parsedJSON, &sub.Parsed)
	}
	return sub, nil
}

var _ RepositoryPort = (*Repository)(nil)
